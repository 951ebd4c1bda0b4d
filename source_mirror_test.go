package provreq

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/mod/sumdb/dirhash"

	"github.com/provreq/go-provreq/addrs"
)

// writeMirrorFile writes one document into a mirror tree, creating parent
// directories as needed.
func writeMirrorFile(t *testing.T, root string, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestNewMirrorSource_Validation(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := NewMirrorSource(filepath.Join(t.TempDir(), "nope"))
		if err == nil || !strings.Contains(err.Error(), "does not exist") {
			t.Errorf("NewMirrorSource() error = %v, want missing-directory error", err)
		}
	})

	t.Run("path is a file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "file.txt")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		_, err := NewMirrorSource(path)
		if err == nil || !strings.Contains(err.Error(), "not a directory") {
			t.Errorf("NewMirrorSource() error = %v, want not-a-directory error", err)
		}
	})
}

func TestMirrorSource_ExplicitIndex(t *testing.T) {
	root := t.TempDir()
	writeMirrorFile(t, root,
		"providers/registry.terraform.io/hashicorp/aws/versions.json",
		`{"versions": ["4.15.0", "4.16.0"], "yanked_versions": {"4.15.0": "bad build"}}`)

	src, err := NewMirrorSource(root)
	if err != nil {
		t.Fatalf("NewMirrorSource() error = %v", err)
	}

	index, err := src.ProviderVersions(context.Background(), addrs.MustParseProviderSource("hashicorp/aws"))
	if err != nil {
		t.Fatalf("ProviderVersions() error = %v", err)
	}
	if len(index.Versions) != 2 {
		t.Errorf("index has %d versions, want 2", len(index.Versions))
	}
	if !index.IsYanked("4.15.0") || index.YankReason("4.15.0") != "bad build" {
		t.Error("yank metadata was not read from the mirror index")
	}
}

func TestMirrorSource_CorruptIndex(t *testing.T) {
	root := t.TempDir()
	writeMirrorFile(t, root,
		"providers/registry.terraform.io/hashicorp/aws/versions.json",
		`{"versions": ["not-a-version"]}`)

	src, err := NewMirrorSource(root)
	if err != nil {
		t.Fatalf("NewMirrorSource() error = %v", err)
	}

	_, err = src.ProviderVersions(context.Background(), addrs.MustParseProviderSource("hashicorp/aws"))
	if err == nil || !strings.Contains(err.Error(), "parse mirror index") {
		t.Errorf("ProviderVersions() error = %v, want parse failure naming the index", err)
	}
}

func TestMirrorSource_SynthesizedIndex(t *testing.T) {
	// No versions.json: the index comes from the version directories, in
	// ascending order. Non-version directories and loose files are ignored.
	root := t.TempDir()
	base := "providers/registry.terraform.io/hashicorp/random"
	writeMirrorFile(t, root, base+"/3.5.1/provider.bin", "binary")
	writeMirrorFile(t, root, base+"/3.4.0/provider.bin", "binary")
	writeMirrorFile(t, root, base+"/3.6.0-beta1/provider.bin", "binary")
	writeMirrorFile(t, root, base+"/notes/README.txt", "not a version")
	writeMirrorFile(t, root, base+"/stray.txt", "loose file")

	src, err := NewMirrorSource(root)
	if err != nil {
		t.Fatalf("NewMirrorSource() error = %v", err)
	}

	index, err := src.ProviderVersions(context.Background(), addrs.MustParseProviderSource("hashicorp/random"))
	if err != nil {
		t.Fatalf("ProviderVersions() error = %v", err)
	}

	want := []string{"3.4.0", "3.5.1", "3.6.0-beta1"}
	if len(index.Versions) != len(want) {
		t.Fatalf("index.Versions = %v, want %v", index.Versions, want)
	}
	for i := range want {
		if index.Versions[i] != want[i] {
			t.Errorf("index.Versions[%d] = %q, want %q", i, index.Versions[i], want[i])
		}
	}
}

func TestMirrorSource_ProviderNotFound(t *testing.T) {
	src, err := NewMirrorSource(t.TempDir())
	if err != nil {
		t.Fatalf("NewMirrorSource() error = %v", err)
	}

	_, err = src.ProviderVersions(context.Background(), addrs.MustParseProviderSource("hashicorp/aws"))
	if !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("ProviderVersions() error = %v, want ErrProviderNotFound", err)
	}
}

func TestMirrorSource_ExplicitPackage(t *testing.T) {
	root := t.TempDir()
	base := "providers/registry.terraform.io/hashicorp/aws"
	writeMirrorFile(t, root, base+"/versions.json", `{"versions": ["4.16.0"]}`)
	writeMirrorFile(t, root, base+"/4.16.0/package.json",
		`{"url": "https://example.com/aws.zip", "checksums": ["h1:pinned="]}`)

	src, err := NewMirrorSource(root)
	if err != nil {
		t.Fatalf("NewMirrorSource() error = %v", err)
	}

	pkg, err := src.PackageInfo(context.Background(), addrs.MustParseProviderSource("hashicorp/aws"), "4.16.0")
	if err != nil {
		t.Fatalf("PackageInfo() error = %v", err)
	}
	// The descriptor carries its own checksums; no directory hash is added.
	if len(pkg.Checksums) != 1 || pkg.Checksums[0] != "h1:pinned=" {
		t.Errorf("pkg.Checksums = %v, want the descriptor's checksum only", pkg.Checksums)
	}
}

func TestMirrorSource_SynthesizedPackage(t *testing.T) {
	// A bare version directory with no package.json still yields a
	// descriptor: the URL points at the directory and the checksum is the
	// directory hash, so lock verification works against the mirror.
	root := t.TempDir()
	base := "providers/registry.terraform.io/hashicorp/random"
	writeMirrorFile(t, root, base+"/3.5.1/provider.bin", "binary contents")

	src, err := NewMirrorSource(root)
	if err != nil {
		t.Fatalf("NewMirrorSource() error = %v", err)
	}

	pkg, err := src.PackageInfo(context.Background(), addrs.MustParseProviderSource("hashicorp/random"), "3.5.1")
	if err != nil {
		t.Fatalf("PackageInfo() error = %v", err)
	}

	if !strings.HasPrefix(pkg.URL, "file://") {
		t.Errorf("pkg.URL = %q, want a file:// URL", pkg.URL)
	}
	if len(pkg.Checksums) != 1 {
		t.Fatalf("pkg.Checksums = %v, want one directory hash", pkg.Checksums)
	}

	versionDir := filepath.Join(root, filepath.FromSlash(base), "3.5.1")
	wantHash, err := dirhash.HashDir(versionDir, "", dirhash.Hash1)
	if err != nil {
		t.Fatalf("HashDir() error = %v", err)
	}
	if pkg.Checksums[0] != wantHash {
		t.Errorf("pkg.Checksums[0] = %q, want %q", pkg.Checksums[0], wantHash)
	}
}

func TestMirrorSource_VersionNotFound(t *testing.T) {
	root := t.TempDir()
	writeMirrorFile(t, root,
		"providers/registry.terraform.io/hashicorp/aws/1.0.0/provider.bin", "binary")

	src, err := NewMirrorSource(root)
	if err != nil {
		t.Fatalf("NewMirrorSource() error = %v", err)
	}

	_, err = src.PackageInfo(context.Background(), addrs.MustParseProviderSource("hashicorp/aws"), "9.9.9")
	if !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("PackageInfo() error = %v, want ErrVersionNotFound", err)
	}
}

func TestMirrorSource_CachesDocuments(t *testing.T) {
	root := t.TempDir()
	indexPath := "providers/registry.terraform.io/hashicorp/aws/versions.json"
	writeMirrorFile(t, root, indexPath, `{"versions": ["1.0.0"]}`)

	src, err := NewMirrorSource(root)
	if err != nil {
		t.Fatalf("NewMirrorSource() error = %v", err)
	}
	aws := addrs.MustParseProviderSource("hashicorp/aws")

	if _, err := src.ProviderVersions(context.Background(), aws); err != nil {
		t.Fatalf("ProviderVersions() error = %v", err)
	}

	// Remove the backing file; the cached index keeps serving.
	if err := os.Remove(filepath.Join(root, filepath.FromSlash(indexPath))); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	index, err := src.ProviderVersions(context.Background(), aws)
	if err != nil {
		t.Fatalf("cached ProviderVersions() error = %v", err)
	}
	if len(index.Versions) != 1 {
		t.Errorf("cached index = %v, want the original document", index.Versions)
	}
}

func TestMirrorSource_HasProviderAndVersion(t *testing.T) {
	root := t.TempDir()
	writeMirrorFile(t, root,
		"providers/registry.terraform.io/hashicorp/aws/1.0.0/provider.bin", "binary")

	src, err := NewMirrorSource(root)
	if err != nil {
		t.Fatalf("NewMirrorSource() error = %v", err)
	}

	aws := addrs.MustParseProviderSource("hashicorp/aws")
	if !src.HasProvider(aws) {
		t.Error("HasProvider(aws) = false, want true")
	}
	if !src.HasVersion(aws, "1.0.0") {
		t.Error("HasVersion(aws, 1.0.0) = false, want true")
	}
	if src.HasVersion(aws, "2.0.0") {
		t.Error("HasVersion(aws, 2.0.0) = true, want false")
	}
	if src.HasProvider(addrs.MustParseProviderSource("hashicorp/google")) {
		t.Error("HasProvider(google) = true, want false")
	}
}

func TestParseFileURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "unix path",
			url:  "file:///srv/mirror",
			want: filepath.Clean("/srv/mirror"),
		},
		{
			name: "windows drive",
			url:  "file:///C:/mirror",
			want: filepath.Clean("C:/mirror"),
		},
		{
			name:    "not a file URL",
			url:     "https://example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFileURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseFileURL() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFileURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseFileURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestPathToFileURL(t *testing.T) {
	if got := pathToFileURL("/srv/mirror"); got != "file:///srv/mirror" {
		t.Errorf("pathToFileURL(/srv/mirror) = %q, want file:///srv/mirror", got)
	}
	if got := pathToFileURL("C:/mirror"); got != "file:///C:/mirror" {
		t.Errorf("pathToFileURL(C:/mirror) = %q, want file:///C:/mirror", got)
	}
}
