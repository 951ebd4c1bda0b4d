package provreq

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	goversion "github.com/hashicorp/go-version"
	"golang.org/x/mod/sumdb/dirhash"

	"github.com/provreq/go-provreq/addrs"
	"github.com/provreq/go-provreq/registry"
)

// MirrorSource serves provider metadata from a local directory tree. This
// enables airgap and offline workflows where provider metadata (and
// optionally unpacked provider packages) has been copied ahead of time.
//
// The directory follows the registry document layout:
//
//	{root}/providers/{hostname}/{namespace}/{type}/versions.json
//	{root}/providers/{hostname}/{namespace}/{type}/{version}/package.json
//
// Both documents are optional. A missing versions.json is synthesized by
// listing version directories; a missing or checksum-less package.json is
// filled in with an "h1:" hash of the version directory's contents, so a
// mirror of bare unpacked packages still yields verifiable selections.
//
// Create with file:// URLs through WithRegistries, with WithMirrorDir, or
// directly:
//
//	src, err := NewMirrorSource("/srv/providers-mirror")
type MirrorSource struct {
	rootPath string

	versionsCache sync.Map // map[addrs.Provider]*registry.ProviderVersions
	packageCache  sync.Map // map[string]*registry.PackageInfo keyed by "addr@version"
}

var _ Source = (*MirrorSource)(nil)

// NewMirrorSource creates a source backed by a local mirror directory. The
// path must name an existing directory; it may use forward slashes or the
// native separator.
func NewMirrorSource(dir string) (*MirrorSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("mirror directory does not exist: %s", dir)
		}
		return nil, fmt.Errorf("cannot access mirror directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mirror path is not a directory: %s", dir)
	}

	return &MirrorSource{rootPath: filepath.Clean(dir)}, nil
}

// ProviderVersions reads a provider's version index from the mirror. When
// the index document is absent the versions are inferred from the version
// directories present for the provider.
func (m *MirrorSource) ProviderVersions(ctx context.Context, provider addrs.Provider) (*registry.ProviderVersions, error) {
	if cached, ok := m.versionsCache.Load(provider); ok {
		return cached.(*registry.ProviderVersions), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	indexPath := filepath.Join(m.providerDir(provider), "versions.json")
	data, err := os.ReadFile(indexPath)
	switch {
	case err == nil:
		index, err := registry.ValidateProviderVersionsJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse mirror index %s: %w", indexPath, err)
		}
		m.versionsCache.Store(provider, index)
		return index, nil
	case os.IsNotExist(err):
		index, err := m.synthesizeIndex(provider)
		if err != nil {
			return nil, err
		}
		m.versionsCache.Store(provider, index)
		return index, nil
	default:
		return nil, fmt.Errorf("read mirror index %s: %w", indexPath, err)
	}
}

// PackageInfo reads a package descriptor from the mirror. A missing
// descriptor is synthesized from the version directory, and descriptors
// without checksums get an "h1:" directory hash so lock verification works
// against mirrored packages.
func (m *MirrorSource) PackageInfo(ctx context.Context, provider addrs.Provider, version string) (*registry.PackageInfo, error) {
	cacheKey := provider.String() + "@" + version
	if cached, ok := m.packageCache.Load(cacheKey); ok {
		return cached.(*registry.PackageInfo), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	versionDir := filepath.Join(m.providerDir(provider), version)
	pkgPath := filepath.Join(versionDir, "package.json")

	var pkg *registry.PackageInfo
	data, err := os.ReadFile(pkgPath)
	switch {
	case err == nil:
		pkg, err = registry.ValidatePackageInfoJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse mirror package %s: %w", pkgPath, err)
		}
	case os.IsNotExist(err):
		if !m.HasVersion(provider, version) {
			return nil, fmt.Errorf("%w: %s@%s not present in mirror %s", ErrVersionNotFound, provider.ForDisplay(), version, m.rootPath)
		}
		pkg = &registry.PackageInfo{URL: pathToFileURL(versionDir)}
	default:
		return nil, fmt.Errorf("read mirror package %s: %w", pkgPath, err)
	}

	if len(pkg.Checksums) == 0 {
		if info, err := os.Stat(versionDir); err == nil && info.IsDir() {
			hash, err := dirhash.HashDir(versionDir, "", dirhash.Hash1)
			if err != nil {
				return nil, fmt.Errorf("hash mirror package %s: %w", versionDir, err)
			}
			pkg.Checksums = []string{hash}
		}
	}

	m.packageCache.Store(cacheKey, pkg)
	return pkg, nil
}

// BaseURL returns the file:// URL of the mirror root. The URL uses forward
// slashes regardless of OS, per RFC 8089.
func (m *MirrorSource) BaseURL() string {
	return pathToFileURL(m.rootPath)
}

// HasProvider reports whether the mirror carries any data for a provider.
func (m *MirrorSource) HasProvider(provider addrs.Provider) bool {
	info, err := os.Stat(m.providerDir(provider))
	return err == nil && info.IsDir()
}

// HasVersion reports whether the mirror carries a version directory for one
// provider version.
func (m *MirrorSource) HasVersion(provider addrs.Provider, version string) bool {
	info, err := os.Stat(filepath.Join(m.providerDir(provider), version))
	return err == nil && info.IsDir()
}

func (m *MirrorSource) providerDir(provider addrs.Provider) string {
	return filepath.Join(m.rootPath, "providers", provider.Hostname(), provider.Namespace(), provider.Type())
}

// synthesizeIndex builds a version index for providers mirrored without a
// versions.json, treating every subdirectory with a parseable version name
// as an available version.
func (m *MirrorSource) synthesizeIndex(provider addrs.Provider) (*registry.ProviderVersions, error) {
	dir := m.providerDir(provider)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s not present in mirror %s", ErrProviderNotFound, provider.ForDisplay(), m.rootPath)
		}
		return nil, fmt.Errorf("read mirror directory %s: %w", dir, err)
	}

	versions := make([]*goversion.Version, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, err := goversion.NewVersion(entry.Name())
		if err != nil {
			// Not a version directory. Mirrors may keep other files
			// alongside the version tree.
			continue
		}
		versions = append(versions, v)
	}

	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s has no versions in mirror %s", ErrProviderNotFound, provider.ForDisplay(), m.rootPath)
	}

	goversion.Sort(versions)
	index := &registry.ProviderVersions{Versions: make([]string, len(versions))}
	for i, v := range versions {
		index.Versions[i] = v.Original()
	}
	return index, nil
}

// parseFileURL extracts the native path from a file:// URL. Both Unix
// (file:///srv/mirror) and Windows (file:///C:/mirror) forms are accepted.
func parseFileURL(url string) (string, error) {
	if !strings.HasPrefix(url, "file://") {
		return "", fmt.Errorf("not a file:// URL: %s", url)
	}

	path := strings.TrimPrefix(url, "file://")

	// file:///C:/mirror carries the drive letter after the leading slash.
	if len(path) >= 3 && path[0] == '/' && isWindowsDriveLetter(path[1]) && path[2] == ':' {
		path = path[1:]
	}

	return filepath.Clean(path), nil
}

// pathToFileURL converts a native file path to a file:// URL with forward
// slashes and a leading slash before Windows drive letters.
func pathToFileURL(path string) string {
	urlPath := filepath.ToSlash(path)

	if len(urlPath) >= 2 && isWindowsDriveLetter(urlPath[0]) && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}

	return "file://" + urlPath
}

func isWindowsDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isFileURL(url string) bool {
	return strings.HasPrefix(url, "file://")
}
