// Command mirror-index prepares a local provider mirror for offline use.
//
// It walks the mirror's providers/ tree, rebuilds each provider's
// versions.json from the version directories on disk, and writes a
// package.json with an "h1:" directory checksum for every version that does
// not have one yet. A mirror of bare unpacked packages becomes a fully
// indexed mirror whose checksums match what a resolver would synthesize from
// the bare directories, so existing lock files keep verifying.
//
// Usage:
//
//	go run ./tools/mirror-index -mirror /srv/providers-mirror
//	go run ./tools/mirror-index -mirror /srv/providers-mirror -skip-packages
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	goversion "github.com/hashicorp/go-version"
	"golang.org/x/mod/sumdb/dirhash"

	"github.com/provreq/go-provreq/registry"
)

func main() {
	mirror := flag.String("mirror", "", "Mirror root directory (the directory containing providers/)")
	skipPackages := flag.Bool("skip-packages", false, "Only rebuild versions.json indexes, do not write package descriptors")
	flag.Parse()

	if *mirror == "" {
		fmt.Fprintln(os.Stderr, "Error: -mirror is required")
		flag.Usage()
		os.Exit(1)
	}

	info, err := os.Stat(*mirror)
	if err != nil || !info.IsDir() {
		fatalf("Error: mirror root %s is not a directory", *mirror)
	}

	fmt.Printf("Indexing provider mirror: %s\n", *mirror)

	providerDirs, err := findProviderDirs(*mirror)
	if err != nil {
		fatalf("Error scanning mirror: %v", err)
	}
	if len(providerDirs) == 0 {
		fatalf("Error: no provider directories under %s", filepath.Join(*mirror, "providers"))
	}

	indexed, descriptors := 0, 0
	for _, dir := range providerDirs {
		versions, err := listVersionDirs(dir)
		if err != nil {
			fatalf("Error listing %s: %v", dir, err)
		}
		if len(versions) == 0 {
			fmt.Printf("  Skipped (no version directories): %s\n", displayPath(*mirror, dir))
			continue
		}

		if err := writeIndex(dir, versions); err != nil {
			fatalf("Error writing index for %s: %v", dir, err)
		}
		indexed++
		fmt.Printf("  Indexed: %s (%d versions)\n", displayPath(*mirror, dir), len(versions))

		if *skipPackages {
			continue
		}
		for _, version := range versions {
			wrote, err := ensurePackageDescriptor(filepath.Join(dir, version))
			if err != nil {
				fatalf("Error writing package descriptor for %s@%s: %v", displayPath(*mirror, dir), version, err)
			}
			if wrote {
				descriptors++
				fmt.Printf("    Wrote package.json: %s\n", version)
			}
		}
	}

	fmt.Printf("Indexed %d providers, wrote %d package descriptors\n", indexed, descriptors)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// findProviderDirs returns every provider directory in the mirror, i.e.
// every providers/{hostname}/{namespace}/{type} path that is a directory.
func findProviderDirs(mirror string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(mirror, "providers", "*", "*", "*"))
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			dirs = append(dirs, match)
		}
	}
	return dirs, nil
}

// listVersionDirs returns the version directory names under a provider
// directory, sorted ascending. Entries that do not parse as versions are
// ignored; mirrors may keep other files alongside the version tree.
func listVersionDirs(providerDir string) ([]string, error) {
	entries, err := os.ReadDir(providerDir)
	if err != nil {
		return nil, err
	}

	versions := make([]*goversion.Version, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, err := goversion.NewVersion(entry.Name())
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	goversion.Sort(versions)

	names := make([]string, len(versions))
	for i, v := range versions {
		names[i] = v.Original()
	}
	return names, nil
}

// writeIndex rebuilds versions.json from the directory listing. Annotations
// in an existing index (yanked versions, deprecation) are preserved; only
// the version list is replaced.
func writeIndex(providerDir string, versions []string) error {
	indexPath := filepath.Join(providerDir, "versions.json")

	index := &registry.ProviderVersions{}
	if data, err := os.ReadFile(indexPath); err == nil {
		existing, err := registry.ValidateProviderVersionsJSON(data)
		if err != nil {
			return fmt.Errorf("existing index is invalid, refusing to overwrite: %w", err)
		}
		index = existing
	} else if !os.IsNotExist(err) {
		return err
	}
	index.Versions = versions

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(indexPath, append(data, '\n'), 0o644)
}

// ensurePackageDescriptor writes a package.json for one version directory
// unless one already exists. The checksum is computed before the descriptor
// is written, so it matches the hash of the bare directory.
func ensurePackageDescriptor(versionDir string) (bool, error) {
	pkgPath := filepath.Join(versionDir, "package.json")
	if _, err := os.Stat(pkgPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	hash, err := dirhash.HashDir(versionDir, "", dirhash.Hash1)
	if err != nil {
		return false, fmt.Errorf("hash directory: %w", err)
	}

	abs, err := filepath.Abs(versionDir)
	if err != nil {
		return false, err
	}
	pkg := &registry.PackageInfo{
		URL:       "file://" + filepath.ToSlash(abs),
		Checksums: []string{hash},
	}

	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(pkgPath, append(data, '\n'), 0o644)
}

// displayPath renders a provider directory relative to the mirror root.
func displayPath(mirror, dir string) string {
	if rel, err := filepath.Rel(filepath.Join(mirror, "providers"), dir); err == nil {
		return filepath.ToSlash(rel)
	}
	return dir
}
