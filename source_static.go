package provreq

import (
	"context"
	"fmt"
	"sync"

	"github.com/provreq/go-provreq/addrs"
	"github.com/provreq/go-provreq/registry"
)

// StaticSource serves provider metadata from memory. It is useful for tests
// and for embedding a fixed provider catalog into a binary that resolves
// without any network or filesystem access.
//
// The zero value is not usable; construct with NewStaticSource. All methods
// are safe for concurrent use.
type StaticSource struct {
	label string

	mu       sync.RWMutex
	versions map[addrs.Provider]*registry.ProviderVersions
	packages map[string]*registry.PackageInfo
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource returns an empty static source. The label identifies the
// source in error messages and diagnostics; it defaults to "static" when
// empty.
func NewStaticSource(label string) *StaticSource {
	if label == "" {
		label = "static"
	}
	return &StaticSource{
		label:    label,
		versions: make(map[addrs.Provider]*registry.ProviderVersions),
		packages: make(map[string]*registry.PackageInfo),
	}
}

// AddProvider registers a provider with the given selectable versions,
// replacing any previous index for the same provider.
func (s *StaticSource) AddProvider(provider addrs.Provider, versions ...string) {
	s.SetVersions(provider, &registry.ProviderVersions{Versions: versions})
}

// SetVersions installs a full version index for a provider, including yank
// and deprecation metadata.
func (s *StaticSource) SetVersions(provider addrs.Provider, index *registry.ProviderVersions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[provider] = index
}

// AddPackage installs the package descriptor served for one provider
// version. Versions without an explicit descriptor are served an empty one.
func (s *StaticSource) AddPackage(provider addrs.Provider, version string, pkg *registry.PackageInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[packageKey(provider, version)] = pkg
}

// ProviderVersions returns the version index registered for a provider.
func (s *StaticSource) ProviderVersions(_ context.Context, provider addrs.Provider) (*registry.ProviderVersions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, ok := s.versions[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no entry in %s", ErrProviderNotFound, provider.ForDisplay(), s.label)
	}
	return index, nil
}

// PackageInfo returns the descriptor registered for a provider version. A
// version present in the index but lacking an explicit descriptor yields an
// empty descriptor, which downstream code treats as "no checksums known".
func (s *StaticSource) PackageInfo(_ context.Context, provider addrs.Provider, version string) (*registry.PackageInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pkg, ok := s.packages[packageKey(provider, version)]; ok {
		return pkg, nil
	}

	index, ok := s.versions[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no entry in %s", ErrProviderNotFound, provider.ForDisplay(), s.label)
	}
	if !index.HasVersion(version) {
		return nil, fmt.Errorf("%w: %s has no version %s in %s", ErrVersionNotFound, provider.ForDisplay(), version, s.label)
	}
	return &registry.PackageInfo{}, nil
}

// BaseURL returns the source's label for display in errors and diagnostics.
func (s *StaticSource) BaseURL() string {
	return s.label
}

func packageKey(provider addrs.Provider, version string) string {
	return provider.String() + "@" + version
}
