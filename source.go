package provreq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/provreq/go-provreq/addrs"
	"github.com/provreq/go-provreq/registry"
)

// Source supplies provider version indexes and package descriptors.
// Implementations must be safe for concurrent use.
type Source interface {
	// ProviderVersions returns the version index for a provider.
	ProviderVersions(ctx context.Context, provider addrs.Provider) (*registry.ProviderVersions, error)

	// PackageInfo returns the package descriptor for one provider version.
	PackageInfo(ctx context.Context, provider addrs.Provider, version string) (*registry.PackageInfo, error)

	// BaseURL identifies the source in diagnostics.
	BaseURL() string
}

// MetadataCache caches registry documents across resolution runs. The
// address is the fully-qualified provider address; the document names the
// file within the provider's registry directory ("versions.json",
// "2.1.0/package.json"). Implementations must be safe for concurrent use.
type MetadataCache interface {
	// Get returns the cached document and true on a hit.
	Get(ctx context.Context, address, document string) ([]byte, bool, error)

	// Put stores a document.
	Put(ctx context.Context, address, document string, content []byte) error
}

// Compile-time interface compliance checks.
var (
	_ Source = (*registrySource)(nil)
	_ Source = (*cachingSource)(nil)
)

// registrySource adapts a registry.Client to the Source interface and maps
// HTTP failures to this package's sentinel errors.
type registrySource struct {
	client *registry.Client
}

func newRegistrySource(client *registry.Client) *registrySource {
	return &registrySource{client: client}
}

func (s *registrySource) ProviderVersions(ctx context.Context, provider addrs.Provider) (*registry.ProviderVersions, error) {
	versions, err := s.client.ProviderVersions(ctx, provider)
	if err != nil {
		return nil, mapStatusError(err, ErrProviderNotFound)
	}
	return versions, nil
}

func (s *registrySource) PackageInfo(ctx context.Context, provider addrs.Provider, version string) (*registry.PackageInfo, error) {
	pkg, err := s.client.PackageInfo(ctx, provider, version)
	if err != nil {
		return nil, mapStatusError(err, ErrVersionNotFound)
	}
	return pkg, nil
}

func (s *registrySource) BaseURL() string {
	return s.client.BaseURL()
}

// mapStatusError attaches the matching sentinel to an HTTP failure so
// callers can branch with errors.Is. notFound distinguishes a missing
// provider from a missing version.
func mapStatusError(err error, notFound error) error {
	switch registry.StatusCode(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", notFound, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	default:
		return err
	}
}

// cachingSource consults a MetadataCache before delegating to the wrapped
// source, and stores fresh documents on the way out. The cache can make
// resolution faster but never break it: cache failures and corrupt entries
// are treated as misses.
type cachingSource struct {
	next  Source
	cache MetadataCache
	log   *slog.Logger
}

func (s *cachingSource) ProviderVersions(ctx context.Context, provider addrs.Provider) (*registry.ProviderVersions, error) {
	const document = "versions.json"

	if data, ok := s.lookup(ctx, provider, document); ok {
		var versions registry.ProviderVersions
		if err := json.Unmarshal(data, &versions); err == nil {
			return &versions, nil
		}
	}

	versions, err := s.next.ProviderVersions(ctx, provider)
	if err != nil {
		return nil, err
	}
	s.store(ctx, provider, document, versions)
	return versions, nil
}

func (s *cachingSource) PackageInfo(ctx context.Context, provider addrs.Provider, version string) (*registry.PackageInfo, error) {
	document := version + "/package.json"

	if data, ok := s.lookup(ctx, provider, document); ok {
		var pkg registry.PackageInfo
		if err := json.Unmarshal(data, &pkg); err == nil {
			return &pkg, nil
		}
	}

	pkg, err := s.next.PackageInfo(ctx, provider, version)
	if err != nil {
		return nil, err
	}
	s.store(ctx, provider, document, pkg)
	return pkg, nil
}

func (s *cachingSource) BaseURL() string {
	return s.next.BaseURL()
}

func (s *cachingSource) lookup(ctx context.Context, provider addrs.Provider, document string) ([]byte, bool) {
	data, ok, err := s.cache.Get(ctx, provider.String(), document)
	if err != nil {
		s.log.Debug("metadata cache get failed",
			"provider", provider.String(), "document", document, "error", err)
		return nil, false
	}
	return data, ok
}

func (s *cachingSource) store(ctx context.Context, provider addrs.Provider, document string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Put(ctx, provider.String(), document, data); err != nil {
		s.log.Debug("metadata cache put failed",
			"provider", provider.String(), "document", document, "error", err)
	}
}
