package provreq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/provreq/go-provreq/addrs"
	"github.com/provreq/go-provreq/registry"
)

// chainSource implements multi-source lookup with fallback behavior. It
// tries sources in order and remembers which source serves each provider.
//
// Key behaviors:
//  1. Providers are looked up in source order (first to last).
//  2. The first source where a provider is found serves ALL documents for
//     that provider from then on, so a provider's version index and package
//     descriptors always agree with each other.
//  3. A provider found in no source is an error carrying every source's
//     failure.
//
// The chain falls back on ANY error, not just 404s: a source that is down,
// rate limiting, or misconfigured should not mask a provider that the next
// source serves fine.
type chainSource struct {
	sources []Source

	// providerSource tracks which source serves each provider. Once bound,
	// all lookups for that provider go to the bound source only.
	providerSource   map[addrs.Provider]int
	providerSourceMu sync.RWMutex
}

var _ Source = (*chainSource)(nil)

func newChainSource(sources ...Source) *chainSource {
	return &chainSource{
		sources:        sources,
		providerSource: make(map[addrs.Provider]int),
	}
}

// ProviderVersions fetches a provider's version index from the bound source,
// or tries each source in order and binds the first that answers.
func (c *chainSource) ProviderVersions(ctx context.Context, provider addrs.Provider) (*registry.ProviderVersions, error) {
	if src, ok := c.boundSource(provider); ok {
		return src.ProviderVersions(ctx, provider)
	}

	var failures []error
	for i, src := range c.sources {
		versions, err := src.ProviderVersions(ctx, provider)
		if err == nil {
			c.bind(provider, i)
			return versions, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", src.BaseURL(), err))
	}

	return nil, chainFailure("provider "+provider.ForDisplay(), failures)
}

// PackageInfo fetches a package descriptor, binding the provider to the
// first source that answers when no binding exists yet.
func (c *chainSource) PackageInfo(ctx context.Context, provider addrs.Provider, version string) (*registry.PackageInfo, error) {
	if src, ok := c.boundSource(provider); ok {
		return src.PackageInfo(ctx, provider, version)
	}

	var failures []error
	for i, src := range c.sources {
		pkg, err := src.PackageInfo(ctx, provider, version)
		if err == nil {
			c.bind(provider, i)
			return pkg, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", src.BaseURL(), err))
	}

	return nil, chainFailure(fmt.Sprintf("package %s@%s", provider.ForDisplay(), version), failures)
}

// BaseURL returns the URL of the first source in the chain, for display.
func (c *chainSource) BaseURL() string {
	if len(c.sources) == 0 {
		return ""
	}
	return c.sources[0].BaseURL()
}

// SourceFor returns the base URL of the source bound to a provider, or an
// empty string when the provider has not been looked up yet.
func (c *chainSource) SourceFor(provider addrs.Provider) string {
	c.providerSourceMu.RLock()
	defer c.providerSourceMu.RUnlock()

	if idx, ok := c.providerSource[provider]; ok {
		return c.sources[idx].BaseURL()
	}
	return ""
}

func (c *chainSource) boundSource(provider addrs.Provider) (Source, bool) {
	c.providerSourceMu.RLock()
	defer c.providerSourceMu.RUnlock()

	idx, ok := c.providerSource[provider]
	if !ok {
		return nil, false
	}
	return c.sources[idx], true
}

func (c *chainSource) bind(provider addrs.Provider, idx int) {
	c.providerSourceMu.Lock()
	defer c.providerSourceMu.Unlock()

	if _, exists := c.providerSource[provider]; !exists {
		c.providerSource[provider] = idx
	}
}

// chainFailure builds the error for a lookup that exhausted every source.
// Each source's failure stays reachable through errors.Is and errors.As.
func chainFailure(what string, failures []error) error {
	switch len(failures) {
	case 0:
		return fmt.Errorf("%w: %s: no sources configured", ErrProviderNotFound, what)
	case 1:
		return fmt.Errorf("%s: %w", what, failures[0])
	default:
		return fmt.Errorf("%s not found in any source:\n%w", what, errors.Join(failures...))
	}
}
