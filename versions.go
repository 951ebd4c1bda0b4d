package provreq

import (
	"context"
	"fmt"
	"sort"

	goversion "github.com/hashicorp/go-version"

	"github.com/provreq/go-provreq/addrs"
)

// VersionInfo is one published version of a provider together with the
// annotations the source reported for it.
type VersionInfo struct {
	Version    string `json:"version"`
	Yanked     bool   `json:"yanked,omitempty"`
	YankReason string `json:"yank_reason,omitempty"`
}

// ProviderVersionList is the annotated version index of a single provider,
// as reported by the configured source chain.
type ProviderVersionList struct {
	Provider addrs.Provider `json:"provider"`

	// Versions holds every published version in ascending order, including
	// yanked ones. Callers that want only installable versions should filter
	// on the Yanked field.
	Versions []VersionInfo `json:"versions"`

	Deprecated        bool   `json:"deprecated,omitempty"`
	DeprecationReason string `json:"deprecation_reason,omitempty"`
}

// Latest returns the newest version that has not been yanked. When every
// published version is yanked it returns the newest one anyway, and when the
// list is empty it returns "".
func (l *ProviderVersionList) Latest() string {
	if l == nil || len(l.Versions) == 0 {
		return ""
	}
	for i := len(l.Versions) - 1; i >= 0; i-- {
		if !l.Versions[i].Yanked {
			return l.Versions[i].Version
		}
	}
	return l.Versions[len(l.Versions)-1].Version
}

// ListVersions fetches the annotated version list for a provider source
// address, using the same source configuration that Resolve uses. The source
// string takes the "namespace/type" or "hostname/namespace/type" form.
func ListVersions(ctx context.Context, source string, opts ...Option) (*ProviderVersionList, error) {
	provider, err := addrs.ParseProviderSource(source)
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(opts...)
	if err != nil {
		return nil, err
	}
	return resolver.ListVersions(ctx, provider)
}

// ListVersions fetches the annotated version list for one provider through
// the resolver's source chain. Results are served from the resolver's
// metadata cache when a prior call already fetched the same provider.
func (r *Resolver) ListVersions(ctx context.Context, provider addrs.Provider) (*ProviderVersionList, error) {
	if provider.IsBuiltIn() {
		return nil, fmt.Errorf("provider %s is built into the running tool and has no published versions", provider.ForDisplay())
	}

	index, err := r.source.ProviderVersions(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("fetch versions for %s: %w", provider.ForDisplay(), err)
	}

	type entry struct {
		parsed *goversion.Version
		info   VersionInfo
	}
	entries := make([]entry, 0, len(index.Versions))
	for _, raw := range index.Versions {
		v, err := goversion.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("provider %s: source reported unparseable version %q: %w", provider.ForDisplay(), raw, err)
		}
		entries = append(entries, entry{
			parsed: v,
			info: VersionInfo{
				Version:    raw,
				Yanked:     index.IsYanked(raw),
				YankReason: index.YankReason(raw),
			},
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].parsed.LessThan(entries[j].parsed)
	})

	list := &ProviderVersionList{
		Provider:          provider,
		Versions:          make([]VersionInfo, 0, len(entries)),
		Deprecated:        index.IsDeprecated(),
		DeprecationReason: index.Deprecated,
	}
	for _, e := range entries {
		list.Versions = append(list.Versions, e.info)
	}
	return list, nil
}
