package provreq

import (
	"sort"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/provreq/go-provreq/addrs"
)

// ProviderChange describes a provider that appears in only one of two
// results.
type ProviderChange struct {
	Provider addrs.Provider `json:"provider"`
	Version  string         `json:"version"`
}

// ProviderUpgrade describes a provider selected in both results at different
// versions.
type ProviderUpgrade struct {
	Provider    addrs.Provider `json:"provider"`
	FromVersion string         `json:"from_version"`
	ToVersion   string         `json:"to_version"`
}

// ResultDiff describes the differences between two resolution results.
//
// This is useful for:
//   - Reviewing provider updates before writing a new lock file
//   - Generating changelogs for dependency bumps
//   - CI checks that gate on unexpected selection changes
//
// Example usage:
//
//	before, _ := provreq.Resolve(ctx, root, provreq.WithLockFile(lockPath))
//	after, _ := provreq.Resolve(ctx, root)
//	diff := provreq.DiffResults(before, after)
//
//	if !diff.IsEmpty() {
//	    fmt.Printf("%d selection changes\n", diff.TotalChanges())
//	}
type ResultDiff struct {
	// Added contains providers present in new but not in old.
	Added []ProviderChange `json:"added,omitempty"`

	// Removed contains providers present in old but not in new.
	Removed []ProviderChange `json:"removed,omitempty"`

	// Upgraded contains providers where the new version is higher.
	Upgraded []ProviderUpgrade `json:"upgraded,omitempty"`

	// Downgraded contains providers where the new version is lower.
	Downgraded []ProviderUpgrade `json:"downgraded,omitempty"`
}

// IsEmpty reports whether the two results selected identical providers at
// identical versions.
func (d *ResultDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 &&
		len(d.Upgraded) == 0 && len(d.Downgraded) == 0
}

// TotalChanges returns the number of providers whose selection differs.
func (d *ResultDiff) TotalChanges() int {
	return len(d.Added) + len(d.Removed) + len(d.Upgraded) + len(d.Downgraded)
}

// DiffResults compares two resolution results. Either argument may be nil,
// which reads as "no providers selected". Version direction is decided by
// semantic comparison, not string order; all slices come back sorted by
// provider address.
func DiffResults(oldResult, newResult *Result) *ResultDiff {
	diff := &ResultDiff{}

	oldSelected := make(map[addrs.Provider]SelectedProvider)
	if oldResult != nil {
		for _, p := range oldResult.Providers {
			oldSelected[p.Provider] = p
		}
	}
	newSelected := make(map[addrs.Provider]SelectedProvider)
	if newResult != nil {
		for _, p := range newResult.Providers {
			newSelected[p.Provider] = p
		}
	}

	for provider, next := range newSelected {
		prev, existed := oldSelected[provider]
		if !existed {
			diff.Added = append(diff.Added, ProviderChange{Provider: provider, Version: next.Version})
			continue
		}
		if prev.Version == next.Version {
			continue
		}

		upgrade := ProviderUpgrade{
			Provider:    provider,
			FromVersion: prev.Version,
			ToVersion:   next.Version,
		}
		if compareVersions(prev.Version, next.Version) < 0 {
			diff.Upgraded = append(diff.Upgraded, upgrade)
		} else {
			diff.Downgraded = append(diff.Downgraded, upgrade)
		}
	}

	for provider, prev := range oldSelected {
		if _, stillThere := newSelected[provider]; !stillThere {
			diff.Removed = append(diff.Removed, ProviderChange{Provider: provider, Version: prev.Version})
		}
	}

	sort.Slice(diff.Added, func(i, j int) bool { return diff.Added[i].Provider.Less(diff.Added[j].Provider) })
	sort.Slice(diff.Removed, func(i, j int) bool { return diff.Removed[i].Provider.Less(diff.Removed[j].Provider) })
	sort.Slice(diff.Upgraded, func(i, j int) bool { return diff.Upgraded[i].Provider.Less(diff.Upgraded[j].Provider) })
	sort.Slice(diff.Downgraded, func(i, j int) bool { return diff.Downgraded[i].Provider.Less(diff.Downgraded[j].Provider) })

	return diff
}

// compareVersions orders two version strings semantically, falling back to
// lexical order when either side does not parse.
func compareVersions(a, b string) int {
	va, errA := goversion.NewVersion(a)
	vb, errB := goversion.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}
