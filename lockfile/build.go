package lockfile

import (
	"sort"

	"github.com/provreq/go-provreq/addrs"
)

// ProviderSelection is one resolved provider, as produced by a resolution
// run, in the shape this package needs to build lock entries.
type ProviderSelection struct {
	// Provider is the fully-qualified address.
	Provider addrs.Provider

	// Version is the selected version.
	Version string

	// Constraints is the merged constraint set that produced the selection,
	// recorded for later readers of the lock file.
	Constraints string

	// Hashes are the package checksums observed for the selected version.
	Hashes []string
}

// FromSelections creates a lock from a set of resolved providers. Selections
// without a version (built-in providers) are skipped.
func FromSelections(selections []ProviderSelection) *Lock {
	lock := New()
	for _, s := range selections {
		if s.Version == "" {
			continue
		}
		lock.SetEntry(s.Provider, &ProviderEntry{
			Version:     s.Version,
			Constraints: s.Constraints,
			Hashes:      sortedHashes(s.Hashes),
		})
	}
	return lock
}

// Diff describes the differences between two locks.
type Diff struct {
	// Added contains providers locked in new but not in old.
	Added []addrs.Provider

	// Removed contains providers locked in old but not in new.
	Removed []addrs.Provider

	// Changed contains providers whose entries differ between old and new.
	Changed []EntryChange
}

// EntryChange records an entry that differs between two locks.
type EntryChange struct {
	Provider   addrs.Provider
	OldVersion string
	NewVersion string
}

// IsEmpty returns true if there are no differences.
func (d *Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare compares two locks and returns the differences, each list in
// stable address order.
func Compare(old, new *Lock) *Diff {
	diff := &Diff{}

	oldEntries := make(map[addrs.Provider]*ProviderEntry, len(old.Providers))
	for p, e := range old.Providers {
		oldEntries[p] = e
	}

	for p, newEntry := range new.Providers {
		oldEntry, exists := oldEntries[p]
		if !exists {
			diff.Added = append(diff.Added, p)
			continue
		}
		if !oldEntry.Equal(newEntry) {
			diff.Changed = append(diff.Changed, EntryChange{
				Provider:   p,
				OldVersion: oldEntry.Version,
				NewVersion: newEntry.Version,
			})
		}
		delete(oldEntries, p)
	}

	for p := range oldEntries {
		diff.Removed = append(diff.Removed, p)
	}

	sortProviders(diff.Added)
	sortProviders(diff.Removed)
	sort.Slice(diff.Changed, func(i, j int) bool {
		return diff.Changed[i].Provider.Less(diff.Changed[j].Provider)
	})

	return diff
}

func sortProviders(providers []addrs.Provider) {
	sort.Slice(providers, func(i, j int) bool { return providers[i].Less(providers[j]) })
}

func sortedHashes(hashes []string) []string {
	out := append([]string(nil), hashes...)
	sort.Strings(out)
	return out
}
