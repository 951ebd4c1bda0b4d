package lockfile

import (
	"fmt"

	"github.com/provreq/go-provreq/addrs"
)

// MergeStrategy defines how to handle conflicts when merging lock files.
type MergeStrategy int

const (
	// MergePreferExisting keeps existing entries on conflict.
	MergePreferExisting MergeStrategy = iota

	// MergePreferNew overwrites with new entries on conflict.
	MergePreferNew

	// MergeErrorOnConflict returns an error if entries differ.
	MergeErrorOnConflict
)

// MergeOptions configures lock file merge behavior.
type MergeOptions struct {
	// Strategy determines how conflicts are resolved.
	Strategy MergeStrategy

	// VerifyHashes requires that entries pinning the same version share at
	// least one checksum; disjoint hash sets fail the merge regardless of
	// Strategy, since they indicate two different packages claiming one
	// version.
	VerifyHashes bool
}

// DefaultMergeOptions returns sensible defaults for merging.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		Strategy:     MergePreferNew,
		VerifyHashes: true,
	}
}

// Merge combines another lock into this one, entry by entry. Entries present
// only in other are always adopted; entries present in both are resolved
// according to the strategy. Hashes of agreeing entries are unioned.
func (l *Lock) Merge(other *Lock, opts MergeOptions) error {
	if other == nil {
		return nil
	}
	if l.Providers == nil {
		l.Providers = make(map[addrs.Provider]*ProviderEntry)
	}

	for _, provider := range other.SortedProviders() {
		newEntry := other.Providers[provider]
		existing, exists := l.Providers[provider]
		if !exists {
			l.Providers[provider] = cloneEntry(newEntry)
			continue
		}

		if existing.Version == newEntry.Version {
			if opts.VerifyHashes && len(existing.Hashes) > 0 && len(newEntry.Hashes) > 0 &&
				!HashesIntersect(existing.Hashes, newEntry.Hashes) {
				return fmt.Errorf("hash conflict for %s@%s: no checksum in common", provider, existing.Version)
			}
			existing.Hashes = unionHashes(existing.Hashes, newEntry.Hashes)
			if existing.Constraints == "" {
				existing.Constraints = newEntry.Constraints
			}
			continue
		}

		switch opts.Strategy {
		case MergePreferExisting:
			// Keep existing
		case MergePreferNew:
			l.Providers[provider] = cloneEntry(newEntry)
		case MergeErrorOnConflict:
			return fmt.Errorf("version conflict for %s: existing=%s, new=%s",
				provider, existing.Version, newEntry.Version)
		}
	}

	return nil
}

func cloneEntry(e *ProviderEntry) *ProviderEntry {
	clone := *e
	clone.Hashes = append([]string(nil), e.Hashes...)
	return &clone
}

func unionHashes(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, h := range a {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	for _, h := range b {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return sortedHashes(out)
}
