package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/provreq/go-provreq/addrs"
)

// Lock is the in-memory form of a provider dependency lock file.
type Lock struct {
	// Version is the lock file format version. See CurrentVersion.
	Version int `json:"version"`

	// Providers maps fully-qualified provider addresses to their pinned
	// state. The JSON form keys entries by the address string.
	Providers map[addrs.Provider]*ProviderEntry `json:"providers"`
}

// ProviderEntry is the pinned state of a single provider.
type ProviderEntry struct {
	// Version is the exact version selected on a previous run.
	Version string `json:"version"`

	// Constraints records the constraint set that was in effect when the
	// version was selected. Informational only: reconciliation checks the
	// current configuration's constraints, not this copy.
	Constraints string `json:"constraints,omitempty"`

	// Hashes are the package checksums observed for this version, in
	// "scheme:value" form (e.g. "h1:..." directory hashes, "zh:..." archive
	// hashes). Multiple schemes and platforms may contribute hashes.
	Hashes []string `json:"hashes,omitempty"`
}

// New returns an empty lock at the current format version.
func New() *Lock {
	return &Lock{
		Version:   CurrentVersion,
		Providers: make(map[addrs.Provider]*ProviderEntry),
	}
}

// Entry returns the pinned state for a provider, or nil when the provider is
// not locked.
func (l *Lock) Entry(provider addrs.Provider) *ProviderEntry {
	return l.Providers[provider]
}

// HasEntry reports whether the provider is locked.
func (l *Lock) HasEntry(provider addrs.Provider) bool {
	_, ok := l.Providers[provider]
	return ok
}

// SetEntry pins a provider. A nil entry removes the pin.
func (l *Lock) SetEntry(provider addrs.Provider, entry *ProviderEntry) {
	if l.Providers == nil {
		l.Providers = make(map[addrs.Provider]*ProviderEntry)
	}
	if entry == nil {
		delete(l.Providers, provider)
		return
	}
	l.Providers[provider] = entry
}

// RemoveEntry removes a provider's pin if present.
func (l *Lock) RemoveEntry(provider addrs.Provider) {
	delete(l.Providers, provider)
}

// Len returns the number of locked providers.
func (l *Lock) Len() int {
	return len(l.Providers)
}

// SortedProviders returns all locked provider addresses in stable order.
func (l *Lock) SortedProviders() []addrs.Provider {
	providers := make([]addrs.Provider, 0, len(l.Providers))
	for p := range l.Providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Less(providers[j]) })
	return providers
}

// Equal reports whether two entries pin the same version with the same
// hash set. Constraint strings are ignored; they are informational.
func (e *ProviderEntry) Equal(other *ProviderEntry) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Version != other.Version || len(e.Hashes) != len(other.Hashes) {
		return false
	}
	a := append([]string(nil), e.Hashes...)
	b := append([]string(nil), other.Hashes...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HashScheme returns the scheme prefix of a checksum string ("h1", "zh"),
// or "" when the string carries no scheme.
func HashScheme(hash string) string {
	idx := strings.Index(hash, ":")
	if idx <= 0 {
		return ""
	}
	return hash[:idx]
}

// ValidHash reports whether a checksum string is well formed: a non-empty
// lowercase scheme, a colon, and a non-empty value.
func ValidHash(hash string) bool {
	scheme := HashScheme(hash)
	if scheme == "" || strings.ToLower(scheme) != scheme {
		return false
	}
	return len(hash) > len(scheme)+1
}

// HashesIntersect reports whether two hash sets share at least one checksum.
// Used by reconciliation: a locked provider's hashes must intersect what the
// source reports for the same version.
func HashesIntersect(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, h := range a {
		set[h] = true
	}
	for _, h := range b {
		if set[h] {
			return true
		}
	}
	return false
}

// ZipHash computes the archive-content checksum of package data and returns
// it in "zh:" form.
func ZipHash(data []byte) string {
	h := sha256.Sum256(data)
	return "zh:" + hex.EncodeToString(h[:])
}

// UnsupportedVersionError indicates a lock file written by an unknown format
// revision.
type UnsupportedVersionError struct {
	Found int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported lock file format version %d (supported: %s)", e.Found, supportedVersionList())
}
