package provreq

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/provreq/go-provreq/addrs"
)

// LocalNames is one module's table of provider local names. Local names are
// module-scoped: the same name may mean different providers in different
// modules. The table is injective in both directions: a local name binds
// exactly one address, and an address has exactly one local name.
type LocalNames struct {
	modulePath string
	byName     map[string]addrs.Provider
	byProvider map[addrs.Provider]string
}

// NewLocalNames creates an empty table for the module at the given path.
func NewLocalNames(modulePath string) *LocalNames {
	return &LocalNames{
		modulePath: modulePath,
		byName:     make(map[string]addrs.Provider),
		byProvider: make(map[addrs.Provider]string),
	}
}

// ModulePath returns the path of the module this table belongs to.
func (t *LocalNames) ModulePath() string {
	return t.modulePath
}

// Declare binds a local name to a provider address. Redeclaring the same
// pair is a no-op. A taken name fails with DuplicateLocalNameError; an
// address that already has a different name fails with
// DuplicateProviderError.
func (t *LocalNames) Declare(localName string, provider addrs.Provider) error {
	if err := addrs.ValidateLocalName(localName); err != nil {
		return fmt.Errorf("module %s: %w", t.modulePath, err)
	}
	if provider.IsZero() {
		return fmt.Errorf("module %s: local name %q declares no provider address", t.modulePath, localName)
	}

	if existing, ok := t.byName[localName]; ok {
		if existing.Equals(provider) {
			return nil
		}
		return &DuplicateLocalNameError{
			ModulePath: t.modulePath,
			LocalName:  localName,
			Existing:   existing,
			Claimed:    provider,
		}
	}
	if existingName, ok := t.byProvider[provider]; ok {
		return &DuplicateProviderError{
			ModulePath:   t.modulePath,
			Provider:     provider,
			ExistingName: existingName,
			ClaimedName:  localName,
		}
	}

	t.byName[localName] = provider
	t.byProvider[provider] = localName
	return nil
}

// Provider returns the address bound to a local name.
func (t *LocalNames) Provider(localName string) (addrs.Provider, bool) {
	p, ok := t.byName[localName]
	return p, ok
}

// LocalName returns the local name bound to an address.
func (t *LocalNames) LocalName(provider addrs.Provider) (string, bool) {
	name, ok := t.byProvider[provider]
	return name, ok
}

// Len returns the number of declared providers.
func (t *LocalNames) Len() int {
	return len(t.byName)
}

// Names returns the declared local names, sorted.
func (t *LocalNames) Names() []string {
	return slices.Sorted(maps.Keys(t.byName))
}

// ResolveImplicit resolves the provider a resource type prefix implies.
// A declared local name equal to the prefix wins. Otherwise the declared
// providers whose type part equals the prefix are considered: exactly one
// match means that provider, several mean AmbiguousImpliedProviderError.
// With no declared match the prefix implies a provider in the default
// namespace, and declared is false so callers can record the requirement as
// implied.
func (t *LocalNames) ResolveImplicit(prefix string) (provider addrs.Provider, declared bool, err error) {
	if !addrs.IsValidLocalName(prefix) {
		return addrs.Provider{}, false, fmt.Errorf(
			"module %s: cannot infer a provider from resource type prefix %q", t.modulePath, prefix)
	}

	if p, ok := t.byName[prefix]; ok {
		return p, true, nil
	}

	var matches []addrs.Provider
	for p := range t.byProvider {
		if p.Type() == prefix {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return addrs.NewDefaultProvider(prefix), false, nil
	case 1:
		return matches[0], true, nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i].Less(matches[j]) })
		return addrs.Provider{}, false, &AmbiguousImpliedProviderError{
			ModulePath: t.modulePath,
			Prefix:     prefix,
			Matches:    matches,
		}
	}
}
