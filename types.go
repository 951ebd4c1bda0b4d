package provreq

import (
	"fmt"
	"sort"
	"strings"

	"github.com/provreq/go-provreq/addrs"
	"github.com/provreq/go-provreq/graph"
	"github.com/provreq/go-provreq/lockfile"
	"github.com/provreq/go-provreq/solver"
)

// Aliases for error types surfaced from subpackages, so most callers only
// need to import this package.
type (
	// MalformedAddressError reports a provider source address that could not
	// be parsed.
	MalformedAddressError = addrs.MalformedAddressError

	// UnsatisfiableConstraintsError reports version constraints with an
	// empty intersection.
	UnsatisfiableConstraintsError = solver.UnsatisfiableConstraintsError

	// LockMismatchError reports a lock entry the current resolution cannot
	// reproduce: a pinned version outside the satisfying set, or checksums
	// that disagree with the package.
	LockMismatchError = solver.LockMismatchError
)

// Result is the outcome of a resolution run.
type Result struct {
	// Providers lists every resolved provider, sorted by address.
	Providers []SelectedProvider `json:"providers"`

	// Summary provides aggregate statistics about the resolution.
	Summary Summary `json:"summary"`

	// Warnings contains non-fatal findings: yanked versions kept by policy,
	// deprecated providers, constraint drift.
	Warnings []string `json:"warnings,omitempty"`

	// Graph is the requirement graph behind the selections: which module
	// requires which provider under which constraint, and how each version
	// was decided. Use its rendering and query methods for diagnostics.
	Graph *graph.Graph `json:"-"`
}

// SelectedProvider is one provider's resolved state.
type SelectedProvider struct {
	// Provider is the fully-qualified source address.
	Provider addrs.Provider `json:"provider"`

	// Version is the selected version. Empty for built-in providers, which
	// are not version-solved.
	Version string `json:"version,omitempty"`

	// Constraints is the merged constraint set that produced the selection,
	// in display form.
	Constraints string `json:"constraints,omitempty"`

	// Hashes are the package checksums reported for the selected version.
	Hashes []string `json:"hashes,omitempty"`

	// RequiredBy lists the module paths requiring this provider, sorted.
	RequiredBy []string `json:"required_by"`

	// BuiltIn marks providers compiled into the tool. They carry no
	// version, no hashes, and never appear in the lock.
	BuiltIn bool `json:"builtin,omitempty"`

	// PinnedByLock is true when the lock file decided the version.
	PinnedByLock bool `json:"pinned_by_lock,omitempty"`

	// Yanked indicates the selected version is withdrawn in the registry.
	// Check YankReason for details.
	Yanked bool `json:"yanked,omitempty"`

	// YankReason explains why the version was yanked. Empty if not yanked.
	YankReason string `json:"yank_reason,omitempty"`

	// Deprecated indicates the provider as a whole is deprecated.
	Deprecated bool `json:"deprecated,omitempty"`

	// DeprecationReason explains why the provider is deprecated.
	DeprecationReason string `json:"deprecation_reason,omitempty"`
}

// Summary provides statistics about a resolution result.
type Summary struct {
	// TotalProviders is the count of resolved providers.
	TotalProviders int `json:"total_providers"`

	// RootProviders counts providers required directly by the root module.
	RootProviders int `json:"root_providers"`

	// ChildProviders counts providers required only by child modules.
	ChildProviders int `json:"child_providers"`

	// BuiltInProviders counts built-in providers.
	BuiltInProviders int `json:"builtin_providers,omitempty"`

	// LockedProviders counts providers whose version came from the lock.
	LockedProviders int `json:"locked_providers,omitempty"`

	// YankedProviders counts providers resolved to yanked versions.
	YankedProviders int `json:"yanked_providers,omitempty"`
}

// Provider returns the resolved state for an address, or nil when the
// address is not part of the result.
func (r *Result) Provider(addr addrs.Provider) *SelectedProvider {
	for i := range r.Providers {
		if r.Providers[i].Provider.Equals(addr) {
			return &r.Providers[i]
		}
	}
	return nil
}

// Lock builds an updated lock from the result. Built-in providers are
// skipped; they are never locked.
func (r *Result) Lock() *lockfile.Lock {
	selections := make([]lockfile.ProviderSelection, 0, len(r.Providers))
	for _, p := range r.Providers {
		if p.BuiltIn {
			continue
		}
		selections = append(selections, lockfile.ProviderSelection{
			Provider:    p.Provider,
			Version:     p.Version,
			Constraints: p.Constraints,
			Hashes:      p.Hashes,
		})
	}
	return lockfile.FromSelections(selections)
}

// YankedBehavior controls how yanked versions are handled during
// resolution. It is an alias of the solver's policy mode; the constants are
// re-exported here so callers configure everything through this package.
type YankedBehavior = solver.YankedMode

const (
	// YankedBehaviorWarn keeps yanked versions out of fresh selection, but
	// an allowlist entry or a lock pin readmits them with a warning. This is
	// the default.
	YankedBehaviorWarn = solver.YankedWarn

	// YankedBehaviorAllow treats yanked versions like any other. Yank
	// metadata is still populated in the result.
	YankedBehaviorAllow = solver.YankedAllow

	// YankedBehaviorError refuses any yanked selection, even one pinned by
	// the lock file.
	YankedBehaviorError = solver.YankedError
)

// ConstraintDriftMode controls how constraint drift is handled. The lock
// file records the constraint set in effect when a version was locked;
// drift means the configuration's constraints have changed since.
type ConstraintDriftMode int

const (
	// DriftIgnore disables drift checking (default).
	DriftIgnore ConstraintDriftMode = iota

	// DriftWarn adds a warning per drifted provider to the result.
	DriftWarn

	// DriftError fails resolution when any locked constraint set drifted.
	DriftError
)

// NetworkMode controls network access during resolution.
// This enables airgap and restricted network environments.
type NetworkMode int

const (
	// NetworkOnline allows unrestricted network access (default).
	NetworkOnline NetworkMode = iota

	// NetworkOffline disables all network access. Only mirror directories,
	// file:// registry URLs, and static sources can be used.
	NetworkOffline

	// NetworkAllowlist restricts HTTP requests to allowed hosts only.
	// Use with WithAllowedDomains to specify permitted hosts.
	NetworkAllowlist
)

// Resolution stages reported through ProgressEvent.
const (
	// StageWalk is the module tree walk that collects requirements.
	StageWalk = "walk"

	// StageVersions is the version index fetch for one provider.
	StageVersions = "versions"

	// StageSolve is the constraint solve for one provider.
	StageSolve = "solve"
)

// ProgressEvent reports one step of a resolution run to the optional
// progress callback. Events arrive from multiple goroutines; callbacks must
// be safe for concurrent use.
type ProgressEvent struct {
	// Stage is one of the Stage* constants.
	Stage string

	// Provider is set for stages that concern a single provider.
	Provider addrs.Provider

	// Message describes the step.
	Message string
}

// DuplicateLocalNameError reports a module that binds the same provider
// local name twice.
type DuplicateLocalNameError struct {
	// ModulePath is the path of the module with the collision.
	ModulePath string

	// LocalName is the name declared twice.
	LocalName string

	// Existing is the provider already bound to the name.
	Existing addrs.Provider

	// Claimed is the provider the second declaration names.
	Claimed addrs.Provider
}

func (e *DuplicateLocalNameError) Error() string {
	return fmt.Sprintf("module %s declares provider local name %q twice: first for %s, then for %s",
		e.ModulePath, e.LocalName, e.Existing.ForDisplay(), e.Claimed.ForDisplay())
}

// DuplicateProviderError reports a module that declares two local names for
// the same provider address.
type DuplicateProviderError struct {
	// ModulePath is the path of the module with the collision.
	ModulePath string

	// Provider is the address declared twice.
	Provider addrs.Provider

	// ExistingName and ClaimedName are the two local names.
	ExistingName string
	ClaimedName  string
}

func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("module %s declares provider %s under two local names: %q and %q",
		e.ModulePath, e.Provider.ForDisplay(), e.ExistingName, e.ClaimedName)
}

// AmbiguousImpliedProviderError reports a resource type prefix that matches
// more than one declared provider, so the implied provider cannot be
// inferred.
type AmbiguousImpliedProviderError struct {
	// ModulePath is the module whose resource triggered the inference.
	ModulePath string

	// Prefix is the resource type prefix being resolved.
	Prefix string

	// Matches lists the declared providers with that type, sorted.
	Matches []addrs.Provider
}

func (e *AmbiguousImpliedProviderError) Error() string {
	names := make([]string, len(e.Matches))
	for i, p := range e.Matches {
		names[i] = p.ForDisplay()
	}
	return fmt.Sprintf("module %s: resource type prefix %q matches multiple declared providers (%s); declare the resource's provider explicitly",
		e.ModulePath, e.Prefix, strings.Join(names, ", "))
}

// BuiltInProviderError reports an invalid declaration against a built-in
// provider. Built-in providers ship with the tool and are never fetched or
// version-solved.
type BuiltInProviderError struct {
	// ModulePath and LocalName locate the offending declaration.
	ModulePath string
	LocalName  string

	// Provider is the built-in address.
	Provider addrs.Provider

	// Detail explains what was wrong with the declaration.
	Detail string
}

func (e *BuiltInProviderError) Error() string {
	return fmt.Sprintf("module %s declares built-in provider %q (%s): %s",
		e.ModulePath, e.LocalName, e.Provider, e.Detail)
}

// CoreVersionConstraint is one failed required_core declaration.
type CoreVersionConstraint struct {
	// ModulePath is the module that declared the constraint.
	ModulePath string

	// Constraint is the constraint string that the running version fails.
	Constraint string
}

// CoreVersionError is returned when the running core version does not
// satisfy one or more modules' required_core constraints.
type CoreVersionError struct {
	// Running is the core version the check ran against.
	Running string

	// Failed lists the constraints the running version does not satisfy.
	Failed []CoreVersionConstraint
}

func (e *CoreVersionError) Error() string {
	if len(e.Failed) == 1 {
		f := e.Failed[0]
		return fmt.Sprintf("core version %s does not satisfy %q required by module %s",
			e.Running, f.Constraint, f.ModulePath)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "core version %s fails %d required_core constraints:", e.Running, len(e.Failed))
	for _, f := range e.Failed {
		fmt.Fprintf(&sb, "\n  - module %s requires %q", f.ModulePath, f.Constraint)
	}
	return sb.String()
}

// YankedVersionsError aggregates the providers that resolved to yanked
// versions when YankedBehaviorError is configured. Every failing provider is
// reported, not just the first.
type YankedVersionsError struct {
	// Selections lists the yanked selections, sorted by address.
	Selections []*solver.YankedVersionError
}

func (e *YankedVersionsError) Error() string {
	if len(e.Selections) == 1 {
		return e.Selections[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "resolution selected %d yanked versions:", len(e.Selections))
	for _, s := range e.Selections {
		sb.WriteString("\n  - ")
		sb.WriteString(s.Error())
	}
	return sb.String()
}

// ConstraintDrift records one provider whose locked constraint record no
// longer matches the configuration.
type ConstraintDrift struct {
	// Provider is the drifted provider.
	Provider addrs.Provider

	// Locked is the constraint string recorded in the lock entry.
	Locked string

	// Current is the constraint string the configuration produces now.
	Current string
}

// String renders the drift as a single-line warning.
func (d ConstraintDrift) String() string {
	return fmt.Sprintf("constraints for %s drifted from the lock: locked %q, configuration now has %q",
		d.Provider.ForDisplay(), d.Locked, d.Current)
}

// ConstraintDriftError is returned when locked constraint records disagree
// with the configuration and DriftError mode is configured.
type ConstraintDriftError struct {
	// Drifted lists the drifted providers, sorted by address.
	Drifted []ConstraintDrift
}

func (e *ConstraintDriftError) Error() string {
	if len(e.Drifted) == 1 {
		return e.Drifted[0].String()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d providers drifted from their locked constraints:", len(e.Drifted))
	for _, d := range e.Drifted {
		fmt.Fprintf(&sb, "\n  - %s: locked %q, configuration now has %q",
			d.Provider.ForDisplay(), d.Locked, d.Current)
	}
	return sb.String()
}

func sortedStrings(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
