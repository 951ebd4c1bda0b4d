// Package solver implements version selection for provider requirements.
//
// The solver is pure: it performs no I/O and holds no state between calls.
// Given one provider's requirements (constraint sets declared across a
// module tree), the versions a registry reports as available, an optional
// locked version, and a policy, it either selects exactly one version or
// explains why it cannot.
//
// # Algorithm Overview
//
// Selection for a provider proceeds in one pass over the available versions:
//
//  1. Every module's constraint set must accept the version. Constraint
//     sets combine with AND semantics, both within one module's declaration
//     and across modules: the satisfying set is the intersection of all
//     sets.
//  2. Prerelease versions are filtered out unless some module pins that
//     exact version (see below).
//  3. Yanked versions are filtered according to the policy (see below).
//  4. If a locked version exists it must be inside the satisfying set, and
//     it is selected even when newer satisfying versions exist. A locked
//     version outside the set is a hard error, never silently upgraded.
//  5. Otherwise the maximum satisfying version is selected.
//
// An empty satisfying set yields an [UnsatisfiableConstraintsError] carrying
// the full conflicting constraint set, per declaring module, for
// diagnostics.
//
// # Constraint Semantics
//
// Constraint strings hold one or more comma-separated clauses, each an
// operator and a version:
//
//	=   (or a bare version) exactly this version
//	!=  excludes this version
//	>, >=, <, <=            boundary comparisons
//	~>  pessimistic: allows only the rightmost version component to grow
//	    ("~> 1.2.3" admits 1.2.x >= 1.2.3, "~> 1.2" admits 1.x >= 1.2)
//
// Parsing and matching delegate to github.com/hashicorp/go-version.
//
// # Prerelease Versions
//
// A version carrying a prerelease suffix ("2.0.0-rc1") never matches range
// clauses, and is never chosen as the maximum of an unconstrained set. It is
// eligible only when some requirement pins it exactly ("= 2.0.0-rc1" or the
// bare "2.0.0-rc1"). Modules that want to stay on releases need no extra
// configuration for this; modules that want a prerelease must opt in
// per-version.
//
// # Yanked Versions
//
// A registry can mark published versions as yanked. The policy decides what
// that means for selection:
//
//   - [YankedAllow]: yanked versions stay eligible, silently.
//   - [YankedWarn]: yanked versions are not eligible for fresh selection,
//     but an allowlisted version, or one already pinned by the lock,
//     remains selectable with a warning recorded on the selection.
//   - [YankedError]: yanked versions are never selectable; a lock pinning
//     a yanked version fails with a [YankedVersionError].
//
// # Determinism
//
// Selection depends only on the request contents. Candidates are evaluated
// in descending version order and the annotated candidate list in the
// result preserves that order, so diagnostics render identically across
// runs.
package solver
