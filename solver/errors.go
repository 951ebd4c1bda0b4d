package solver

import (
	"fmt"
	"strings"

	"github.com/provreq/go-provreq/addrs"
)

// UnsatisfiableConstraintsError reports that no available version satisfies
// every module's constraints for a provider. It carries the full conflicting
// constraint set so callers can show which modules disagree.
type UnsatisfiableConstraintsError struct {
	Provider addrs.Provider

	// Requirements holds every declared constraint, including the ones that
	// individually match some version.
	Requirements []Requirement

	// Available samples the versions that were considered, newest first.
	Available []string

	// Notes adds context ("all candidate versions are yanked", ...).
	Notes []string
}

func (e *UnsatisfiableConstraintsError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no available version of %s satisfies all constraints:", e.Provider.ForDisplay())
	for _, req := range e.Requirements {
		constraint := req.Raw
		if constraint == "" {
			constraint = "(any version)"
		}
		fmt.Fprintf(&b, "\n  %s requires %s", req.DeclaredBy, constraint)
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, "\navailable versions: %s", strings.Join(e.Available, ", "))
	}
	for _, note := range e.Notes {
		fmt.Fprintf(&b, "\n%s", note)
	}
	return b.String()
}

// Reasons a lock entry can disagree with the current resolution.
const (
	// LockMismatchVersion means the locked version is no longer in the
	// satisfying set, because constraints changed or the registry no longer
	// offers it.
	LockMismatchVersion = "version"

	// LockMismatchChecksum means the locked version resolved but the
	// package checksums do not intersect the locked hashes.
	LockMismatchChecksum = "checksum"
)

// LockMismatchError reports that the lock file pins state the current
// resolution cannot reproduce. It is never resolved silently; callers decide
// whether to re-lock.
type LockMismatchError struct {
	Provider addrs.Provider

	// Reason is [LockMismatchVersion] or [LockMismatchChecksum].
	Reason string

	// LockedVersion is the version the lock pins.
	LockedVersion string

	// SatisfyingVersions lists the versions the constraints admit today,
	// newest first. Set for version mismatches.
	SatisfyingVersions []string

	// LockedHashes and ReportedHashes hold the disagreeing checksum sets.
	// Set for checksum mismatches.
	LockedHashes   []string
	ReportedHashes []string
}

func (e *LockMismatchError) Error() string {
	switch e.Reason {
	case LockMismatchChecksum:
		return fmt.Sprintf(
			"locked checksums for %s %s do not match the package: locked %s, reported %s",
			e.Provider.ForDisplay(), e.LockedVersion,
			strings.Join(e.LockedHashes, ", "), strings.Join(e.ReportedHashes, ", "),
		)
	default:
		msg := fmt.Sprintf(
			"locked version %s of %s does not satisfy the current constraints",
			e.LockedVersion, e.Provider.ForDisplay(),
		)
		if len(e.SatisfyingVersions) > 0 {
			msg += fmt.Sprintf(" (satisfying versions: %s)", strings.Join(e.SatisfyingVersions, ", "))
		}
		return msg
	}
}

// YankedVersionError reports that selection would land on a yanked version
// while the policy forbids it.
type YankedVersionError struct {
	Provider addrs.Provider
	Version  string

	// Reason is the registry's yank reason, empty when none was given.
	Reason string

	// PinnedByLock marks that the yanked version came from the lock file
	// rather than fresh selection.
	PinnedByLock bool
}

func (e *YankedVersionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "version %s of %s is yanked", e.Version, e.Provider.ForDisplay())
	if e.Reason != "" {
		fmt.Fprintf(&b, " (%s)", e.Reason)
	}
	if e.PinnedByLock {
		b.WriteString("; the lock file pins it")
	}
	return b.String()
}
