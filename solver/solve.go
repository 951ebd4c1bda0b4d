package solver

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"

	"github.com/provreq/go-provreq/addrs"
)

// maxAvailableSample caps the version lists embedded in errors so a
// provider with hundreds of releases still produces a readable message.
const maxAvailableSample = 15

// Solve picks a version for one provider, or explains why it cannot.
//
// The algorithm:
//  1. Order the available versions newest first.
//  2. Annotate every version: does it satisfy all constraints, does it
//     survive prerelease gating, does it survive the yanked policy.
//  3. If the lock pins a version, it must satisfy the constraints; then it
//     wins even when newer satisfying versions exist.
//  4. Otherwise select the newest eligible version.
//
// Solve never performs I/O. Checksum verification happens in the caller,
// which has the package metadata; Solve only decides versions.
func Solve(req Request) (*Selection, error) {
	if len(req.Available) == 0 {
		return nil, &UnsatisfiableConstraintsError{
			Provider:     req.Provider,
			Requirements: req.Requirements,
			Notes:        []string{"the source reported no versions for this provider"},
		}
	}

	policy := req.Policy
	if policy == nil {
		policy = &Policy{Yanked: YankedWarn}
	}

	// Step 1: order candidates newest first so "first eligible" below is
	// "maximum eligible", and so diagnostics render in a stable order.
	sorted := sortCandidatesDescending(req.Available)

	// Step 2: collect the exactly-pinned versions across all requirements.
	// Only these may be prereleases.
	exactPins := make(map[string]bool)
	for _, r := range req.Requirements {
		for _, v := range r.ExactVersions() {
			exactPins[v] = true
		}
	}

	lockedCanonical := ""
	if req.LockedVersion != "" {
		if v, err := goversion.NewVersion(req.LockedVersion); err == nil {
			lockedCanonical = v.String()
		}
	}

	// Step 3: annotate every candidate with its fate. The satisfying set
	// (constraints only) feeds the lock check; eligibility additionally
	// applies prerelease gating and the yanked policy.
	annotated := make([]VersionCandidate, 0, len(sorted))
	var satisfying []string
	var lockedCandidate *Candidate
	var selected *Candidate
	var notes []string

	for i := range sorted {
		c := &sorted[i]
		vc := VersionCandidate{
			Version: c.Version.String(),
			Yanked:  c.Yanked,
		}

		if rejectedBy, raw := firstRejection(req.Requirements, c.Version); rejectedBy != "" {
			vc.RejectedBy = rejectedBy
			vc.Reason = fmt.Sprintf("does not satisfy %q", raw)
			annotated = append(annotated, vc)
			continue
		}
		vc.Satisfies = true
		satisfying = append(satisfying, vc.Version)

		if vc.Version == lockedCanonical {
			lockedCandidate = c
		}

		if c.Version.Prerelease() != "" && !exactPins[vc.Version] {
			vc.Reason = "prerelease; not pinned exactly by any module"
			notes = appendNote(notes, fmt.Sprintf(
				"version %s is a prerelease and only an exact constraint can select it", vc.Version))
			annotated = append(annotated, vc)
			continue
		}

		if c.Yanked && policy.Yanked != YankedAllow {
			readmitted := policy.Yanked == YankedWarn && policy.yankedAllowed(req.Provider, c.Version)
			if !readmitted {
				vc.Reason = yankedReason(c)
				notes = appendNote(notes, fmt.Sprintf(
					"version %s is %s", vc.Version, yankedReason(c)))
				annotated = append(annotated, vc)
				continue
			}
		}

		vc.Eligible = true
		if selected == nil {
			selected = c
		}
		annotated = append(annotated, vc)
	}

	// Step 4: the lock wins when it can. A pinned version outside the
	// satisfying set is a hard error, never a silent upgrade.
	if req.LockedVersion != "" {
		if lockedCandidate == nil {
			return nil, &LockMismatchError{
				Provider:           req.Provider,
				Reason:             LockMismatchVersion,
				LockedVersion:      req.LockedVersion,
				SatisfyingVersions: sampleVersions(satisfying),
			}
		}
		return selectCandidate(req.Provider, lockedCandidate, true, policy, annotated)
	}

	if selected != nil {
		return selectCandidate(req.Provider, selected, false, policy, annotated)
	}

	return nil, &UnsatisfiableConstraintsError{
		Provider:     req.Provider,
		Requirements: req.Requirements,
		Available:    sampleVersions(versionStrings(sorted)),
		Notes:        notes,
	}
}

// selectCandidate finalizes a selection, applying the yanked policy to the
// chosen version and recording warnings.
func selectCandidate(provider addrs.Provider, c *Candidate, pinnedByLock bool, policy *Policy, annotated []VersionCandidate) (*Selection, error) {
	sel := &Selection{
		Provider:     provider,
		Version:      c.Version,
		PinnedByLock: pinnedByLock,
		Yanked:       c.Yanked,
		YankReason:   c.YankReason,
		Candidates:   annotated,
	}

	// A lock pin can select a version the fresh-selection gates refused;
	// the annotated list reflects the final outcome.
	if pinnedByLock {
		chosen := c.Version.String()
		for i := range sel.Candidates {
			if sel.Candidates[i].Version == chosen {
				sel.Candidates[i].Eligible = true
				sel.Candidates[i].Reason = ""
			}
		}
	}

	if !c.Yanked {
		return sel, nil
	}

	switch policy.Yanked {
	case YankedError:
		return nil, &YankedVersionError{
			Provider:     provider,
			Version:      c.Version.String(),
			Reason:       c.YankReason,
			PinnedByLock: pinnedByLock,
		}
	case YankedWarn:
		why := "allowed by policy"
		if pinnedByLock {
			why = "the lock file pins it"
		}
		sel.Warnings = append(sel.Warnings, fmt.Sprintf(
			"selected version %s of %s is %s; %s",
			c.Version, provider.ForDisplay(), yankedReason(c), why))
	case YankedAllow:
		// Selectable silently.
	}
	return sel, nil
}

// firstRejection returns the first module whose constraints refuse the
// version, with the raw constraint string, or empty strings when every
// requirement accepts it.
func firstRejection(reqs []Requirement, v *goversion.Version) (declaredBy, raw string) {
	for _, r := range reqs {
		if r.Constraints == nil {
			continue
		}
		if !r.Constraints.Check(v) {
			return r.DeclaredBy, r.Raw
		}
	}
	return "", ""
}

func yankedReason(c *Candidate) string {
	if c.YankReason == "" {
		return "yanked"
	}
	return "yanked: " + c.YankReason
}

// appendNote keeps error notes duplicate-free while preserving order.
func appendNote(notes []string, note string) []string {
	for _, existing := range notes {
		if existing == note {
			return notes
		}
	}
	return append(notes, note)
}

func versionStrings(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Version.String()
	}
	return out
}

// sampleVersions truncates long version lists for error messages.
func sampleVersions(versions []string) []string {
	if len(versions) <= maxAvailableSample {
		return versions
	}
	sample := make([]string, maxAvailableSample+1)
	copy(sample, versions[:maxAvailableSample])
	sample[maxAvailableSample] = fmt.Sprintf("and %d more", len(versions)-maxAvailableSample)
	return sample
}
