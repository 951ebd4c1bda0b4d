package solver

import (
	"sort"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/provreq/go-provreq/addrs"
)

// Requirement is one module's version constraint set for a provider.
//
// A module that depends on a provider without naming a constraint still
// contributes a Requirement with a nil Constraints set; it participates in
// "required by" diagnostics without narrowing the satisfying set.
type Requirement struct {
	// DeclaredBy names the module that declared the requirement, for
	// diagnostics ("<root>", "<root>.network", ...).
	DeclaredBy string

	// Raw is the constraint string as written ("~> 5.0"), empty when the
	// module declared no constraint.
	Raw string

	// Constraints is the parsed form of Raw, nil when Raw is empty.
	Constraints goversion.Constraints

	// Implied marks requirements synthesized from resource usage rather
	// than declared explicitly.
	Implied bool
}

// ParseRequirement parses a constraint string into a Requirement. An empty
// raw string yields an unconstrained requirement.
func ParseRequirement(declaredBy, raw string, implied bool) (Requirement, error) {
	req := Requirement{DeclaredBy: declaredBy, Raw: raw, Implied: implied}
	if strings.TrimSpace(raw) == "" {
		req.Raw = ""
		return req, nil
	}
	constraints, err := goversion.NewConstraint(raw)
	if err != nil {
		return Requirement{}, err
	}
	req.Constraints = constraints
	return req, nil
}

// ExactVersions returns the canonical versions this requirement pins
// exactly, via "= 1.2.3" or a bare "1.2.3" clause. Range clauses contribute
// nothing. The result feeds prerelease gating: a prerelease is eligible only
// if some requirement names it here.
func (r Requirement) ExactVersions() []string {
	if r.Raw == "" {
		return nil
	}
	var exact []string
	for _, clause := range strings.Split(r.Raw, ",") {
		clause = strings.TrimSpace(clause)
		rest, ok := strings.CutPrefix(clause, "=")
		if ok {
			clause = strings.TrimSpace(rest)
		} else if strings.ContainsAny(clause, "><!~") {
			continue
		}
		v, err := goversion.NewVersion(clause)
		if err != nil {
			continue
		}
		exact = append(exact, v.String())
	}
	return exact
}

// RequirementsString renders a requirement list as a single constraint
// string for display and lock files. Duplicate raws collapse; unconstrained
// requirements contribute nothing.
func RequirementsString(reqs []Requirement) string {
	seen := make(map[string]bool)
	var parts []string
	for _, req := range reqs {
		if req.Raw == "" || seen[req.Raw] {
			continue
		}
		seen[req.Raw] = true
		parts = append(parts, req.Raw)
	}
	return strings.Join(parts, ", ")
}

// Candidate is one version a source reports as available, with its yank
// state.
type Candidate struct {
	Version    *goversion.Version
	Yanked     bool
	YankReason string
}

// YankedMode controls how yanked versions participate in selection.
type YankedMode int

const (
	// YankedWarn keeps yanked versions out of fresh selection but lets an
	// allowlisted or lock-pinned yanked version through with a warning.
	YankedWarn YankedMode = iota

	// YankedAllow treats yanked versions like any other.
	YankedAllow

	// YankedError refuses yanked versions outright, including locked ones.
	YankedError
)

// String returns the mode name used in logs and option parsing.
func (m YankedMode) String() string {
	switch m {
	case YankedAllow:
		return "allow"
	case YankedWarn:
		return "warn"
	case YankedError:
		return "error"
	default:
		return "unknown"
	}
}

// Policy carries the knobs that bend selection away from the pure
// constraint algebra.
type Policy struct {
	Yanked YankedMode

	// allowAll marks every yanked version of every provider as allowlisted.
	allowAll bool

	// allowed holds "provider@version" keys readmitted under YankedWarn.
	allowed map[string]bool
}

// AllowYankedVersion allowlists one yanked version of one provider. Under
// [YankedWarn] the version becomes selectable again, with a warning.
func (p *Policy) AllowYankedVersion(provider addrs.Provider, version string) {
	if p.allowed == nil {
		p.allowed = make(map[string]bool)
	}
	canonical := version
	if v, err := goversion.NewVersion(version); err == nil {
		canonical = v.String()
	}
	p.allowed[provider.String()+"@"+canonical] = true
}

// AllowAllYankedVersions allowlists every yanked version.
func (p *Policy) AllowAllYankedVersions() {
	p.allowAll = true
}

// yankedAllowed reports whether a yanked version was explicitly readmitted.
func (p *Policy) yankedAllowed(provider addrs.Provider, version *goversion.Version) bool {
	if p == nil {
		return false
	}
	if p.allowAll {
		return true
	}
	if p.allowed == nil {
		return false
	}
	return p.allowed[provider.String()+"@"+version.String()]
}

// Request is everything Solve needs to pick a version for one provider.
type Request struct {
	Provider addrs.Provider

	// Requirements holds every module's constraint set for the provider.
	Requirements []Requirement

	// Available lists the versions a source reported, in any order.
	Available []Candidate

	// LockedVersion pins the previously selected version, empty when the
	// provider has no lock entry.
	LockedVersion string

	// Policy holds yanked-version handling; a nil policy means YankedWarn
	// with an empty allowlist.
	Policy *Policy
}

// VersionCandidate records how one available version fared during
// selection, for explanation output.
type VersionCandidate struct {
	Version string
	Yanked  bool

	// Satisfies reports whether every requirement accepted the version.
	Satisfies bool

	// Eligible reports whether the version survived prerelease gating and
	// yank policy in addition to the constraints.
	Eligible bool

	// RejectedBy names the first module whose constraints refused the
	// version, empty when Satisfies is true.
	RejectedBy string

	// Reason summarizes the rejection ("does not satisfy ~> 5.0",
	// "yanked: CVE-2024-1234", "prerelease not pinned exactly").
	Reason string
}

// Selection is the outcome of solving one provider.
type Selection struct {
	Provider addrs.Provider

	// Version is the selected version.
	Version *goversion.Version

	// PinnedByLock reports that the version came from the lock rather than
	// fresh maximum selection.
	PinnedByLock bool

	// Yanked carries the yank state of the selected version, with the
	// registry's reason when one was given.
	Yanked     bool
	YankReason string

	// Candidates annotates every available version with its fate, in
	// descending version order.
	Candidates []VersionCandidate

	// Warnings lists human-readable notes (yanked selections under
	// YankedWarn, and similar) for the caller to log.
	Warnings []string
}

// sortCandidatesDescending orders candidates newest first, with a stable
// tiebreak on the original string so equal versions keep input order.
func sortCandidatesDescending(available []Candidate) []Candidate {
	sorted := make([]Candidate, len(available))
	copy(sorted, available)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version.GreaterThan(sorted[j].Version)
	})
	return sorted
}
