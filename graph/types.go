package graph

import (
	"fmt"

	"github.com/provreq/go-provreq/addrs"
	"github.com/provreq/go-provreq/solver"
)

// Provider is an alias for addrs.Provider so graph consumers need only one
// import for common queries.
type Provider = addrs.Provider

// VersionCandidate is an alias for the solver's per-version annotation; the
// graph carries it through unchanged for explanation output.
type VersionCandidate = solver.VersionCandidate

// Graph is a resolved requirement graph. It supports traversal in both
// directions: from modules to the providers they require, and from providers
// back to the modules that require them.
type Graph struct {
	// RootPath is the root module's path ("<root>").
	RootPath string

	// Modules contains every module in the configuration tree, keyed by
	// module path.
	Modules map[string]*ModuleNode

	// Providers contains every provider that participated in resolution,
	// keyed by source address.
	Providers map[Provider]*ProviderNode
}

// ModuleNode is one module in the configuration tree.
type ModuleNode struct {
	// Path is the module's address in the tree ("<root>.network").
	Path string

	// Children lists the paths of directly nested modules, sorted.
	Children []string

	// Requirements lists this module's provider requirements, in
	// declaration order.
	Requirements []RequirementEdge

	// IsRoot is true for the root module.
	IsRoot bool
}

// RequirementEdge is one module's requirement on one provider.
type RequirementEdge struct {
	// Provider is the required provider's source address.
	Provider Provider

	// LocalName is the name the module uses for the provider.
	LocalName string

	// Constraint is the declared version constraint, empty when the module
	// accepts any version.
	Constraint string

	// Implied marks requirements synthesized from resource usage rather
	// than declared in required_providers.
	Implied bool
}

// ProviderNode is one provider in the graph.
type ProviderNode struct {
	// Provider is the source address.
	Provider Provider

	// RequiredBy lists the paths of modules that require this provider,
	// sorted.
	RequiredBy []string

	// Selection explains the version decision, nil when resolution failed
	// before selecting.
	Selection *SelectionInfo
}

// SelectionInfo explains why a provider landed on its selected version.
type SelectionInfo struct {
	// SelectedVersion is the version resolution chose.
	SelectedVersion string

	// Strategy is how the version was chosen.
	Strategy SelectionStrategy

	// DecidingFactor explains what determined the selection.
	DecidingFactor string

	// PinnedByLock is true when the lock file decided the version.
	PinnedByLock bool

	// Yanked is true when the selected version is yanked.
	Yanked bool

	// Candidates annotates every version that was considered, newest first.
	Candidates []VersionCandidate
}

// SelectionStrategy indicates how a version was selected.
type SelectionStrategy string

const (
	// StrategyMaximum indicates the newest version satisfying every
	// constraint was selected.
	StrategyMaximum SelectionStrategy = "maximum"

	// StrategyLock indicates the lock file pinned the version.
	StrategyLock SelectionStrategy = "lock"
)

// Explanation is a detailed account of one provider's version selection.
type Explanation struct {
	// Provider is the provider being explained.
	Provider Provider

	// Selection explains how the version was selected.
	Selection *SelectionInfo

	// Chains shows every requirement path from the root to a module that
	// requires the provider.
	Chains []RequirementChain

	// RequestSummary summarizes the declared constraints per module.
	RequestSummary string
}

// RequirementChain is a path of modules from the root to a module that
// requires a provider.
type RequirementChain struct {
	// Path is the sequence of module paths, root first.
	Path []string

	// LocalName is the name the final module uses for the provider.
	LocalName string

	// Constraint is the final module's declared constraint.
	Constraint string
}

// String returns a human-readable representation of the chain.
func (c RequirementChain) String() string {
	if len(c.Path) == 0 {
		return ""
	}
	result := c.Path[0]
	for i := 1; i < len(c.Path); i++ {
		result += " -> " + c.Path[i]
	}
	if c.Constraint != "" {
		result += fmt.Sprintf(" (requires %s)", c.Constraint)
	}
	return result
}

// Stats summarizes the graph's shape.
type Stats struct {
	// Modules is the number of modules in the tree.
	Modules int

	// Providers is the number of distinct providers.
	Providers int

	// RequirementEdges is the total number of module-to-provider edges.
	RequirementEdges int

	// MaxDepth is the deepest module nesting level, zero for a lone root.
	MaxDepth int

	// LockPinned is the number of providers whose version came from the
	// lock file.
	LockPinned int

	// YankedSelections is the number of providers resolved to a yanked
	// version.
	YankedSelections int
}
