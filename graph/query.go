package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Module returns the node for a module path, or nil when not present.
func (g *Graph) Module(path string) *ModuleNode {
	return g.Modules[path]
}

// Provider returns the node for a provider, or nil when not present.
func (g *Graph) Provider(provider Provider) *ProviderNode {
	return g.Providers[provider]
}

// HasProvider reports whether the provider participated in resolution.
func (g *Graph) HasProvider(provider Provider) bool {
	_, ok := g.Providers[provider]
	return ok
}

// ModulesRequiring returns the paths of modules that require the provider,
// sorted. The result is nil for unknown providers.
func (g *Graph) ModulesRequiring(provider Provider) []string {
	if node := g.Providers[provider]; node != nil {
		return node.RequiredBy
	}
	return nil
}

// RequirementsFor returns every requirement edge that targets the provider,
// ordered by module path.
func (g *Graph) RequirementsFor(provider Provider) []RequirementEdge {
	var edges []RequirementEdge
	for _, path := range g.sortedModulePaths() {
		for _, req := range g.Modules[path].Requirements {
			if req.Provider == provider {
				edges = append(edges, req)
			}
		}
	}
	return edges
}

// RequirementChains returns the path from the root to every module that
// requires the provider, with that module's local name and constraint.
func (g *Graph) RequirementChains(provider Provider) []RequirementChain {
	var chains []RequirementChain
	g.walkChains(g.RootPath, nil, func(path []string, node *ModuleNode) {
		for _, req := range node.Requirements {
			if req.Provider != provider {
				continue
			}
			chain := RequirementChain{
				Path:       append([]string(nil), path...),
				LocalName:  req.LocalName,
				Constraint: req.Constraint,
			}
			chains = append(chains, chain)
		}
	})
	return chains
}

// walkChains traverses the module tree depth-first, calling fn with the
// path from the root to each module. The visited set guards against
// malformed trees; a well-formed configuration has none.
func (g *Graph) walkChains(path string, sofar []string, fn func([]string, *ModuleNode)) {
	node := g.Modules[path]
	if node == nil {
		return
	}
	for _, seen := range sofar {
		if seen == path {
			return
		}
	}
	current := append(sofar, path)
	fn(current, node)
	for _, child := range node.Children {
		g.walkChains(child, current, fn)
	}
}

// Explain returns a detailed account of why a provider is at its selected
// version.
func (g *Graph) Explain(provider Provider) (*Explanation, error) {
	node := g.Providers[provider]
	if node == nil {
		return nil, fmt.Errorf("provider %q not in graph", provider.ForDisplay())
	}

	explanation := &Explanation{
		Provider:  provider,
		Selection: node.Selection,
		Chains:    g.RequirementChains(provider),
	}
	explanation.RequestSummary = g.buildRequestSummary(node)
	return explanation, nil
}

func (g *Graph) buildRequestSummary(node *ProviderNode) string {
	edges := g.RequirementsFor(node.Provider)
	if len(edges) == 0 {
		if node.Selection != nil {
			return fmt.Sprintf("%s is at version %s", node.Provider.ForDisplay(), node.Selection.SelectedVersion)
		}
		return fmt.Sprintf("%s has no requirements", node.Provider.ForDisplay())
	}

	var parts []string
	for _, path := range node.RequiredBy {
		module := g.Modules[path]
		if module == nil {
			continue
		}
		for _, req := range module.Requirements {
			if req.Provider != node.Provider {
				continue
			}
			constraint := req.Constraint
			if constraint == "" {
				constraint = "(any version)"
			}
			part := fmt.Sprintf("  %s requires %s as %q", path, constraint, req.LocalName)
			if req.Implied {
				part += " (implied)"
			}
			parts = append(parts, part)
		}
	}

	summary := fmt.Sprintf("%s requirements:\n%s", node.Provider.ForDisplay(), strings.Join(parts, "\n"))
	if node.Selection != nil {
		summary += fmt.Sprintf("\nSelected: %s (%s)", node.Selection.SelectedVersion, node.Selection.Strategy)
	}
	return summary
}

// CollectStats returns summary statistics about the graph.
func (g *Graph) CollectStats() Stats {
	stats := Stats{
		Modules:   len(g.Modules),
		Providers: len(g.Providers),
	}
	for _, node := range g.Modules {
		stats.RequirementEdges += len(node.Requirements)
	}
	for _, pn := range g.Providers {
		if pn.Selection == nil {
			continue
		}
		if pn.Selection.PinnedByLock {
			stats.LockPinned++
		}
		if pn.Selection.Yanked {
			stats.YankedSelections++
		}
	}
	stats.MaxDepth = g.maxDepth()
	return stats
}

func (g *Graph) maxDepth() int {
	var deepest int
	g.walkChains(g.RootPath, nil, func(path []string, _ *ModuleNode) {
		if depth := len(path) - 1; depth > deepest {
			deepest = depth
		}
	})
	return deepest
}

// sortedModulePaths returns every module path in lexical order for
// deterministic rendering.
func (g *Graph) sortedModulePaths() []string {
	paths := make([]string, 0, len(g.Modules))
	for path := range g.Modules {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// sortedProviders returns every provider in address order.
func (g *Graph) sortedProviders() []Provider {
	providers := make([]Provider, 0, len(g.Providers))
	for p := range g.Providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Less(providers[j])
	})
	return providers
}
