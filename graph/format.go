package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const separatorWidth = 60 // Width of separator lines in text output

// jsonGraph is the serialized graph shape.
type jsonGraph struct {
	Root      string         `json:"root"`
	Modules   []jsonModule   `json:"modules"`
	Providers []jsonProvider `json:"providers"`
}

type jsonModule struct {
	Path         string            `json:"path"`
	Children     []string          `json:"children,omitempty"`
	Requirements []jsonRequirement `json:"requirements,omitempty"`
}

type jsonRequirement struct {
	Provider   string `json:"provider"`
	LocalName  string `json:"local_name"`
	Constraint string `json:"constraint,omitempty"`
	Implied    bool   `json:"implied,omitempty"`
}

type jsonProvider struct {
	Source       string             `json:"source"`
	Version      string             `json:"version,omitempty"`
	Strategy     string             `json:"strategy,omitempty"`
	PinnedByLock bool               `json:"pinned_by_lock,omitempty"`
	Yanked       bool               `json:"yanked,omitempty"`
	RequiredBy   []string           `json:"required_by,omitempty"`
	Candidates   []VersionCandidate `json:"candidates,omitempty"`
}

// ToJSON serializes the graph with stable ordering: modules by path,
// providers by address.
func (g *Graph) ToJSON() ([]byte, error) {
	out := jsonGraph{Root: g.RootPath}

	for _, path := range g.sortedModulePaths() {
		node := g.Modules[path]
		jm := jsonModule{Path: path, Children: node.Children}
		for _, req := range node.Requirements {
			jm.Requirements = append(jm.Requirements, jsonRequirement{
				Provider:   req.Provider.String(),
				LocalName:  req.LocalName,
				Constraint: req.Constraint,
				Implied:    req.Implied,
			})
		}
		out.Modules = append(out.Modules, jm)
	}

	for _, provider := range g.sortedProviders() {
		node := g.Providers[provider]
		jp := jsonProvider{
			Source:     provider.String(),
			RequiredBy: node.RequiredBy,
		}
		if sel := node.Selection; sel != nil {
			jp.Version = sel.SelectedVersion
			jp.Strategy = string(sel.Strategy)
			jp.PinnedByLock = sel.PinnedByLock
			jp.Yanked = sel.Yanked
			jp.Candidates = sel.Candidates
		}
		out.Providers = append(out.Providers, jp)
	}

	return json.MarshalIndent(out, "", "  ")
}

// ToDOT outputs the graph in Graphviz DOT format. Modules render as boxes,
// providers as ellipses; requirement edges carry the declared constraint as
// a label.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph providers {\n")
	buf.WriteString("  rankdir=LR;\n\n")

	for _, path := range g.sortedModulePaths() {
		node := g.Modules[path]
		attrs := fmt.Sprintf(`shape=box, label="%s"`, path)
		if node.IsRoot {
			attrs += ", style=bold"
		}
		buf.WriteString(fmt.Sprintf("  %q [%s];\n", "module:"+path, attrs))
	}
	for _, provider := range g.sortedProviders() {
		node := g.Providers[provider]
		label := provider.ForDisplay()
		if sel := node.Selection; sel != nil && sel.SelectedVersion != "" {
			label += "\\n" + sel.SelectedVersion
		}
		buf.WriteString(fmt.Sprintf("  %q [shape=ellipse, label=\"%s\"];\n", "provider:"+provider.String(), label))
	}

	buf.WriteString("\n")

	for _, path := range g.sortedModulePaths() {
		node := g.Modules[path]
		for _, child := range node.Children {
			buf.WriteString(fmt.Sprintf("  %q -> %q;\n", "module:"+path, "module:"+child))
		}
		for _, req := range node.Requirements {
			edge := fmt.Sprintf("  %q -> %q", "module:"+path, "provider:"+req.Provider.String())
			if req.Constraint != "" {
				edge += fmt.Sprintf(` [label="%s"]`, req.Constraint)
			}
			buf.WriteString(edge + ";\n")
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ToText outputs a human-readable report: summary statistics, the module
// tree with its requirements, and the selected versions.
func (g *Graph) ToText() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Provider Requirements (root: %s)\n", g.RootPath))
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	stats := g.CollectStats()
	buf.WriteString(fmt.Sprintf("Modules: %d\n", stats.Modules))
	buf.WriteString(fmt.Sprintf("Providers: %d\n", stats.Providers))
	buf.WriteString(fmt.Sprintf("Requirement edges: %d\n", stats.RequirementEdges))
	buf.WriteString(fmt.Sprintf("Max module depth: %d\n", stats.MaxDepth))
	if stats.LockPinned > 0 {
		buf.WriteString(fmt.Sprintf("Lock-pinned selections: %d\n", stats.LockPinned))
	}
	if stats.YankedSelections > 0 {
		buf.WriteString(fmt.Sprintf("Yanked selections: %d\n", stats.YankedSelections))
	}
	buf.WriteString("\n")

	buf.WriteString("Module Tree:\n")
	buf.WriteString(g.RootPath + "\n")
	g.printTree(&buf, g.RootPath, "", map[string]bool{g.RootPath: true})

	buf.WriteString("\nSelections:\n")
	for _, provider := range g.sortedProviders() {
		node := g.Providers[provider]
		line := "  " + provider.ForDisplay()
		if sel := node.Selection; sel != nil {
			line += " " + sel.SelectedVersion
			var marks []string
			if sel.PinnedByLock {
				marks = append(marks, "locked")
			}
			if sel.Yanked {
				marks = append(marks, "yanked")
			}
			if len(marks) > 0 {
				line += " (" + strings.Join(marks, ", ") + ")"
			}
		} else {
			line += " (unresolved)"
		}
		buf.WriteString(line + "\n")
	}

	return buf.String()
}

// printTree renders a module's requirements and child modules beneath an
// already-printed header line. Requirements come first, then children, each
// with standard tree connectors.
func (g *Graph) printTree(buf *bytes.Buffer, path, indent string, visited map[string]bool) {
	node := g.Modules[path]
	if node == nil {
		return
	}

	entries := len(node.Requirements) + len(node.Children)
	printed := 0

	for _, req := range node.Requirements {
		printed++
		connector := "├── "
		if printed == entries {
			connector = "└── "
		}
		line := fmt.Sprintf("%s%s%s = %s", indent, connector, req.LocalName, req.Provider.ForDisplay())
		if req.Constraint != "" {
			line += fmt.Sprintf(" (%s)", req.Constraint)
		}
		if req.Implied {
			line += " [implied]"
		}
		buf.WriteString(line + "\n")
	}

	for _, child := range node.Children {
		printed++
		connector, extension := "├── ", "│   "
		if printed == entries {
			connector, extension = "└── ", "    "
		}
		if visited[child] {
			buf.WriteString(indent + connector + child + " (repeated)\n")
			continue
		}
		visited[child] = true
		buf.WriteString(indent + connector + child + "\n")
		g.printTree(buf, child, indent+extension, visited)
	}
}

// ToExplainText renders an Explanation as human-readable text.
func (g *Graph) ToExplainText(provider Provider) (string, error) {
	explanation, err := g.Explain(provider)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Explanation for: %s\n", provider.ForDisplay()))
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	if sel := explanation.Selection; sel != nil {
		buf.WriteString("Version Selection:\n")
		buf.WriteString(fmt.Sprintf("  Selected version: %s\n", sel.SelectedVersion))
		buf.WriteString(fmt.Sprintf("  Strategy: %s\n", sel.Strategy))
		if sel.DecidingFactor != "" {
			buf.WriteString(fmt.Sprintf("  Deciding factor: %s\n", sel.DecidingFactor))
		}

		if len(sel.Candidates) > 0 {
			buf.WriteString("\n  Candidates considered:\n")
			for _, c := range sel.Candidates {
				status := "  "
				if c.Version == sel.SelectedVersion {
					status = "✓ "
				}
				buf.WriteString(fmt.Sprintf("    %s%s\n", status, c.Version))
				if c.Reason != "" {
					buf.WriteString(fmt.Sprintf("      Reason not selected: %s\n", c.Reason))
				}
			}
		}
	}

	if len(explanation.Chains) > 0 {
		buf.WriteString("\nRequirement Chains (paths from root):\n")
		for i, chain := range explanation.Chains {
			buf.WriteString(fmt.Sprintf("  %d. %s\n", i+1, chain.String()))
		}
	}

	return buf.String(), nil
}

// ProviderInfo is one provider in the flat list output.
type ProviderInfo struct {
	Source       string   `json:"source"`
	Version      string   `json:"version,omitempty"`
	PinnedByLock bool     `json:"pinned_by_lock,omitempty"`
	Yanked       bool     `json:"yanked,omitempty"`
	RequiredBy   []string `json:"required_by,omitempty"`
}

// ToProviderList outputs a flat provider list sorted by source address.
func (g *Graph) ToProviderList() []ProviderInfo {
	providers := make([]ProviderInfo, 0, len(g.Providers))

	for _, provider := range g.sortedProviders() {
		node := g.Providers[provider]
		info := ProviderInfo{
			Source:     provider.String(),
			RequiredBy: node.RequiredBy,
		}
		if sel := node.Selection; sel != nil {
			info.Version = sel.SelectedVersion
			info.PinnedByLock = sel.PinnedByLock
			info.Yanked = sel.Yanked
		}
		providers = append(providers, info)
	}

	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Source < providers[j].Source
	})

	return providers
}
