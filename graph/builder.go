package graph

import "sort"

// Builder accumulates resolution records and assembles a Graph. The
// resolver records modules and requirements while walking the configuration
// tree, then selection outcomes as each provider resolves.
type Builder struct {
	root     string
	modules  map[string]*moduleRecord
	selected map[Provider]*SelectionInfo
}

type moduleRecord struct {
	path         string
	parent       string
	requirements []RequirementEdge
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		modules:  make(map[string]*moduleRecord),
		selected: make(map[Provider]*SelectionInfo),
	}
}

// AddModule records a module at the given path. The root module has an
// empty parent path; every other module names its parent. Recording the
// same path twice keeps the first record.
func (b *Builder) AddModule(path, parent string) {
	if _, ok := b.modules[path]; ok {
		return
	}
	b.modules[path] = &moduleRecord{path: path, parent: parent}
	if parent == "" {
		b.root = path
	}
}

// AddRequirement records one module's requirement on a provider. The module
// must have been recorded first; unknown paths are ignored.
func (b *Builder) AddRequirement(modulePath string, provider Provider, localName, constraint string, implied bool) {
	record, ok := b.modules[modulePath]
	if !ok {
		return
	}
	record.requirements = append(record.requirements, RequirementEdge{
		Provider:   provider,
		LocalName:  localName,
		Constraint: constraint,
		Implied:    implied,
	})
}

// SetSelection records the selection outcome for a provider.
func (b *Builder) SetSelection(provider Provider, info *SelectionInfo) {
	b.selected[provider] = info
}

// Build assembles the recorded state into a Graph.
func (b *Builder) Build() *Graph {
	g := &Graph{
		RootPath:  b.root,
		Modules:   make(map[string]*ModuleNode, len(b.modules)),
		Providers: make(map[Provider]*ProviderNode),
	}

	// First pass: create module nodes and provider nodes from requirement
	// edges.
	for path, record := range b.modules {
		node := &ModuleNode{
			Path:         path,
			Requirements: record.requirements,
			IsRoot:       path == b.root,
		}
		g.Modules[path] = node

		for _, req := range record.requirements {
			pn, ok := g.Providers[req.Provider]
			if !ok {
				pn = &ProviderNode{Provider: req.Provider}
				g.Providers[req.Provider] = pn
			}
			pn.RequiredBy = appendUnique(pn.RequiredBy, path)
		}
	}

	// Second pass: wire children from parent records.
	for path, record := range b.modules {
		if record.parent == "" {
			continue
		}
		if parent, ok := g.Modules[record.parent]; ok {
			parent.Children = append(parent.Children, path)
		}
	}

	// Selections can name providers no requirement edge mentions, for
	// example when resolution begins from a lock file alone.
	for provider, info := range b.selected {
		pn, ok := g.Providers[provider]
		if !ok {
			pn = &ProviderNode{Provider: provider}
			g.Providers[provider] = pn
		}
		pn.Selection = info
	}

	// Sorted child and dependent lists keep rendering deterministic.
	for _, node := range g.Modules {
		sort.Strings(node.Children)
	}
	for _, pn := range g.Providers {
		sort.Strings(pn.RequiredBy)
	}

	return g
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
