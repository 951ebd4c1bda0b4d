// Package graph represents the requirement graph produced by provider
// resolution: the module tree on one side, the selected providers on the
// other, and the constraint edges between them.
//
// The graph answers the questions a resolution report needs:
//
//   - Which modules require a provider, and with what constraints
//   - Why a provider landed on its selected version
//   - Which other versions were considered and why they were rejected
//
// # Building a Graph
//
// A Graph is populated automatically during resolution:
//
//	result, _ := provreq.Resolve(ctx, root, opts...)
//	g := result.Graph // already populated
//
// # Querying the Graph
//
// Once built, the graph supports queries:
//
//	// Modules that require a provider
//	paths := g.ModulesRequiring(provider)
//
//	// Explain a version selection
//	explanation, _ := g.Explain(provider)
//
//	// Requirement chains from the root
//	chains := g.RequirementChains(provider)
//
// # Output Formats
//
// The graph serializes to multiple formats:
//
//	jsonBytes, _ := g.ToJSON()
//
//	// Graphviz DOT format for visualization
//	dotString := g.ToDOT()
//
//	// Human-readable text
//	textString := g.ToText()
package graph
