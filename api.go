// Package provreq resolves provider requirements: it turns the provider
// declarations of a module tree into one exact, verifiable version per
// provider source address.
//
// Every module in a configuration declares the providers it needs under a
// local name, with an optional source address and version constraints.
// Resolution merges those declarations across the whole tree, fetches each
// provider's available versions, and selects the newest version satisfying
// every module's constraints. An existing lock file pins previous selections
// so repeated runs stay reproducible.
//
// # Overview
//
// The module is organized around four components:
//
//   - addrs: provider source addresses and local-name rules
//   - solver: the pure constraint-solving core
//   - lockfile: the dependency lock file codec and utilities
//   - graph: the requirement graph with selection explanations
//
// The root package ties them together behind Resolve.
//
// # Quick Start
//
// The simplest call resolves against the default registry:
//
//	root := &provreq.Module{
//	    RequiredProviders: map[string]provreq.ProviderRequirement{
//	        "aws": {Source: "hashicorp/aws", Version: "~> 5.0"},
//	    },
//	}
//	result, err := provreq.Resolve(ctx, root)
//
// Configurations serialized as JSON load the same way:
//
//	result, err := provreq.ResolveFile(ctx, "requirements.json")
//
// DefaultOptions carries the recommended settings; extend it as needed:
//
//	opts := append(provreq.DefaultOptions(), provreq.WithLockFile("providers.lock.json"))
//	result, err := provreq.Resolve(ctx, root, opts...)
//
// # Sources
//
// Versions and package metadata come from pluggable sources. By default the
// public registry is consulted; private registries, filesystem mirrors, and
// in-memory catalogs compose into an ordered fallback chain:
//
//	result, err := provreq.Resolve(ctx, root,
//	    provreq.WithRegistries("https://registry.example.com", provreq.DefaultRegistryURL),
//	    provreq.WithMirrorDir("/srv/providers-mirror"),
//	)
//
// A provider served by one source stays bound to that source for the rest of
// the run, so its version index and package descriptors always agree.
//
// # Lock Files
//
// WithLockFile pins previously selected versions and verifies package
// checksums against the locked hashes. Result.Lock builds the updated lock
// after a successful run:
//
//	result, err := provreq.Resolve(ctx, root, provreq.WithLockFile("providers.lock.json"))
//	if err == nil {
//	    err = result.Lock().WriteFile("providers.lock.json")
//	}
//
// # Thread Safety
//
// All public types in this package are safe for concurrent use unless their
// documentation says otherwise. A Result is read-only once returned.
package provreq

import (
	"context"
	"fmt"

	"github.com/provreq/go-provreq/graph"
)

// Resolve resolves every provider requirement of a module tree.
//
// This is the recommended entry point. It builds a one-shot Resolver from
// the options; callers resolving repeatedly should construct a Resolver once
// and reuse it, keeping source caches warm.
func Resolve(ctx context.Context, root *Module, opts ...Option) (*Result, error) {
	resolver, err := NewResolver(opts...)
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(ctx, root)
}

// ResolveFile resolves provider requirements from a JSON configuration file.
// See ParseConfig for the expected document shape.
func ResolveFile(ctx context.Context, path string, opts ...Option) (*Result, error) {
	root, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return Resolve(ctx, root, opts...)
}

// BuildGraph builds the requirement graph for a module tree without
// selecting versions or contacting any source. Provider nodes carry no
// selection info; module nodes, requirement edges, and required-by lists are
// complete. Useful for inspecting a configuration's provider structure
// offline.
func BuildGraph(root *Module) (*graph.Graph, error) {
	if root == nil {
		return nil, fmt.Errorf("root module is nil")
	}
	collection, err := collectRequirements(root)
	if err != nil {
		return nil, err
	}
	return collection.builder.Build(), nil
}
