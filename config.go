package provreq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	goversion "github.com/hashicorp/go-version"

	"github.com/provreq/go-provreq/addrs"
)

// RootModuleName is the display path of the configuration root. Child
// module paths join call names with dots: "<root>.network.subnets".
const RootModuleName = "<root>"

// Module is one node of the configuration tree handed to resolution.
// Parsing a configuration language is out of scope for this library: intake
// is the already-extracted requirement data, either built programmatically
// or decoded from this package's JSON form via ParseConfig.
type Module struct {
	// Name optionally labels the module. Informational only; module
	// identity is the call path.
	Name string `json:"name,omitempty"`

	// RequiredProviders maps provider local names to their requirements.
	RequiredProviders map[string]ProviderRequirement `json:"required_providers,omitempty"`

	// Resources lists resource type names used by the module. A resource
	// whose type prefix has no declared provider implies one in the default
	// namespace.
	Resources []string `json:"resources,omitempty"`

	// RequiredCore lists version constraints on the orchestrating tool
	// itself. Checked when WithCoreVersion supplies the running version.
	RequiredCore []string `json:"required_core,omitempty"`

	// Children maps call names to child modules.
	Children map[string]*Module `json:"children,omitempty"`
}

// ProviderRequirement is one required_providers entry: where the provider
// comes from and which versions are acceptable.
type ProviderRequirement struct {
	// Source is the provider source address, either "namespace/type" or
	// "hostname/namespace/type". Empty means the local name itself is the
	// provider type, in the default namespace.
	Source string `json:"source,omitempty"`

	// Version is the version constraint string: zero or more
	// comma-separated clauses, all of which must hold. Empty accepts any
	// version.
	Version string `json:"version,omitempty"`
}

// ParseConfig parses a JSON-encoded module tree. Unknown fields and
// trailing data are rejected, and every local name, source address,
// constraint string, and child call name is validated.
func ParseConfig(data []byte) (*Module, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var root Module
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse configuration: unexpected data after the module document")
	}

	if err := validateModule(&root, RootModuleName); err != nil {
		return nil, err
	}
	return &root, nil
}

// LoadConfig reads and parses a module tree from a JSON file.
func LoadConfig(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	return ParseConfig(data)
}

// validateModule checks one module and recurses into its children. It
// validates syntax only; semantic rules (duplicate providers, built-in
// constraints, implied-provider ambiguity) are enforced during the
// requirement walk.
func validateModule(m *Module, path string) error {
	for localName, req := range m.RequiredProviders {
		if err := addrs.ValidateLocalName(localName); err != nil {
			return fmt.Errorf("module %s: %w", path, err)
		}
		if req.Source != "" {
			if _, err := addrs.ParseProviderSource(req.Source); err != nil {
				return fmt.Errorf("module %s, provider %q: %w", path, localName, err)
			}
		}
		if req.Version != "" {
			if _, err := goversion.NewConstraint(req.Version); err != nil {
				return fmt.Errorf("module %s, provider %q: invalid version constraint %q: %w",
					path, localName, req.Version, err)
			}
		}
	}

	for _, constraint := range m.RequiredCore {
		if _, err := goversion.NewConstraint(constraint); err != nil {
			return fmt.Errorf("module %s: invalid required_core constraint %q: %w", path, constraint, err)
		}
	}

	for callName, child := range m.Children {
		if err := addrs.ValidateLocalName(callName); err != nil {
			return fmt.Errorf("module %s: invalid child call name: %w", path, err)
		}
		if child == nil {
			return fmt.Errorf("module %s: child module %q is null", path, callName)
		}
		if err := validateModule(child, childPath(path, callName)); err != nil {
			return err
		}
	}
	return nil
}

// childPath joins a parent module path with a child call name.
func childPath(parent, call string) string {
	return parent + "." + call
}

// walkModules visits every module in the tree, parents before children,
// children in call-name order.
func walkModules(m *Module, path string, visit func(path string, m *Module)) {
	visit(path, m)
	for _, name := range slices.Sorted(maps.Keys(m.Children)) {
		walkModules(m.Children[name], childPath(path, name), visit)
	}
}
