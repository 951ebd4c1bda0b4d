package addrs

import (
	"fmt"
	"regexp"
	"strings"
)

// Local names follow the same syntax as provider type parts: they name a
// provider within one module only and have no meaning outside it.
var localNameRegex = regexp.MustCompile(`^[a-z]([a-z0-9_-]*[a-z0-9])?$`)

// ValidateLocalName checks a module-scoped provider local name.
func ValidateLocalName(name string) error {
	if name == "" {
		return fmt.Errorf("local name cannot be empty")
	}
	if strings.ToLower(name) != name {
		return fmt.Errorf("invalid local name %q: must be written in lowercase", name)
	}
	if !localNameRegex.MatchString(name) {
		return fmt.Errorf("invalid local name %q: must match pattern [a-z]([a-z0-9_-]*[a-z0-9])?", name)
	}
	return nil
}

// IsValidLocalName reports whether ValidateLocalName would accept name.
func IsValidLocalName(name string) bool {
	return ValidateLocalName(name) == nil
}

// ImpliedProviderType returns the provider local name implied by a resource
// type name: the first underscore-separated word, or the whole name when it
// contains no underscore ("aws_instance" implies "aws", "random" implies
// "random").
func ImpliedProviderType(resourceType string) string {
	if idx := strings.Index(resourceType, "_"); idx >= 0 {
		return resourceType[:idx]
	}
	return resourceType
}
