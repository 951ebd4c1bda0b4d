// Package registry provides types, validation, and an HTTP client for
// provider registry data.
//
// This package implements the JSON documents a provider registry serves:
// per-provider version indexes and per-version package descriptors. It
// enables:
//
//   - Type-safe access to registry data with proper validation
//   - Strict document validation with per-field diagnostics
//   - Cached, pooled HTTP fetching of registry documents
//
// # Registry Structure
//
// A provider registry follows a standard layout, keyed by fully-qualified
// provider address:
//
//	registry/
//	└── providers/
//	    └── {hostname}/
//	        └── {namespace}/
//	            └── {type}/
//	                ├── versions.json       # Version index (yanked, deprecated)
//	                └── {version}/
//	                    └── package.json    # Package descriptor (url, checksums)
//
// The same layout is used over HTTP and on disk, so a filesystem mirror of a
// registry can be served or read directly.
//
// # Usage
//
// Fetch and validate a provider's version index:
//
//	client := registry.NewClient("https://registry.example.com")
//	versions, err := client.ProviderVersions(ctx, addr)
//	if err != nil {
//	    // Handle validation or network errors
//	}
//
// Validate arbitrary JSON against the document rules:
//
//	validator := registry.NewValidator()
//	err := validator.ValidateProviderVersions(jsonData)
package registry
