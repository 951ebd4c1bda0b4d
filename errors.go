package provreq

import "errors"

// Sentinel errors for common source failures.
var (
	// ErrProviderNotFound indicates the provider does not exist in any
	// configured source.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrVersionNotFound indicates the provider exists but the requested
	// version does not.
	ErrVersionNotFound = errors.New("version not found")

	// ErrRateLimited indicates a registry is rate limiting requests.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized indicates registry authentication is required or failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrHostNotAllowed indicates a request was blocked by the network
	// allowlist before any connection was made.
	ErrHostNotAllowed = errors.New("host not allowed")
)
