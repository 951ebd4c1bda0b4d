package registry

import (
	"fmt"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// FieldError represents a validation failure for a specific field.
type FieldError struct {
	Field   string // Field path (e.g., "checksums[0]")
	Message string // Human-readable error message
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []*FieldError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&b, "\n  - %s", err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying errors for errors.Is/As compatibility.
func (e *ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Add appends a validation error.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &FieldError{Field: field, Message: message})
}

// AddError appends an existing FieldError.
func (e *ValidationErrors) AddError(err *FieldError) {
	e.Errors = append(e.Errors, err)
}

// HasErrors returns true if any errors were collected.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// ToError returns nil if no errors, otherwise returns self.
func (e *ValidationErrors) ToError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// Precompiled regex patterns for validation.
var (
	// Checksum: lowercase scheme, colon, base64/hex payload
	checksumPattern = regexp.MustCompile(`^[a-z][a-z0-9]*:[A-Za-z0-9+/=_-]+$`)

	// Plugin protocol version: major or major.minor
	protocolPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// Validate checks that the version index conforms to the document rules.
// Returns nil if valid, or ValidationErrors containing all issues found.
func (pv *ProviderVersions) Validate() error {
	var errs ValidationErrors

	if len(pv.Versions) == 0 {
		errs.Add("versions", "required field is missing or empty")
	}

	seen := make(map[string]bool, len(pv.Versions))
	for i, raw := range pv.Versions {
		if raw == "" {
			errs.Add(fmt.Sprintf("versions[%d]", i), "version string is empty")
			continue
		}
		if _, err := goversion.NewVersion(raw); err != nil {
			errs.Add(fmt.Sprintf("versions[%d]", i), fmt.Sprintf("%q is not a valid version", raw))
			continue
		}
		if seen[raw] {
			errs.Add(fmt.Sprintf("versions[%d]", i), fmt.Sprintf("version %q listed more than once", raw))
		}
		seen[raw] = true
	}

	// Cross-field validation: yanked versions must exist in versions
	for version := range pv.YankedVersions {
		if !pv.HasVersion(version) {
			errs.Add(
				fmt.Sprintf("yanked_versions[%q]", version),
				"yanked version does not exist in versions list",
			)
		}
	}

	return errs.ToError()
}

// Validate checks that the package descriptor conforms to the document
// rules. Returns nil if valid, or ValidationErrors containing all issues
// found.
func (pi *PackageInfo) Validate() error {
	var errs ValidationErrors

	for i, checksum := range pi.Checksums {
		if !checksumPattern.MatchString(checksum) {
			errs.Add(
				fmt.Sprintf("checksums[%d]", i),
				fmt.Sprintf("%q is not a valid checksum (expected \"scheme:value\")", checksum),
			)
		}
	}

	for i, protocol := range pi.Protocols {
		if !protocolPattern.MatchString(protocol) {
			errs.Add(
				fmt.Sprintf("protocols[%d]", i),
				fmt.Sprintf("%q is not a valid protocol version", protocol),
			)
		}
	}

	return errs.ToError()
}

// ValidateProviderVersionsJSON validates raw JSON bytes as a version index.
// This is a convenience function that unmarshals and validates in one step.
func ValidateProviderVersionsJSON(data []byte) (*ProviderVersions, error) {
	var pv ProviderVersions
	if err := unmarshalStrict(data, &pv); err != nil {
		return nil, &FieldError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := pv.Validate(); err != nil {
		return nil, err
	}
	return &pv, nil
}

// ValidatePackageInfoJSON validates raw JSON bytes as a package descriptor.
// This is a convenience function that unmarshals and validates in one step.
func ValidatePackageInfoJSON(data []byte) (*PackageInfo, error) {
	var pi PackageInfo
	if err := unmarshalStrict(data, &pi); err != nil {
		return nil, &FieldError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := pi.Validate(); err != nil {
		return nil, err
	}
	return &pi, nil
}
