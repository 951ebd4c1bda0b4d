package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Validator validates registry JSON documents against the layout's rules.
// This is a zero-dependency implementation that validates the same rules a
// registry enforces at publish time.
type Validator struct{}

// NewValidator creates a validator for version index and package documents.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProviderVersions validates JSON data against versions.json rules.
func (v *Validator) ValidateProviderVersions(data []byte) error {
	var pv ProviderVersions
	if err := unmarshalStrict(data, &pv); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return pv.Validate()
}

// ValidatePackageInfo validates JSON data against package.json rules.
func (v *Validator) ValidatePackageInfo(data []byte) error {
	var pi PackageInfo
	if err := unmarshalStrict(data, &pi); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return pi.Validate()
}

// ValidateProviderVersionsStruct validates a ProviderVersions struct.
func (v *Validator) ValidateProviderVersionsStruct(pv *ProviderVersions) error {
	return pv.Validate()
}

// ValidatePackageInfoStruct validates a PackageInfo struct.
func (v *Validator) ValidatePackageInfoStruct(pi *PackageInfo) error {
	return pi.Validate()
}

// unmarshalStrict unmarshals JSON with strict settings (disallow unknown fields).
func unmarshalStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
