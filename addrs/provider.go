// Package addrs provides strongly-typed, validated address components for
// provider requirements.
//
// All types in this package are immutable and validate their values at
// construction time. Zero values are generally invalid - use the constructor
// functions (NewProvider, ParseProviderSource, etc.) to create valid
// instances.
//
// # Types
//
// The main types are:
//   - [Provider]: A fully-qualified provider source address
//     (e.g., "registry.terraform.io/hashicorp/aws")
//
// # Validation Patterns
//
// Namespace and type parts must match: [a-z]([a-z0-9_-]*[a-z0-9])?
// Hostnames must be lowercase and match: [a-z0-9]([a-z0-9.-]*[a-z0-9])?
//
// Source addresses are case sensitive by rejection: uppercase input is not
// folded silently, it fails with a [MalformedAddressError] telling the user
// to write the address in lowercase.
package addrs

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultRegistryHost is the hostname injected when a source address omits
// its hostname part.
const DefaultRegistryHost = "registry.terraform.io"

// DefaultNamespace is the namespace assumed for providers implied by
// resource type prefixes with no matching declaration.
const DefaultNamespace = "hashicorp"

// BuiltInHost and BuiltInNamespace identify providers that are compiled into
// the tool itself rather than fetched from a registry.
const (
	BuiltInHost      = "terraform.io"
	BuiltInNamespace = "builtin"
)

// Provider is a fully-qualified provider source address: the hostname of the
// registry that serves it, the namespace (organization) within that
// registry, and the provider type. A Provider is immutable after
// construction and all three parts are non-empty and lowercase.
type Provider struct {
	hostname  string
	namespace string
	typeName  string
}

var namePartRegex = regexp.MustCompile(`^[a-z]([a-z0-9_-]*[a-z0-9])?$`)

var hostnameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9.-]*[a-z0-9])?$`)

// MalformedAddressError indicates that a raw source address string could not
// be parsed into a Provider.
type MalformedAddressError struct {
	Input  string // the raw string as given
	Detail string // what was wrong with it
}

func (e *MalformedAddressError) Error() string {
	return fmt.Sprintf("invalid provider source address %q: %s", e.Input, e.Detail)
}

// ParseProviderSource parses a source address as written in a provider
// requirement declaration. Two-part input ("namespace/type") is qualified
// with [DefaultRegistryHost]; three-part input ("hostname/namespace/type")
// is taken as is. Any other shape fails with a [MalformedAddressError].
func ParseProviderSource(raw string) (Provider, error) {
	parts := strings.Split(raw, "/")

	switch len(parts) {
	case 2:
		if err := validateNamePart(raw, "namespace", parts[0]); err != nil {
			return Provider{}, err
		}
		if err := validateNamePart(raw, "type", parts[1]); err != nil {
			return Provider{}, err
		}
		return Provider{
			hostname:  DefaultRegistryHost,
			namespace: parts[0],
			typeName:  parts[1],
		}, nil

	case 3:
		if err := validateHostname(raw, parts[0]); err != nil {
			return Provider{}, err
		}
		if err := validateNamePart(raw, "namespace", parts[1]); err != nil {
			return Provider{}, err
		}
		if err := validateNamePart(raw, "type", parts[2]); err != nil {
			return Provider{}, err
		}
		return Provider{
			hostname:  parts[0],
			namespace: parts[1],
			typeName:  parts[2],
		}, nil

	case 1:
		if raw == "" {
			return Provider{}, &MalformedAddressError{
				Input:  raw,
				Detail: "address is empty",
			}
		}
		return Provider{}, &MalformedAddressError{
			Input: raw,
			Detail: fmt.Sprintf(
				"an address must have either two parts (namespace/type) or three parts (hostname/namespace/type); did you mean %q?",
				DefaultNamespace+"/"+strings.ToLower(raw),
			),
		}

	default:
		return Provider{}, &MalformedAddressError{
			Input:  raw,
			Detail: "too many address parts; expected namespace/type or hostname/namespace/type",
		}
	}
}

// MustParseProviderSource is like ParseProviderSource but panics on error.
// Use only for constants and tests.
func MustParseProviderSource(raw string) Provider {
	p, err := ParseProviderSource(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// NewProvider constructs a Provider from already-separated parts, applying
// the same validation as ParseProviderSource.
func NewProvider(hostname, namespace, typeName string) (Provider, error) {
	raw := hostname + "/" + namespace + "/" + typeName
	if err := validateHostname(raw, hostname); err != nil {
		return Provider{}, err
	}
	if err := validateNamePart(raw, "namespace", namespace); err != nil {
		return Provider{}, err
	}
	if err := validateNamePart(raw, "type", typeName); err != nil {
		return Provider{}, err
	}
	return Provider{hostname: hostname, namespace: namespace, typeName: typeName}, nil
}

// NewDefaultProvider returns the address a bare provider type implies:
// the default registry host and the default namespace.
func NewDefaultProvider(typeName string) Provider {
	return Provider{
		hostname:  DefaultRegistryHost,
		namespace: DefaultNamespace,
		typeName:  typeName,
	}
}

// NewBuiltInProvider returns the address of a provider that ships compiled
// into the tool. Built-in providers are never fetched or version-solved.
func NewBuiltInProvider(typeName string) Provider {
	return Provider{
		hostname:  BuiltInHost,
		namespace: BuiltInNamespace,
		typeName:  typeName,
	}
}

// Hostname returns the registry hostname part.
func (p Provider) Hostname() string {
	return p.hostname
}

// Namespace returns the namespace part.
func (p Provider) Namespace() string {
	return p.namespace
}

// Type returns the provider type part.
func (p Provider) Type() string {
	return p.typeName
}

// String returns the fully-qualified form "hostname/namespace/type".
func (p Provider) String() string {
	if p.IsZero() {
		return ""
	}
	return p.hostname + "/" + p.namespace + "/" + p.typeName
}

// ForDisplay returns the shortest unambiguous form: the hostname is omitted
// when it is the default registry host.
func (p Provider) ForDisplay() string {
	if p.IsZero() {
		return ""
	}
	if p.hostname == DefaultRegistryHost {
		return p.namespace + "/" + p.typeName
	}
	return p.String()
}

// IsZero returns true for the invalid zero value.
func (p Provider) IsZero() bool {
	return p == Provider{}
}

// IsBuiltIn returns true if the address names a provider compiled into the
// tool rather than one served by a registry.
func (p Provider) IsBuiltIn() bool {
	return p.hostname == BuiltInHost && p.namespace == BuiltInNamespace
}

// IsDefault returns true if the address is in the default registry's
// default namespace.
func (p Provider) IsDefault() bool {
	return p.hostname == DefaultRegistryHost && p.namespace == DefaultNamespace
}

// Equals reports whether two addresses identify the same provider.
func (p Provider) Equals(other Provider) bool {
	return p == other
}

// Less orders addresses by hostname, then namespace, then type. It defines
// the sort order used for deterministic output.
func (p Provider) Less(other Provider) bool {
	if p.hostname != other.hostname {
		return p.hostname < other.hostname
	}
	if p.namespace != other.namespace {
		return p.namespace < other.namespace
	}
	return p.typeName < other.typeName
}

// MarshalText implements encoding.TextMarshaler using the fully-qualified
// string form, so Provider values can key JSON maps.
func (p Provider) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The input must be a
// fully-qualified three-part address.
func (p *Provider) UnmarshalText(text []byte) error {
	raw := string(text)
	if strings.Count(raw, "/") != 2 {
		return &MalformedAddressError{
			Input:  raw,
			Detail: "serialized provider addresses must be fully qualified (hostname/namespace/type)",
		}
	}
	parsed, err := ParseProviderSource(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func validateNamePart(input, label, part string) error {
	if part == "" {
		return &MalformedAddressError{
			Input:  input,
			Detail: fmt.Sprintf("%s part must not be empty", label),
		}
	}
	if strings.ToLower(part) != part {
		return &MalformedAddressError{
			Input:  input,
			Detail: fmt.Sprintf("%s part %q must be written in lowercase", label, part),
		}
	}
	if !namePartRegex.MatchString(part) {
		return &MalformedAddressError{
			Input:  input,
			Detail: fmt.Sprintf("%s part %q must match pattern [a-z]([a-z0-9_-]*[a-z0-9])?", label, part),
		}
	}
	return nil
}

func validateHostname(input, hostname string) error {
	if hostname == "" {
		return &MalformedAddressError{
			Input:  input,
			Detail: "hostname part must not be empty",
		}
	}
	if strings.ToLower(hostname) != hostname {
		return &MalformedAddressError{
			Input:  input,
			Detail: fmt.Sprintf("hostname %q must be written in lowercase", hostname),
		}
	}
	if !hostnameRegex.MatchString(hostname) || strings.Contains(hostname, "..") {
		return &MalformedAddressError{
			Input:  input,
			Detail: fmt.Sprintf("hostname %q is not a valid registry hostname", hostname),
		}
	}
	return nil
}
