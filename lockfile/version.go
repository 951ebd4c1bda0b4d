package lockfile

import (
	"fmt"
	"strings"
)

// Lock file format versions.
//
// Versions are matched exactly: a reader rejects any version it does not
// know rather than guessing at field semantics. History:
//
//	| Format Version | Notes                                         |
//	|----------------|-----------------------------------------------|
//	| 1              | Initial format: per-provider version, merged  |
//	|                | constraint string, checksum list              |
const (
	// CurrentVersion is the format version written by this package.
	CurrentVersion = 1
)

// SupportedVersions lists every format version this package can read, in
// ascending order.
func SupportedVersions() []int {
	return []int{1}
}

// IsSupported reports whether a lock file format version can be read.
func IsSupported(version int) bool {
	for _, v := range SupportedVersions() {
		if v == version {
			return true
		}
	}
	return false
}

func supportedVersionList() string {
	versions := SupportedVersions()
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
