package registry

import (
	goversion "github.com/hashicorp/go-version"
)

// ProviderVersions represents the versions.json index for a provider.
type ProviderVersions struct {
	// Versions lists all versions published for the provider. Order is not
	// significant; consumers compare versions semantically.
	Versions []string `json:"versions"`

	// YankedVersions maps version strings to yank reasons. Yanked versions
	// should not be selected by new configurations.
	YankedVersions map[string]string `json:"yanked_versions,omitempty"`

	// Deprecated explains why the provider as a whole should not be used.
	Deprecated string `json:"deprecated,omitempty"`
}

// PackageInfo represents the package.json descriptor for one provider
// version.
type PackageInfo struct {
	// URL is where the provider package archive can be downloaded from.
	// Optional: filesystem mirrors may serve packages in place.
	URL string `json:"url,omitempty"`

	// Checksums lists package checksums in "scheme:value" form
	// (e.g. "h1:..." directory hashes, "zh:..." archive hashes).
	Checksums []string `json:"checksums,omitempty"`

	// Protocols lists the plugin protocol versions the package implements
	// (e.g. "5.0", "6.0").
	Protocols []string `json:"protocols,omitempty"`
}

// HasVersion returns true if the given version exists in the index.
func (pv *ProviderVersions) HasVersion(version string) bool {
	for _, v := range pv.Versions {
		if v == version {
			return true
		}
	}
	return false
}

// IsYanked returns true if the given version is yanked.
func (pv *ProviderVersions) IsYanked(version string) bool {
	_, ok := pv.YankedVersions[version]
	return ok
}

// YankReason returns the reason why a version was yanked.
// Returns empty string if not yanked.
func (pv *ProviderVersions) YankReason(version string) string {
	return pv.YankedVersions[version]
}

// IsDeprecated returns true if the provider is deprecated.
func (pv *ProviderVersions) IsDeprecated() bool {
	return pv.Deprecated != ""
}

// NonYankedVersions returns all versions that are not yanked, in index
// order.
func (pv *ProviderVersions) NonYankedVersions() []string {
	result := make([]string, 0, len(pv.Versions))
	for _, v := range pv.Versions {
		if !pv.IsYanked(v) {
			result = append(result, v)
		}
	}
	return result
}

// LatestVersion returns the semantically greatest version in the index.
// Returns empty string if no versions are available or none parse.
func (pv *ProviderVersions) LatestVersion() string {
	var latest *goversion.Version
	var latestRaw string
	for _, raw := range pv.Versions {
		v, err := goversion.NewVersion(raw)
		if err != nil {
			continue
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
			latestRaw = raw
		}
	}
	return latestRaw
}
