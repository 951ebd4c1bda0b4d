package registry

import (
	"encoding/json"
	"testing"
)

func TestProviderVersions_LatestVersion(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		want     string
	}{
		{"empty", nil, ""},
		{"single", []string{"1.0.0"}, "1.0.0"},
		{"ordered input", []string{"1.0.0", "1.1.0", "2.0.0"}, "2.0.0"},
		{"unordered input", []string{"2.0.0", "1.0.0", "1.1.0"}, "2.0.0"},
		{"semantic not lexical", []string{"1.9.0", "1.10.0"}, "1.10.0"},
		{"prerelease below release", []string{"2.0.0-rc1", "1.9.0"}, "2.0.0-rc1"},
		{"unparseable skipped", []string{"garbage", "1.0.0"}, "1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pv := &ProviderVersions{Versions: tt.versions}
			if got := pv.LatestVersion(); got != tt.want {
				t.Errorf("LatestVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProviderVersions_Yanked(t *testing.T) {
	pv := &ProviderVersions{
		Versions: []string{"1.0.0", "1.1.0", "2.0.0"},
		YankedVersions: map[string]string{
			"1.0.0": "security vulnerability",
		},
	}

	if !pv.IsYanked("1.0.0") {
		t.Error("IsYanked(1.0.0) = false, want true")
	}
	if pv.IsYanked("2.0.0") {
		t.Error("IsYanked(2.0.0) = true, want false")
	}
	if got := pv.YankReason("1.0.0"); got != "security vulnerability" {
		t.Errorf("YankReason(1.0.0) = %q", got)
	}
	if got := pv.YankReason("2.0.0"); got != "" {
		t.Errorf("YankReason(2.0.0) = %q, want empty", got)
	}

	nonYanked := pv.NonYankedVersions()
	if len(nonYanked) != 2 || nonYanked[0] != "1.1.0" || nonYanked[1] != "2.0.0" {
		t.Errorf("NonYankedVersions() = %v", nonYanked)
	}
}

func TestProviderVersions_HasVersion(t *testing.T) {
	pv := &ProviderVersions{Versions: []string{"1.0.0", "1.1.0"}}

	if !pv.HasVersion("1.0.0") {
		t.Error("HasVersion(1.0.0) = false, want true")
	}
	if pv.HasVersion("3.0.0") {
		t.Error("HasVersion(3.0.0) = true, want false")
	}
}

func TestProviderVersions_IsDeprecated(t *testing.T) {
	pv := &ProviderVersions{Deprecated: "use namespace/newthing instead"}
	if !pv.IsDeprecated() {
		t.Error("IsDeprecated() = false, want true")
	}
	if (&ProviderVersions{}).IsDeprecated() {
		t.Error("empty Deprecated should not report deprecated")
	}
}

func TestProviderVersions_JSONShape(t *testing.T) {
	data := []byte(`{
		"versions": ["1.0.0"],
		"yanked_versions": {"1.0.0": "bad release"},
		"deprecated": "superseded"
	}`)

	var pv ProviderVersions
	if err := json.Unmarshal(data, &pv); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if pv.YankReason("1.0.0") != "bad release" {
		t.Errorf("YankReason = %q", pv.YankReason("1.0.0"))
	}
	if pv.Deprecated != "superseded" {
		t.Errorf("Deprecated = %q", pv.Deprecated)
	}
}

func TestPackageInfo_JSONShape(t *testing.T) {
	data := []byte(`{
		"url": "https://releases.example.com/aws_5.7.0.zip",
		"checksums": ["h1:abc"],
		"protocols": ["6.0"]
	}`)

	var pi PackageInfo
	if err := json.Unmarshal(data, &pi); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if pi.URL == "" || len(pi.Checksums) != 1 || len(pi.Protocols) != 1 {
		t.Errorf("PackageInfo = %+v", pi)
	}
}
