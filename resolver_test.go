package provreq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/provreq/go-provreq/addrs"
	"github.com/provreq/go-provreq/lockfile"
	"github.com/provreq/go-provreq/solver"
)

// newProviderRegistry serves a small fixed provider catalog in the registry
// document layout and counts requests, so tests can tell cached lookups
// from refetches.
func newProviderRegistry(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	documents := map[string]string{
		"/providers/registry.terraform.io/hashicorp/aws/versions.json":             `{"versions": ["4.15.0", "4.16.0", "4.17.0-beta1"]}`,
		"/providers/registry.terraform.io/hashicorp/aws/4.15.0/package.json":       `{"url": "https://example.com/aws-4.15.0.zip", "checksums": ["h1:aws4150="]}`,
		"/providers/registry.terraform.io/hashicorp/aws/4.16.0/package.json":       `{"url": "https://example.com/aws-4.16.0.zip", "checksums": ["zh:aws4160zip=", "h1:aws4160="]}`,
		"/providers/registry.terraform.io/hashicorp/aws/4.17.0-beta1/package.json": `{"url": "https://example.com/aws-4.17.0-beta1.zip", "checksums": ["h1:aws417beta="]}`,

		"/providers/registry.terraform.io/hashicorp/random/versions.json":      `{"versions": ["3.4.0", "3.5.1"]}`,
		"/providers/registry.terraform.io/hashicorp/random/3.4.0/package.json": `{"url": "https://example.com/random-3.4.0.zip", "checksums": ["h1:random340="]}`,
		"/providers/registry.terraform.io/hashicorp/random/3.5.1/package.json": `{"url": "https://example.com/random-3.5.1.zip", "checksums": ["h1:random351="]}`,

		"/providers/registry.terraform.io/hashicorp/consul/versions.json":      `{"versions": ["2.0.0"], "deprecated": "superseded by the partner build"}`,
		"/providers/registry.terraform.io/hashicorp/consul/2.0.0/package.json": `{"url": "https://example.com/consul-2.0.0.zip", "checksums": ["h1:consul200="]}`,

		"/providers/example.com/corp/mycloud/versions.json":      `{"versions": ["1.0.0"]}`,
		"/providers/example.com/corp/mycloud/1.0.0/package.json": `{"url": "https://example.com/mycloud-1.0.0.zip", "checksums": ["h1:mycloud100="]}`,
	}

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, ok := documents[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func mustResolve(t *testing.T, root *Module, opts ...Option) *Result {
	t.Helper()
	result, err := Resolve(context.Background(), root, opts...)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return result
}

func TestResolve_EndToEnd(t *testing.T) {
	server, _ := newProviderRegistry(t)

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws":    {Source: "hashicorp/aws", Version: ">= 4.15.0"},
			"consul": {Source: "hashicorp/consul"},
		},
		Resources: []string{"random_pet"},
		Children: map[string]*Module{
			"network": {
				RequiredProviders: map[string]ProviderRequirement{
					"aws": {Source: "hashicorp/aws", Version: "~> 4.16"},
				},
			},
		},
	}

	result := mustResolve(t, root, WithRegistries(server.URL))

	if len(result.Providers) != 3 {
		t.Fatalf("resolved %d providers, want 3", len(result.Providers))
	}

	aws := result.Provider(addrs.MustParseProviderSource("hashicorp/aws"))
	if aws == nil {
		t.Fatal("aws missing from result")
	}
	// 4.17.0-beta1 is newer but prereleases need an exact pin; 4.16.0 is
	// the newest version satisfying both modules.
	if aws.Version != "4.16.0" {
		t.Errorf("aws version = %s, want 4.16.0", aws.Version)
	}
	if aws.Constraints != ">= 4.15.0, ~> 4.16" {
		t.Errorf("aws constraints = %q, want the merged set", aws.Constraints)
	}
	wantRequiredBy := []string{"<root>", "<root>.network"}
	if len(aws.RequiredBy) != 2 || aws.RequiredBy[0] != wantRequiredBy[0] || aws.RequiredBy[1] != wantRequiredBy[1] {
		t.Errorf("aws.RequiredBy = %v, want %v", aws.RequiredBy, wantRequiredBy)
	}
	// Hashes come back sorted.
	if len(aws.Hashes) != 2 || aws.Hashes[0] != "h1:aws4160=" || aws.Hashes[1] != "zh:aws4160zip=" {
		t.Errorf("aws.Hashes = %v, want sorted checksums", aws.Hashes)
	}

	random := result.Provider(addrs.MustParseProviderSource("hashicorp/random"))
	if random == nil {
		t.Fatal("implied random provider missing from result")
	}
	if random.Version != "3.5.1" {
		t.Errorf("random version = %s, want 3.5.1", random.Version)
	}

	consul := result.Provider(addrs.MustParseProviderSource("hashicorp/consul"))
	if consul == nil || !consul.Deprecated {
		t.Errorf("consul = %+v, want flagged deprecated", consul)
	}

	// Providers are sorted by address.
	for i := 1; i < len(result.Providers); i++ {
		if !result.Providers[i-1].Provider.Less(result.Providers[i].Provider) {
			t.Errorf("providers out of order at %d: %v", i, result.Providers[i].Provider)
		}
	}

	summary := result.Summary
	if summary.TotalProviders != 3 || summary.RootProviders != 3 || summary.ChildProviders != 0 {
		t.Errorf("summary = %+v, want 3 root providers", summary)
	}

	if result.Graph == nil {
		t.Fatal("result.Graph is nil")
	}
	if result.Graph.Module("<root>.network") == nil {
		t.Error("graph missing the child module")
	}
	awsNode := result.Graph.Provider(addrs.MustParseProviderSource("hashicorp/aws"))
	if awsNode == nil || awsNode.Selection == nil {
		t.Fatal("graph missing the aws selection")
	}
	if awsNode.Selection.SelectedVersion != "4.16.0" || awsNode.Selection.PinnedByLock {
		t.Errorf("graph selection = %+v, want fresh 4.16.0", awsNode.Selection)
	}
}

func TestResolve_NilRootModule(t *testing.T) {
	_, err := Resolve(context.Background(), nil, WithSource(NewStaticSource("")))
	if err == nil || !strings.Contains(err.Error(), "root module is nil") {
		t.Errorf("Resolve(nil) error = %v, want nil-module error", err)
	}
}

func TestResolve_PrereleaseNeedsExactPin(t *testing.T) {
	server, _ := newProviderRegistry(t)

	t.Run("range constraint skips prereleases", func(t *testing.T) {
		root := &Module{
			RequiredProviders: map[string]ProviderRequirement{
				"aws": {Source: "hashicorp/aws", Version: ">= 4.0.0"},
			},
		}
		result := mustResolve(t, root, WithRegistries(server.URL))
		if got := result.Provider(addrs.MustParseProviderSource("hashicorp/aws")).Version; got != "4.16.0" {
			t.Errorf("selected %s, want 4.16.0", got)
		}
	})

	t.Run("exact pin admits the prerelease", func(t *testing.T) {
		root := &Module{
			RequiredProviders: map[string]ProviderRequirement{
				"aws": {Source: "hashicorp/aws", Version: "= 4.17.0-beta1"},
			},
		}
		result := mustResolve(t, root, WithRegistries(server.URL))
		if got := result.Provider(addrs.MustParseProviderSource("hashicorp/aws")).Version; got != "4.17.0-beta1" {
			t.Errorf("selected %s, want the pinned prerelease", got)
		}
	})
}

func TestResolve_ImpliedProviderUsesDeclaration(t *testing.T) {
	// The resource prefix "mycloud" matches a declared provider's type, so
	// no extra default-namespace requirement is implied.
	server, _ := newProviderRegistry(t)

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"cloudy": {Source: "example.com/corp/mycloud"},
		},
		Resources: []string{"mycloud_instance", "mycloud_bucket"},
	}

	result := mustResolve(t, root, WithRegistries(server.URL))

	if len(result.Providers) != 1 {
		t.Fatalf("resolved %d providers, want just the declared one", len(result.Providers))
	}
	mycloud := addrs.MustParseProviderSource("example.com/corp/mycloud")
	if result.Provider(mycloud) == nil {
		t.Fatal("declared provider missing")
	}
	if result.Provider(addrs.NewDefaultProvider("mycloud")) != nil {
		t.Error("a default-namespace mycloud was implied despite the declaration")
	}

	edges := result.Graph.RequirementsFor(mycloud)
	if len(edges) != 1 || edges[0].Implied || edges[0].LocalName != "cloudy" {
		t.Errorf("graph edges = %+v, want one declared edge named cloudy", edges)
	}
}

func TestResolve_ImpliedProviderRecorded(t *testing.T) {
	server, _ := newProviderRegistry(t)

	root := &Module{Resources: []string{"random_pet", "random_id"}}
	result := mustResolve(t, root, WithRegistries(server.URL))

	random := addrs.MustParseProviderSource("hashicorp/random")
	if result.Provider(random) == nil {
		t.Fatal("implied provider missing from result")
	}

	edges := result.Graph.RequirementsFor(random)
	if len(edges) != 1 {
		t.Fatalf("graph edges = %+v, want one (deduplicated by prefix)", edges)
	}
	if !edges[0].Implied || edges[0].LocalName != "random" {
		t.Errorf("edge = %+v, want implied edge named random", edges[0])
	}
}

func TestResolve_BuiltInProvider(t *testing.T) {
	server, _ := newProviderRegistry(t)

	t.Run("excluded from solving", func(t *testing.T) {
		root := &Module{
			RequiredProviders: map[string]ProviderRequirement{
				"aws":       {Source: "hashicorp/aws", Version: ">= 4.16.0"},
				"terraform": {Source: "terraform.io/builtin/terraform"},
			},
		}

		result := mustResolve(t, root, WithRegistries(server.URL))

		builtin := result.Provider(addrs.NewBuiltInProvider("terraform"))
		if builtin == nil {
			t.Fatal("built-in provider missing from result")
		}
		if !builtin.BuiltIn || builtin.Version != "" || len(builtin.Hashes) != 0 {
			t.Errorf("builtin = %+v, want no version and no hashes", builtin)
		}
		if result.Summary.BuiltInProviders != 1 {
			t.Errorf("Summary.BuiltInProviders = %d, want 1", result.Summary.BuiltInProviders)
		}

		node := result.Graph.Provider(addrs.NewBuiltInProvider("terraform"))
		if node == nil {
			t.Fatal("graph missing the built-in provider")
		}
		if node.Selection != nil {
			t.Error("built-in provider carries a selection")
		}

		if result.Lock().HasEntry(addrs.NewBuiltInProvider("terraform")) {
			t.Error("built-in provider leaked into the lock")
		}
	})

	t.Run("version constraint rejected", func(t *testing.T) {
		root := &Module{
			RequiredProviders: map[string]ProviderRequirement{
				"terraform": {Source: "terraform.io/builtin/terraform", Version: ">= 1.0.0"},
			},
		}

		_, err := Resolve(context.Background(), root, WithRegistries(server.URL))
		var builtinErr *BuiltInProviderError
		if !errors.As(err, &builtinErr) {
			t.Fatalf("Resolve() error = %v, want BuiltInProviderError", err)
		}
		if builtinErr.ModulePath != "<root>" || builtinErr.LocalName != "terraform" {
			t.Errorf("error locates %s %q", builtinErr.ModulePath, builtinErr.LocalName)
		}
	})
}

func TestResolve_UnknownProvider(t *testing.T) {
	server, _ := newProviderRegistry(t)

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"nosuch": {Source: "hashicorp/nosuch"},
		},
	}

	_, err := Resolve(context.Background(), root, WithRegistries(server.URL))
	if !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrProviderNotFound", err)
	}
	if !strings.Contains(err.Error(), "fetch versions for hashicorp/nosuch") {
		t.Errorf("error %q does not name the provider being fetched", err)
	}
}

func TestResolve_UnsatisfiableConstraints(t *testing.T) {
	server, _ := newProviderRegistry(t)

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws", Version: "= 4.15.0"},
		},
		Children: map[string]*Module{
			"network": {
				RequiredProviders: map[string]ProviderRequirement{
					"aws": {Source: "hashicorp/aws", Version: ">= 4.16.0"},
				},
			},
		},
	}

	_, err := Resolve(context.Background(), root, WithRegistries(server.URL))
	var unsat *UnsatisfiableConstraintsError
	if !errors.As(err, &unsat) {
		t.Fatalf("Resolve() error = %v, want UnsatisfiableConstraintsError", err)
	}
	if len(unsat.Requirements) != 2 {
		t.Errorf("error carries %d requirements, want both declarations", len(unsat.Requirements))
	}
}

func TestResolve_DuplicateProviderDeclaration(t *testing.T) {
	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"amazon": {Source: "hashicorp/aws"},
			"aws":    {Source: "hashicorp/aws"},
		},
	}

	_, err := Resolve(context.Background(), root, WithSource(NewStaticSource("")))
	var dup *DuplicateProviderError
	if !errors.As(err, &dup) {
		t.Fatalf("Resolve() error = %v, want DuplicateProviderError", err)
	}
	// Local names are visited in sorted order, so "amazon" claims first.
	if dup.ExistingName != "amazon" || dup.ClaimedName != "aws" {
		t.Errorf("error names = %q then %q, want amazon then aws", dup.ExistingName, dup.ClaimedName)
	}
}

func TestResolve_InvalidConstraint(t *testing.T) {
	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws", Version: "not-a-constraint"},
		},
	}

	_, err := Resolve(context.Background(), root, WithSource(NewStaticSource("")))
	if err == nil || !strings.Contains(err.Error(), `invalid version constraint "not-a-constraint"`) {
		t.Errorf("Resolve() error = %v, want constraint parse failure", err)
	}
}

func TestResolve_LockPinHolds(t *testing.T) {
	server, _ := newProviderRegistry(t)

	aws := addrs.MustParseProviderSource("hashicorp/aws")
	lock := lockfile.New()
	lock.SetEntry(aws, &lockfile.ProviderEntry{
		Version: "4.15.0",
		Hashes:  []string{"h1:aws4150="},
	})

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws", Version: ">= 4.15.0"},
		},
	}

	result := mustResolve(t, root, WithRegistries(server.URL), WithLock(lock))

	selected := result.Provider(aws)
	if selected.Version != "4.15.0" || !selected.PinnedByLock {
		t.Errorf("selection = %s pinned=%v, want the locked 4.15.0", selected.Version, selected.PinnedByLock)
	}
	if result.Summary.LockedProviders != 1 {
		t.Errorf("Summary.LockedProviders = %d, want 1", result.Summary.LockedProviders)
	}

	node := result.Graph.Provider(aws)
	if node.Selection.Strategy != "lock" || !node.Selection.PinnedByLock {
		t.Errorf("graph selection = %+v, want the lock strategy", node.Selection)
	}
}

func TestResolve_LockVersionMismatch(t *testing.T) {
	server, _ := newProviderRegistry(t)

	aws := addrs.MustParseProviderSource("hashicorp/aws")
	lock := lockfile.New()
	lock.SetEntry(aws, &lockfile.ProviderEntry{Version: "9.9.9"})

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws", Version: ">= 4.0.0"},
		},
	}

	_, err := Resolve(context.Background(), root, WithRegistries(server.URL), WithLock(lock))
	var mismatch *LockMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Resolve() error = %v, want LockMismatchError", err)
	}
	if mismatch.Reason != solver.LockMismatchVersion {
		t.Errorf("Reason = %q, want version mismatch", mismatch.Reason)
	}
	if mismatch.LockedVersion != "9.9.9" || len(mismatch.SatisfyingVersions) == 0 {
		t.Errorf("mismatch = %+v, want the pin and the satisfying set", mismatch)
	}
}

func TestResolve_LockChecksumMismatch(t *testing.T) {
	server, _ := newProviderRegistry(t)

	aws := addrs.MustParseProviderSource("hashicorp/aws")
	lock := lockfile.New()
	lock.SetEntry(aws, &lockfile.ProviderEntry{
		Version: "4.15.0",
		Hashes:  []string{"h1:tampered="},
	})

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws"},
		},
	}

	_, err := Resolve(context.Background(), root, WithRegistries(server.URL), WithLock(lock))
	var mismatch *LockMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Resolve() error = %v, want LockMismatchError", err)
	}
	if mismatch.Reason != solver.LockMismatchChecksum {
		t.Errorf("Reason = %q, want checksum mismatch", mismatch.Reason)
	}
	if len(mismatch.LockedHashes) != 1 || mismatch.LockedHashes[0] != "h1:tampered=" {
		t.Errorf("LockedHashes = %v", mismatch.LockedHashes)
	}
	if len(mismatch.ReportedHashes) != 1 || mismatch.ReportedHashes[0] != "h1:aws4150=" {
		t.Errorf("ReportedHashes = %v", mismatch.ReportedHashes)
	}
}

func TestResolve_LockChecksumIntersects(t *testing.T) {
	// One shared hash is enough: schemes can differ between what the lock
	// recorded and what the source reports.
	server, _ := newProviderRegistry(t)

	aws := addrs.MustParseProviderSource("hashicorp/aws")
	lock := lockfile.New()
	lock.SetEntry(aws, &lockfile.ProviderEntry{
		Version: "4.16.0",
		Hashes:  []string{"h1:aws4160=", "h1:fromanotherplatform="},
	})

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws"},
		},
	}

	result := mustResolve(t, root, WithRegistries(server.URL), WithLock(lock))
	if got := result.Provider(aws); !got.PinnedByLock || got.Version != "4.16.0" {
		t.Errorf("selection = %+v, want the verified lock pin", got)
	}
}

func TestResolve_ConstraintDrift(t *testing.T) {
	server, _ := newProviderRegistry(t)

	aws := addrs.MustParseProviderSource("hashicorp/aws")
	newLock := func() *lockfile.Lock {
		lock := lockfile.New()
		lock.SetEntry(aws, &lockfile.ProviderEntry{
			Version:     "4.15.0",
			Constraints: ">= 4.0.0",
		})
		return lock
	}

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws", Version: ">= 4.15.0"},
		},
	}

	t.Run("ignored by default", func(t *testing.T) {
		result := mustResolve(t, root, WithRegistries(server.URL), WithLock(newLock()))
		for _, w := range result.Warnings {
			if strings.Contains(w, "drifted") {
				t.Errorf("drift warning present without opting in: %q", w)
			}
		}
	})

	t.Run("warn mode", func(t *testing.T) {
		result := mustResolve(t, root,
			WithRegistries(server.URL),
			WithLock(newLock()),
			WithConstraintDrift(DriftWarn))

		found := false
		for _, w := range result.Warnings {
			if strings.Contains(w, "drifted") && strings.Contains(w, ">= 4.0.0") {
				found = true
			}
		}
		if !found {
			t.Errorf("Warnings = %v, want a drift warning", result.Warnings)
		}
	})

	t.Run("error mode", func(t *testing.T) {
		_, err := Resolve(context.Background(), root,
			WithRegistries(server.URL),
			WithLock(newLock()),
			WithConstraintDrift(DriftError))

		var driftErr *ConstraintDriftError
		if !errors.As(err, &driftErr) {
			t.Fatalf("Resolve() error = %v, want ConstraintDriftError", err)
		}
		if len(driftErr.Drifted) != 1 {
			t.Fatalf("Drifted = %+v, want one entry", driftErr.Drifted)
		}
		d := driftErr.Drifted[0]
		if d.Locked != ">= 4.0.0" || d.Current != ">= 4.15.0" {
			t.Errorf("drift = %+v, want locked >= 4.0.0 vs current >= 4.15.0", d)
		}
	})

	t.Run("no drift when constraints match", func(t *testing.T) {
		lock := lockfile.New()
		lock.SetEntry(aws, &lockfile.ProviderEntry{
			Version:     "4.15.0",
			Constraints: ">= 4.15.0",
		})
		_, err := Resolve(context.Background(), root,
			WithRegistries(server.URL),
			WithLock(lock),
			WithConstraintDrift(DriftError))
		if err != nil {
			t.Errorf("Resolve() error = %v, want matching constraints accepted", err)
		}
	})
}

func TestResolve_DeprecatedProvider(t *testing.T) {
	server, _ := newProviderRegistry(t)

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"consul": {Source: "hashicorp/consul"},
		},
	}

	t.Run("flagged without warning by default", func(t *testing.T) {
		result := mustResolve(t, root, WithRegistries(server.URL))
		consul := result.Provider(addrs.MustParseProviderSource("hashicorp/consul"))
		if !consul.Deprecated || consul.DeprecationReason != "superseded by the partner build" {
			t.Errorf("consul = %+v, want deprecation metadata", consul)
		}
		if len(result.Warnings) != 0 {
			t.Errorf("Warnings = %v, want none without opting in", result.Warnings)
		}
	})

	t.Run("warning when enabled", func(t *testing.T) {
		result := mustResolve(t, root,
			WithRegistries(server.URL),
			WithDeprecatedWarnings(true))

		found := false
		for _, w := range result.Warnings {
			if strings.Contains(w, "deprecated") && strings.Contains(w, "hashicorp/consul") {
				found = true
			}
		}
		if !found {
			t.Errorf("Warnings = %v, want a deprecation warning", result.Warnings)
		}
	})
}

func TestResolve_MirrorOffline(t *testing.T) {
	// A mirror with one explicit index and bare package directories serves
	// a full resolution with no network access at all.
	mirror := t.TempDir()
	base := "providers/registry.terraform.io/hashicorp/aws"
	writeMirrorFile(t, mirror, base+"/versions.json", `{"versions": ["4.15.0", "4.16.0"]}`)
	writeMirrorFile(t, mirror, base+"/4.16.0/provider.bin", "mirrored package contents")

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws", Version: ">= 4.15.0"},
		},
	}

	result := mustResolve(t, root,
		WithMirrorDir(mirror),
		WithNetworkMode(NetworkOffline))

	aws := result.Provider(addrs.MustParseProviderSource("hashicorp/aws"))
	if aws.Version != "4.16.0" {
		t.Errorf("selected %s, want 4.16.0", aws.Version)
	}
	if len(aws.Hashes) != 1 || !strings.HasPrefix(aws.Hashes[0], "h1:") {
		t.Errorf("aws.Hashes = %v, want a synthesized directory hash", aws.Hashes)
	}
}

func TestResolve_OfflineNeedsALocalSource(t *testing.T) {
	_, err := NewResolver(WithNetworkMode(NetworkOffline))
	if err == nil || !strings.Contains(err.Error(), "offline mode needs") {
		t.Errorf("NewResolver() error = %v, want offline-source error", err)
	}
}

func TestResolve_RegistryChainFallback(t *testing.T) {
	// The first registry knows nothing; the second carries the catalog.
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(empty.Close)
	server, _ := newProviderRegistry(t)

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"random": {Source: "hashicorp/random"},
		},
	}

	result := mustResolve(t, root, WithRegistries(empty.URL, server.URL))
	if got := result.Provider(addrs.MustParseProviderSource("hashicorp/random")).Version; got != "3.5.1" {
		t.Errorf("selected %s, want 3.5.1 from the fallback registry", got)
	}
}

func TestResolve_NetworkAllowlist(t *testing.T) {
	server, _ := newProviderRegistry(t)

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws"},
		},
	}

	t.Run("blocked host", func(t *testing.T) {
		_, err := Resolve(context.Background(), root,
			WithRegistries(server.URL),
			WithNetworkMode(NetworkAllowlist),
			WithAllowedDomains("registry.example.com"))
		if !errors.Is(err, ErrHostNotAllowed) {
			t.Errorf("Resolve() error = %v, want ErrHostNotAllowed", err)
		}
	})

	t.Run("allowed host", func(t *testing.T) {
		// httptest binds to 127.0.0.1.
		result := mustResolve(t, root,
			WithRegistries(server.URL),
			WithNetworkMode(NetworkAllowlist),
			WithAllowedDomains("127.0.0.1"))
		if result.Provider(addrs.MustParseProviderSource("hashicorp/aws")) == nil {
			t.Error("aws missing from result")
		}
	})
}

func TestResolve_ProgressEvents(t *testing.T) {
	server, _ := newProviderRegistry(t)

	var mu sync.Mutex
	var events []ProgressEvent

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws"},
		},
	}

	mustResolve(t, root,
		WithRegistries(server.URL),
		WithProgress(func(ev ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		}))

	mu.Lock()
	defer mu.Unlock()

	if len(events) == 0 || events[0].Stage != StageWalk {
		t.Fatalf("events = %+v, want the walk stage first", events)
	}

	aws := addrs.MustParseProviderSource("hashicorp/aws")
	var sawVersions, sawSolve bool
	for _, ev := range events {
		switch ev.Stage {
		case StageVersions:
			sawVersions = sawVersions || ev.Provider.Equals(aws)
		case StageSolve:
			sawSolve = sawSolve || ev.Provider.Equals(aws)
		}
	}
	if !sawVersions || !sawSolve {
		t.Errorf("events = %+v, want versions and solve stages for aws", events)
	}
}

func TestResolver_SecondResolveServedFromCache(t *testing.T) {
	server, hits := newProviderRegistry(t)

	resolver, err := NewResolver(WithRegistries(server.URL))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"random": {Source: "hashicorp/random"},
		},
	}

	if _, err := resolver.Resolve(context.Background(), root); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	after := hits.Load()
	if after == 0 {
		t.Fatal("first resolution hit the registry zero times")
	}

	if _, err := resolver.Resolve(context.Background(), root); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if hits.Load() != after {
		t.Errorf("second resolution refetched: %d hits, want %d", hits.Load(), after)
	}
}

func TestResolve_MetadataCacheSpansResolvers(t *testing.T) {
	// A shared cache lets a fresh resolver skip the registry entirely.
	server, hits := newProviderRegistry(t)
	cache := NewMemoryCache()

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"random": {Source: "hashicorp/random"},
		},
	}

	mustResolve(t, root, WithRegistries(server.URL), WithCache(cache))
	after := hits.Load()

	mustResolve(t, root, WithRegistries(server.URL), WithCache(cache))
	if hits.Load() != after {
		t.Errorf("second resolver refetched: %d hits, want %d", hits.Load(), after)
	}
	if cache.Len() == 0 {
		t.Error("cache is empty after resolution")
	}
}

func TestResolve_ContextCancelled(t *testing.T) {
	server, _ := newProviderRegistry(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws"},
		},
	}

	_, err := Resolve(ctx, root, WithRegistries(server.URL))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

func TestResolve_CoreVersionGate(t *testing.T) {
	root := &Module{
		RequiredCore: []string{">= 1.3.0"},
		RequiredProviders: map[string]ProviderRequirement{
			"aws": {Source: "hashicorp/aws"},
		},
	}

	t.Run("running version too old", func(t *testing.T) {
		_, err := Resolve(context.Background(), root,
			WithSource(NewStaticSource("")),
			WithCoreVersion("1.2.0"))
		var coreErr *CoreVersionError
		if !errors.As(err, &coreErr) {
			t.Fatalf("Resolve() error = %v, want CoreVersionError", err)
		}
	})

	t.Run("satisfied version resolves", func(t *testing.T) {
		src := NewStaticSource("")
		src.AddProvider(addrs.MustParseProviderSource("hashicorp/aws"), "4.16.0")
		result := mustResolve(t, root,
			WithSource(src),
			WithCoreVersion("1.4.0"))
		if result.Provider(addrs.MustParseProviderSource("hashicorp/aws")) == nil {
			t.Error("aws missing from result")
		}
	})
}

func TestResolve_LockRoundTrip(t *testing.T) {
	server, _ := newProviderRegistry(t)

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"aws":    {Source: "hashicorp/aws", Version: ">= 4.15.0"},
			"random": {Source: "hashicorp/random"},
		},
	}

	first := mustResolve(t, root, WithRegistries(server.URL))

	lockPath := filepath.Join(t.TempDir(), "providers.lock.json")
	if err := first.Lock().WriteFile(lockPath); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	second := mustResolve(t, root,
		WithRegistries(server.URL),
		WithLockFile(lockPath))

	if second.Summary.LockedProviders != 2 {
		t.Errorf("Summary.LockedProviders = %d, want both pins honored", second.Summary.LockedProviders)
	}
	for _, p := range second.Providers {
		if !p.PinnedByLock {
			t.Errorf("%s not pinned by the written lock", p.Provider)
		}
	}
	if diff := DiffResults(first, second); !diff.IsEmpty() {
		t.Errorf("diff after lock round trip = %+v, want identical selections", diff)
	}
}

func TestResolve_MissingLockFileMeansFirstRun(t *testing.T) {
	server, _ := newProviderRegistry(t)

	root := &Module{
		RequiredProviders: map[string]ProviderRequirement{
			"random": {Source: "hashicorp/random"},
		},
	}

	result := mustResolve(t, root,
		WithRegistries(server.URL),
		WithLockFile(filepath.Join(t.TempDir(), "providers.lock.json")))

	if result.Summary.LockedProviders != 0 {
		t.Errorf("Summary.LockedProviders = %d, want none on a first run", result.Summary.LockedProviders)
	}
}

func TestResolve_GraphExplainsSelection(t *testing.T) {
	server, _ := newProviderRegistry(t)

	root := &Module{
		Children: map[string]*Module{
			"network": {
				RequiredProviders: map[string]ProviderRequirement{
					"aws": {Source: "hashicorp/aws", Version: "~> 4.15"},
				},
			},
		},
	}

	result := mustResolve(t, root, WithRegistries(server.URL))

	aws := addrs.MustParseProviderSource("hashicorp/aws")
	explanation, err := result.Graph.Explain(aws)
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if explanation.Selection == nil || explanation.Selection.SelectedVersion != "4.16.0" {
		t.Fatalf("explanation selection = %+v, want 4.16.0", explanation.Selection)
	}
	if len(explanation.Chains) != 1 {
		t.Fatalf("Chains = %+v, want one root-to-module path", explanation.Chains)
	}
	chain := explanation.Chains[0]
	if len(chain.Path) != 2 || chain.Path[0] != "<root>" || chain.Path[1] != "<root>.network" {
		t.Errorf("chain path = %v, want root then network", chain.Path)
	}

	// Candidate annotations explain the losers too.
	var betaAnnotated bool
	for _, c := range explanation.Selection.Candidates {
		if c.Version == "4.17.0-beta1" && !c.Eligible && c.Reason != "" {
			betaAnnotated = true
		}
	}
	if !betaAnnotated {
		t.Errorf("candidates = %+v, want the prerelease annotated as rejected",
			explanation.Selection.Candidates)
	}
}
