package provreq

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"sort"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"golang.org/x/sync/errgroup"

	"github.com/provreq/go-provreq/addrs"
	"github.com/provreq/go-provreq/graph"
	"github.com/provreq/go-provreq/lockfile"
	"github.com/provreq/go-provreq/registry"
	"github.com/provreq/go-provreq/solver"
)

// DefaultRegistryURL is the registry consulted when no sources are
// configured.
const DefaultRegistryURL = "https://registry.terraform.io"

const defaultMaxConcurrency = 5

// Resolver resolves the provider requirements of a module tree to exact
// versions.
//
// Resolution proceeds in four phases:
//  1. Requirement collection: the module tree is walked once, building each
//     module's local name table and merging per-provider constraint sets
//     across modules. Resource types imply providers that were never
//     declared.
//  2. Version selection: for each provider, the available versions are
//     fetched from the configured sources and the newest version satisfying
//     every module's constraints is selected. A lock entry pins its version
//     instead, as long as that version still satisfies the constraints.
//  3. Verification: selected versions are checked against the yanked-version
//     policy and, for lock pins, against the locked checksums.
//  4. Assembly: selections, warnings, summary counts, and the requirement
//     graph are packaged into a Result.
//
// Providers resolve concurrently (up to 5 at a time). Sources cache fetched
// documents, so resolving repeatedly over the same Resolver avoids redundant
// requests.
type Resolver struct {
	config *resolverConfig
	source Source
	lock   *lockfile.Lock
	policy *solver.Policy
}

// NewResolver creates a resolver from the given options. Returns an error
// when the options are inconsistent (see the With* constructors), the mirror
// directory is unusable, or the lock file exists but cannot be parsed.
func NewResolver(opts ...Option) (*Resolver, error) {
	cfg, err := newResolverConfig(opts...)
	if err != nil {
		return nil, err
	}

	source, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	lock, err := loadLock(cfg)
	if err != nil {
		return nil, err
	}

	policy, err := buildYankedPolicy(cfg)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		config: cfg,
		source: source,
		lock:   lock,
		policy: policy,
	}, nil
}

// Resolve resolves every provider the module tree requires and returns the
// selections.
//
// The method is safe for concurrent use and respects context cancellation.
func (r *Resolver) Resolve(ctx context.Context, root *Module) (*Result, error) {
	if root == nil {
		return nil, fmt.Errorf("root module is nil")
	}
	log := r.config.log()

	if r.config.coreVersion != "" {
		running, err := goversion.NewVersion(r.config.coreVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid core version %q: %w", r.config.coreVersion, err)
		}
		if err := checkCoreVersions(root, running); err != nil {
			return nil, err
		}
	}

	r.progress(StageWalk, addrs.Provider{}, "collecting provider requirements")
	collection, err := collectRequirements(root)
	if err != nil {
		return nil, err
	}

	driftWarnings, err := r.checkDrift(collection)
	if err != nil {
		return nil, err
	}

	providers := collection.sortedProviders()
	log.Info("resolving providers",
		"modules", collection.moduleCount,
		"providers", len(providers),
		"builtin", len(collection.builtin))

	resolutions := make([]*providerResolution, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultMaxConcurrency)
	for i, provider := range providers {
		g.Go(func() error {
			res, err := r.resolveProvider(gctx, provider, collection.requirements[provider])
			if err != nil {
				// Yanked rejections are collected across all providers so
				// the caller sees every offender in one error.
				var yankErr *solver.YankedVersionError
				if errors.As(err, &yankErr) {
					resolutions[i] = &providerResolution{provider: provider, yankedErr: yankErr}
					return nil
				}
				return err
			}
			resolutions[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var yanked []*solver.YankedVersionError
	for _, res := range resolutions {
		if res.yankedErr != nil {
			yanked = append(yanked, res.yankedErr)
		}
	}
	if err := yankedSelectionsError(yanked); err != nil {
		return nil, err
	}

	return r.buildResult(collection, resolutions, driftWarnings), nil
}

func (r *Resolver) progress(stage string, provider addrs.Provider, message string) {
	if r.config.onProgress == nil {
		return
	}
	r.config.onProgress(ProgressEvent{Stage: stage, Provider: provider, Message: message})
}

// requirementCollection is the outcome of walking the module tree: merged
// constraint sets per provider, required-by attribution, and the graph
// records behind both.
type requirementCollection struct {
	requirements map[addrs.Provider][]solver.Requirement
	requiredBy   map[addrs.Provider]map[string]bool
	builtin      map[addrs.Provider]bool
	localNames   map[string]*LocalNames
	moduleCount  int
	builder      *graph.Builder
}

func collectRequirements(root *Module) (*requirementCollection, error) {
	c := &requirementCollection{
		requirements: make(map[addrs.Provider][]solver.Requirement),
		requiredBy:   make(map[addrs.Provider]map[string]bool),
		builtin:      make(map[addrs.Provider]bool),
		localNames:   make(map[string]*LocalNames),
		builder:      graph.NewBuilder(),
	}
	if err := c.walk(root, RootModuleName, ""); err != nil {
		return nil, err
	}
	return c, nil
}

// walk visits one module and then its children, in sorted call-name order so
// two runs over the same tree produce identical records.
func (c *requirementCollection) walk(m *Module, path, parent string) error {
	if m == nil {
		return fmt.Errorf("module %s is nil", path)
	}
	c.moduleCount++
	c.builder.AddModule(path, parent)

	names := NewLocalNames(path)
	c.localNames[path] = names

	for _, localName := range slices.Sorted(maps.Keys(m.RequiredProviders)) {
		req := m.RequiredProviders[localName]

		provider, err := providerForRequirement(localName, req)
		if err != nil {
			return fmt.Errorf("module %s: provider %q: %w", path, localName, err)
		}
		if err := names.Declare(localName, provider); err != nil {
			return err
		}

		if provider.IsBuiltIn() {
			if req.Version != "" {
				return &BuiltInProviderError{
					ModulePath: path,
					LocalName:  localName,
					Provider:   provider,
					Detail:     "built-in providers are part of the running tool and take no version constraint",
				}
			}
			c.builtin[provider] = true
			c.noteRequiredBy(provider, path)
			c.builder.AddRequirement(path, provider, localName, "", false)
			continue
		}

		requirement, err := solver.ParseRequirement(path, req.Version, false)
		if err != nil {
			return fmt.Errorf("module %s: provider %q: invalid version constraint %q: %w", path, localName, req.Version, err)
		}
		c.requirements[provider] = append(c.requirements[provider], requirement)
		c.noteRequiredBy(provider, path)
		c.builder.AddRequirement(path, provider, localName, requirement.Raw, false)
	}

	seenPrefixes := make(map[string]bool)
	for _, resource := range m.Resources {
		prefix := addrs.ImpliedProviderType(resource)
		if prefix == "" || seenPrefixes[prefix] {
			continue
		}
		seenPrefixes[prefix] = true

		provider, declared, err := names.ResolveImplicit(prefix)
		if err != nil {
			return err
		}
		if declared {
			// The resource's provider is already a declared requirement of
			// this module.
			continue
		}

		requirement, err := solver.ParseRequirement(path, "", true)
		if err != nil {
			return err
		}
		c.requirements[provider] = append(c.requirements[provider], requirement)
		c.noteRequiredBy(provider, path)
		c.builder.AddRequirement(path, provider, prefix, "", true)
	}

	for _, call := range slices.Sorted(maps.Keys(m.Children)) {
		if err := c.walk(m.Children[call], childPath(path, call), path); err != nil {
			return err
		}
	}
	return nil
}

func (c *requirementCollection) noteRequiredBy(provider addrs.Provider, path string) {
	if c.requiredBy[provider] == nil {
		c.requiredBy[provider] = make(map[string]bool)
	}
	c.requiredBy[provider][path] = true
}

// sortedProviders returns the solvable (non-builtin) providers in address
// order.
func (c *requirementCollection) sortedProviders() []addrs.Provider {
	providers := make([]addrs.Provider, 0, len(c.requirements))
	for provider := range c.requirements {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Less(providers[j]) })
	return providers
}

func (c *requirementCollection) requiredByPaths(provider addrs.Provider) []string {
	paths := make([]string, 0, len(c.requiredBy[provider]))
	for path := range c.requiredBy[provider] {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// providerForRequirement derives a declaration's provider address. An empty
// source means the local name doubles as a type in the default namespace.
func providerForRequirement(localName string, req ProviderRequirement) (addrs.Provider, error) {
	if strings.TrimSpace(req.Source) == "" {
		if err := addrs.ValidateLocalName(localName); err != nil {
			return addrs.Provider{}, err
		}
		return addrs.NewDefaultProvider(localName), nil
	}
	return addrs.ParseProviderSource(req.Source)
}

// providerResolution is the per-provider outcome of the concurrent phase.
type providerResolution struct {
	provider  addrs.Provider
	selection *solver.Selection
	pkg       *registry.PackageInfo

	deprecated        bool
	deprecationReason string

	// yankedErr is set instead of selection when the yanked policy refused
	// the provider, so all refusals can be reported together.
	yankedErr *solver.YankedVersionError
}

func (r *Resolver) resolveProvider(ctx context.Context, provider addrs.Provider, reqs []solver.Requirement) (*providerResolution, error) {
	log := r.config.log()

	r.progress(StageVersions, provider, "fetching available versions")
	index, err := r.source.ProviderVersions(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("fetch versions for %s: %w", provider.ForDisplay(), err)
	}

	available, err := candidatesFromIndex(provider, index)
	if err != nil {
		return nil, err
	}

	var lockedVersion string
	if r.lock != nil {
		if entry := r.lock.Entry(provider); entry != nil {
			lockedVersion = entry.Version
		}
	}

	r.progress(StageSolve, provider, "selecting version")
	selection, err := solver.Solve(solver.Request{
		Provider:      provider,
		Requirements:  reqs,
		Available:     available,
		LockedVersion: lockedVersion,
		Policy:        r.policy,
	})
	if err != nil {
		return nil, err
	}

	log.Debug("selected provider version",
		"provider", provider.String(),
		"version", selection.Version.String(),
		"pinned_by_lock", selection.PinnedByLock,
		"yanked", selection.Yanked)

	pkg, err := r.source.PackageInfo(ctx, provider, selection.Version.Original())
	if err != nil {
		return nil, fmt.Errorf("fetch package for %s@%s: %w", provider.ForDisplay(), selection.Version, err)
	}

	if selection.PinnedByLock {
		entry := r.lock.Entry(provider)
		if entry != nil && len(entry.Hashes) > 0 && len(pkg.Checksums) > 0 &&
			!lockfile.HashesIntersect(entry.Hashes, pkg.Checksums) {
			return nil, &solver.LockMismatchError{
				Provider:       provider,
				Reason:         solver.LockMismatchChecksum,
				LockedVersion:  entry.Version,
				LockedHashes:   sortedStrings(entry.Hashes),
				ReportedHashes: sortedStrings(pkg.Checksums),
			}
		}
	}

	return &providerResolution{
		provider:          provider,
		selection:         selection,
		pkg:               pkg,
		deprecated:        index.IsDeprecated(),
		deprecationReason: index.Deprecated,
	}, nil
}

// candidatesFromIndex parses a version index into solver candidates. A
// source reporting a version string the version model cannot parse is a
// source error, not a skippable entry: silently dropping it could change
// which version wins.
func candidatesFromIndex(provider addrs.Provider, index *registry.ProviderVersions) ([]solver.Candidate, error) {
	candidates := make([]solver.Candidate, 0, len(index.Versions))
	for _, raw := range index.Versions {
		v, err := goversion.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("provider %s: source reported unparseable version %q: %w", provider.ForDisplay(), raw, err)
		}
		candidates = append(candidates, solver.Candidate{
			Version:    v,
			Yanked:     index.IsYanked(raw),
			YankReason: index.YankReason(raw),
		})
	}
	return candidates, nil
}

// checkDrift compares each locked provider's recorded constraint set with
// the constraints the configuration declares now.
func (r *Resolver) checkDrift(c *requirementCollection) ([]string, error) {
	if r.lock == nil || r.config.driftMode == DriftIgnore {
		return nil, nil
	}

	var drifted []ConstraintDrift
	for _, provider := range c.sortedProviders() {
		entry := r.lock.Entry(provider)
		if entry == nil || entry.Constraints == "" {
			continue
		}
		current := solver.RequirementsString(c.requirements[provider])
		if entry.Constraints != current {
			drifted = append(drifted, ConstraintDrift{
				Provider: provider,
				Locked:   entry.Constraints,
				Current:  current,
			})
		}
	}

	if len(drifted) == 0 {
		return nil, nil
	}
	if r.config.driftMode == DriftError {
		return nil, &ConstraintDriftError{Drifted: drifted}
	}

	warnings := make([]string, len(drifted))
	for i, d := range drifted {
		warnings[i] = d.String()
	}
	return warnings, nil
}

func (r *Resolver) buildResult(c *requirementCollection, resolutions []*providerResolution, warnings []string) *Result {
	log := r.config.log()
	result := &Result{Warnings: warnings}

	for _, res := range resolutions {
		selection := res.selection
		constraints := solver.RequirementsString(c.requirements[res.provider])

		selected := SelectedProvider{
			Provider:          res.provider,
			Version:           selection.Version.String(),
			Constraints:       constraints,
			RequiredBy:        c.requiredByPaths(res.provider),
			PinnedByLock:      selection.PinnedByLock,
			Yanked:            selection.Yanked,
			YankReason:        selection.YankReason,
			Deprecated:        res.deprecated,
			DeprecationReason: res.deprecationReason,
		}
		if res.pkg != nil {
			selected.Hashes = sortedStrings(res.pkg.Checksums)
		}
		result.Providers = append(result.Providers, selected)

		for _, warning := range selection.Warnings {
			log.Warn(warning, "provider", res.provider.String())
			result.Warnings = append(result.Warnings, warning)
		}
		if res.deprecated && r.config.warnDeprecated {
			warning := fmt.Sprintf("provider %s is deprecated: %s", res.provider.ForDisplay(), res.deprecationReason)
			log.Warn("provider deprecated", "provider", res.provider.String(), "reason", res.deprecationReason)
			result.Warnings = append(result.Warnings, warning)
		}

		strategy := graph.StrategyMaximum
		factor := "newest version satisfying all constraints"
		if selection.PinnedByLock {
			strategy = graph.StrategyLock
			factor = "lock file pins this version"
		}
		c.builder.SetSelection(res.provider, &graph.SelectionInfo{
			SelectedVersion: selection.Version.String(),
			Strategy:        strategy,
			DecidingFactor:  factor,
			PinnedByLock:    selection.PinnedByLock,
			Yanked:          selection.Yanked,
			Candidates:      selection.Candidates,
		})
	}

	for provider := range c.builtin {
		result.Providers = append(result.Providers, SelectedProvider{
			Provider:   provider,
			RequiredBy: c.requiredByPaths(provider),
			BuiltIn:    true,
		})
	}

	sort.Slice(result.Providers, func(i, j int) bool {
		return result.Providers[i].Provider.Less(result.Providers[j].Provider)
	})

	result.Summary = summarize(result.Providers)
	result.Graph = c.builder.Build()
	return result
}

func summarize(providers []SelectedProvider) Summary {
	summary := Summary{TotalProviders: len(providers)}
	for _, p := range providers {
		requiredByRoot := false
		for _, path := range p.RequiredBy {
			if path == RootModuleName {
				requiredByRoot = true
				break
			}
		}
		if requiredByRoot {
			summary.RootProviders++
		} else {
			summary.ChildProviders++
		}
		if p.BuiltIn {
			summary.BuiltInProviders++
		}
		if p.PinnedByLock {
			summary.LockedProviders++
		}
		if p.Yanked {
			summary.YankedProviders++
		}
	}
	return summary
}

// buildSource assembles the source stack from the options: mirror directory
// first, then explicit sources, then registry URLs, falling back to the
// default registry when nothing was configured. Multiple sources compose
// into a chain; a metadata cache wraps the lot.
func buildSource(cfg *resolverConfig) (Source, error) {
	var sources []Source

	if cfg.mirrorDir != "" {
		mirror, err := NewMirrorSource(cfg.mirrorDir)
		if err != nil {
			return nil, err
		}
		sources = append(sources, mirror)
	}

	sources = append(sources, cfg.extraSources...)

	for _, url := range cfg.registries {
		src, err := sourceForURL(url, cfg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		if cfg.network == NetworkOffline {
			return nil, fmt.Errorf("offline mode needs a mirror directory, a file:// registry, or an explicit source")
		}
		src, err := sourceForURL(DefaultRegistryURL, cfg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	var source Source
	if len(sources) == 1 {
		source = sources[0]
	} else {
		source = newChainSource(sources...)
	}

	if cfg.cache != nil {
		source = &cachingSource{next: source, cache: cfg.cache, log: cfg.log()}
	}
	return source, nil
}

func sourceForURL(url string, cfg *resolverConfig) (Source, error) {
	if isFileURL(url) {
		path, err := parseFileURL(url)
		if err != nil {
			return nil, err
		}
		return NewMirrorSource(path)
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return nil, fmt.Errorf("unsupported registry URL %q: want https://, http://, or file://", url)
	}

	client := registry.NewClient(url, clientOptions(cfg)...)
	return newRegistrySource(client), nil
}

// clientOptions translates resolver options into registry client options.
// The HTTP client is installed before the timeout so the timeout lands on
// the client actually used; a caller-supplied client is copied first so its
// settings are never mutated.
func clientOptions(cfg *resolverConfig) []registry.ClientOption {
	var opts []registry.ClientOption

	httpClient := cfg.httpClient
	if cfg.network == NetworkAllowlist {
		httpClient = allowlistHTTPClient(httpClient, cfg.allowedDomains)
	} else if httpClient != nil {
		clone := *httpClient
		httpClient = &clone
	}
	if httpClient != nil {
		opts = append(opts, registry.WithHTTPClient(httpClient))
	}

	if cfg.timeout > 0 {
		opts = append(opts, registry.WithTimeout(cfg.timeout))
	}
	return opts
}

// loadLock reads the configured lock file. A missing file is not an error:
// first runs have nothing to reconcile against.
func loadLock(cfg *resolverConfig) (*lockfile.Lock, error) {
	if cfg.lock != nil {
		return cfg.lock, nil
	}
	if cfg.lockPath == "" {
		return nil, nil
	}

	lock, err := lockfile.ReadFile(cfg.lockPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return lock, nil
}
