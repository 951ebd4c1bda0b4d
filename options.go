package provreq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/provreq/go-provreq/lockfile"
)

// Option configures resolution behavior.
type Option func(*resolverConfig) error

// resolverConfig holds all resolution configuration.
type resolverConfig struct {
	registries     []string
	mirrorDir      string
	extraSources   []Source
	timeout        time.Duration
	httpClient     *http.Client
	cache          MetadataCache
	network        NetworkMode
	allowedDomains []string

	lock     *lockfile.Lock
	lockPath string

	yankedBehavior      YankedBehavior
	allowYankedVersions []string
	warnDeprecated      bool
	driftMode           ConstraintDriftMode
	coreVersion         string

	onProgress func(ProgressEvent)

	// logger is the structured logger for debug/warn output.
	// If nil, logging is disabled (silent mode).
	//
	// Design decision: we use *slog.Logger (stdlib) rather than a custom
	// interface because slog separates frontend from backend by design.
	// Users can plug in any backend (zap, zerolog, etc.) via slog handlers.
	logger *slog.Logger
}

// DefaultOptions returns options with safe defaults: yanked versions warn
// (lock pins and allowlist entries stay selectable, fresh selection skips
// them), deprecated providers warn, and registry requests time out after
// 15 seconds.
func DefaultOptions() []Option {
	return []Option{
		WithYankedBehavior(YankedBehaviorWarn),
		WithDeprecatedWarnings(true),
		WithTimeout(15 * time.Second),
	}
}

// WithRegistries sets the registry URLs to search, in priority order. The
// first source that serves a provider keeps serving it. Supported schemes:
//
//   - https:// and http:// for remote registries
//   - file:// for a local mirror directory laid out like a registry
//
// Without registries, mirror directory, or extra sources, the default
// registry is used.
func WithRegistries(urls ...string) Option {
	return func(c *resolverConfig) error {
		c.registries = append(c.registries, urls...)
		return nil
	}
}

// WithMirrorDir sets a local mirror directory that is consulted before any
// registry. The directory is laid out like a registry tree:
//
//	{dir}/providers/{hostname}/{namespace}/{type}/versions.json
//	{dir}/providers/{hostname}/{namespace}/{type}/{version}/package.json
func WithMirrorDir(dir string) Option {
	return func(c *resolverConfig) error {
		c.mirrorDir = dir
		return nil
	}
}

// WithSource adds a custom version feed, consulted after the mirror
// directory but before any registries. Useful for embedding fixed provider
// sets via StaticSource.
func WithSource(src Source) Option {
	return func(c *resolverConfig) error {
		if src == nil {
			return errors.New("source must not be nil")
		}
		c.extraSources = append(c.extraSources, src)
		return nil
	}
}

// WithTimeout sets the HTTP request timeout for registry requests.
func WithTimeout(d time.Duration) Option {
	return func(c *resolverConfig) error {
		c.timeout = d
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client for registry requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *resolverConfig) error {
		c.httpClient = client
		return nil
	}
}

// WithCache sets an external cache for registry documents, letting version
// indexes and package descriptors survive across resolution runs. Cache
// failures are treated as misses.
func WithCache(cache MetadataCache) Option {
	return func(c *resolverConfig) error {
		c.cache = cache
		return nil
	}
}

// WithNetworkMode sets the network access mode. NetworkOffline permits only
// mirror, file:// and static sources; NetworkAllowlist requires
// WithAllowedDomains.
func WithNetworkMode(mode NetworkMode) Option {
	return func(c *resolverConfig) error {
		c.network = mode
		return nil
	}
}

// WithAllowedDomains sets the hosts HTTP requests may reach in
// NetworkAllowlist mode.
func WithAllowedDomains(domains ...string) Option {
	return func(c *resolverConfig) error {
		c.allowedDomains = append(c.allowedDomains, domains...)
		return nil
	}
}

// WithLock supplies an existing lock for reconciliation. Locked providers
// keep their pinned versions as long as the pins still satisfy the current
// constraints and the package checksums still match.
func WithLock(lock *lockfile.Lock) Option {
	return func(c *resolverConfig) error {
		c.lock = lock
		return nil
	}
}

// WithLockFile reads the lock for reconciliation from a file. A missing
// file means no lock, so first runs work without special handling.
func WithLockFile(path string) Option {
	return func(c *resolverConfig) error {
		c.lockPath = path
		return nil
	}
}

// WithYankedBehavior sets how yanked versions are handled.
func WithYankedBehavior(b YankedBehavior) Option {
	return func(c *resolverConfig) error {
		c.yankedBehavior = b
		return nil
	}
}

// WithAllowedYankedVersions allowlists yanked versions for selection under
// YankedBehaviorWarn. Entries are "<address>@<version>", or the keyword
// "all" to allow every yanked version.
func WithAllowedYankedVersions(versions ...string) Option {
	return func(c *resolverConfig) error {
		c.allowYankedVersions = append(c.allowYankedVersions, versions...)
		return nil
	}
}

// WithDeprecatedWarnings enables warnings for deprecated providers.
func WithDeprecatedWarnings(warn bool) Option {
	return func(c *resolverConfig) error {
		c.warnDeprecated = warn
		return nil
	}
}

// WithConstraintDrift sets how disagreement between locked constraint
// records and the current configuration is handled.
func WithConstraintDrift(mode ConstraintDriftMode) Option {
	return func(c *resolverConfig) error {
		c.driftMode = mode
		return nil
	}
}

// WithCoreVersion supplies the running core tool version, enabling
// required_core constraint checking before resolution.
func WithCoreVersion(version string) Option {
	return func(c *resolverConfig) error {
		c.coreVersion = version
		return nil
	}
}

// WithProgress sets a callback for resolution progress events.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(c *resolverConfig) error {
		c.onProgress = fn
		return nil
	}
}

// WithLogger sets a structured logger for resolution diagnostics.
// If not set, logging is disabled (silent mode).
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "provreq")
//	result, err := provreq.Resolve(ctx, root, provreq.WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(c *resolverConfig) error {
		c.logger = l
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *resolverConfig) validate() error {
	if c.timeout < 0 {
		return errors.New("timeout must be positive")
	}

	if c.lock != nil && c.lockPath != "" {
		return errors.New("WithLock and WithLockFile are mutually exclusive")
	}

	if c.coreVersion != "" {
		if _, err := goversion.NewVersion(c.coreVersion); err != nil {
			return fmt.Errorf("invalid core version %q: %w", c.coreVersion, err)
		}
	}

	switch c.network {
	case NetworkOffline:
		for _, raw := range c.registries {
			if !strings.HasPrefix(raw, "file://") {
				return fmt.Errorf("offline mode cannot use registry URL %q; only file:// registries, a mirror directory, or static sources work offline", raw)
			}
		}
	case NetworkAllowlist:
		if len(c.allowedDomains) == 0 {
			return errors.New("allowlist mode requires at least one allowed domain")
		}
	default:
		if len(c.allowedDomains) > 0 {
			return errors.New("allowed domains are only used with NetworkAllowlist")
		}
	}

	return nil
}

// log returns the configured logger, or a no-op logger if none was set.
// This lets internal code log without nil checks.
//
// Design: libraries should be silent by default. Users opt in via
// WithLogger; nothing is written to stdout/stderr without consent.
func (c *resolverConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(discardHandler{})
}

// discardHandler is a slog.Handler that discards all log records. It backs
// the silent default so callers never need nil checks.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// newResolverConfig creates a resolver configuration by applying the given
// options and validating the result.
func newResolverConfig(opts ...Option) (*resolverConfig, error) {
	c := &resolverConfig{}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}
