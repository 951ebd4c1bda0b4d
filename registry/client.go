package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/provreq/go-provreq/addrs"
)

// Client configuration defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
)

// HTTPError is a non-200 response from a registry.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether an error is a registry 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by an error, or 0 when the
// error is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// Client fetches and validates documents from a provider registry.
type Client struct {
	baseURL   string
	client    *http.Client
	validator *Validator

	// Cache for version indexes and package descriptors
	versionsCache sync.Map // map[string]*ProviderVersions keyed by provider address
	packageCache  sync.Map // map[string]*PackageInfo keyed by "address@version"

	// Options
	validateResponses bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithValidation enables or disables document validation of responses.
func WithValidation(enabled bool) ClientOption {
	return func(c *Client) {
		c.validateResponses = enabled
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets a custom HTTP request timeout.
// Zero or negative values fall back to the default timeout (15 seconds).
// This option is useful for slow networks or testing scenarios.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		} else {
			c.client.Timeout = DefaultRequestTimeout
		}
	}
}

// NewClient creates a client for the given registry URL.
//
// By default, responses are validated against the registry document rules.
// Use WithValidation(false) to disable validation for performance.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		DisableCompression:  false,
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
		validator:         NewValidator(),
		validateResponses: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the registry base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ProviderVersions fetches and parses a provider's versions.json index.
// Results are cached by provider address.
func (c *Client) ProviderVersions(ctx context.Context, provider addrs.Provider) (*ProviderVersions, error) {
	key := provider.String()
	if cached, ok := c.versionsCache.Load(key); ok {
		return cached.(*ProviderVersions), nil
	}

	url := c.versionsURL(provider)
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch versions for %s: %w", provider, err)
	}

	if c.validateResponses {
		if err := c.validator.ValidateProviderVersions(data); err != nil {
			return nil, fmt.Errorf("versions validation failed for %s: %w", provider, err)
		}
	}

	var versions ProviderVersions
	if err := json.Unmarshal(data, &versions); err != nil {
		return nil, fmt.Errorf("failed to parse versions for %s: %w", provider, err)
	}

	c.versionsCache.Store(key, &versions)
	return &versions, nil
}

// PackageInfo fetches and parses the package.json descriptor for one
// provider version. Results are cached by "address@version".
func (c *Client) PackageInfo(ctx context.Context, provider addrs.Provider, version string) (*PackageInfo, error) {
	cacheKey := provider.String() + "@" + version
	if cached, ok := c.packageCache.Load(cacheKey); ok {
		return cached.(*PackageInfo), nil
	}

	url := c.packageURL(provider, version)
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch package for %s@%s: %w", provider, version, err)
	}

	if c.validateResponses {
		if err := c.validator.ValidatePackageInfo(data); err != nil {
			return nil, fmt.Errorf("package validation failed for %s@%s: %w", provider, version, err)
		}
	}

	var pkg PackageInfo
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package for %s@%s: %w", provider, version, err)
	}

	c.packageCache.Store(cacheKey, &pkg)
	return &pkg, nil
}

// ClearCache removes all cached documents.
func (c *Client) ClearCache() {
	c.versionsCache = sync.Map{}
	c.packageCache = sync.Map{}
}

func (c *Client) versionsURL(provider addrs.Provider) string {
	return fmt.Sprintf("%s/providers/%s/versions.json", c.baseURL, provider.String())
}

func (c *Client) packageURL(provider addrs.Provider, version string) string {
	return fmt.Sprintf("%s/providers/%s/%s/package.json", c.baseURL, provider.String(), version)
}

// fetch performs an HTTP GET and returns the response body.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	return io.ReadAll(resp.Body)
}
