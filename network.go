package provreq

import (
	"fmt"
	"net/http"
	"strings"
)

// allowlistTransport refuses requests to hosts outside the allowlist before
// they reach the wire. Enforcing this in the transport covers every request
// the resolver makes, including redirects.
type allowlistTransport struct {
	next    http.RoundTripper
	allowed []string
}

var _ http.RoundTripper = (*allowlistTransport)(nil)

func (t *allowlistTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Hostname()
	if !hostAllowed(host, t.allowed) {
		return nil, fmt.Errorf("%w: %q is not in the allowed domains", ErrHostNotAllowed, host)
	}

	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

// hostAllowed reports whether host matches an allowlist entry, either
// exactly or as a subdomain ("example.com" admits "registry.example.com").
func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

// allowlistHTTPClient returns a copy of base with the allowlist enforced in
// its transport. The base client's other settings (timeout, cookie jar,
// redirect policy) carry over unchanged.
func allowlistHTTPClient(base *http.Client, allowed []string) *http.Client {
	var client http.Client
	if base != nil {
		client = *base
	}
	client.Transport = &allowlistTransport{next: client.Transport, allowed: allowed}
	return &client
}
