package auth

import (
	"net/http"
	"net/url"
)

// RequestView is the authenticator's view of an in-flight request: just
// enough to recompute the canonical request, with no dependency on
// net/http so the authenticator can be exercised against hand-built
// fixtures in tests.
type RequestView interface {
	// Method returns the HTTP method, e.g. "GET" or "POST".
	Method() string
	// Path returns the request's URL path, unescaped.
	Path() string
	// Host returns the request's Host header value.
	Host() string
	// HeaderValues returns every value set for the given header name
	// (case-insensitive), in the order they appeared on the wire.
	HeaderValues(name string) []string
	// Query returns the request's parsed query-string values.
	Query() url.Values
}

// httpRequestView adapts *http.Request to RequestView.
type httpRequestView struct {
	r *http.Request
}

// NewHTTPRequestView wraps an *http.Request for use with Authenticate. The
// caller is responsible for having already drained and replaced r.Body if
// it intends to read it again downstream; Authenticate itself only needs
// the body's bytes, passed separately.
func NewHTTPRequestView(r *http.Request) RequestView {
	return httpRequestView{r: r}
}

func (v httpRequestView) Method() string { return v.r.Method }

func (v httpRequestView) Path() string { return v.r.URL.Path }

func (v httpRequestView) Host() string {
	if v.r.Host != "" {
		return v.r.Host
	}
	return v.r.Header.Get("Host")
}

func (v httpRequestView) HeaderValues(name string) []string {
	if http.CanonicalHeaderKey(name) == "Host" {
		return []string{v.Host()}
	}
	return v.r.Header.Values(name)
}

func (v httpRequestView) Query() url.Values { return v.r.URL.Query() }
