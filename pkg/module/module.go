// Package module mounts self-contained HTTP handlers under single-level
// path prefixes. Each module owns its middleware chain, so the API's
// authentication and access logging never wrap the health probes.
package module

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/JaimeStill/receipts/pkg/middleware"
)

// Module strips its prefix from each request and hands the remainder to
// an inner router wrapped in the module's middleware chain.
type Module struct {
	prefix string
	router http.Handler
	chain  *middleware.Chain

	once    sync.Once
	handler http.Handler
}

// New returns a Module serving router under prefix, which must be a
// single-level path such as "/api".
func New(prefix string, router http.Handler) (*Module, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	return &Module{
		prefix: prefix,
		router: router,
		chain:  middleware.NewChain(),
	}, nil
}

// Use appends mw to the module's chain. The chain is composed on the
// first request, so Use must not be called after the module is serving.
func (m *Module) Use(mw middleware.Middleware) {
	m.chain.Use(mw)
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Handler returns the inner router wrapped with the module's middleware.
func (m *Module) Handler() http.Handler {
	m.once.Do(func() {
		m.handler = m.chain.Then(m.router)
	})
	return m.handler
}

// Serve dispatches req to the inner router with the prefix removed.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	m.Handler().ServeHTTP(w, withPath(req, strings.TrimPrefix(req.URL.Path, m.prefix)))
}

// withPath returns a shallow copy of req whose URL path is path, or "/"
// when path is empty. req itself is left untouched.
func withPath(req *http.Request, path string) *http.Request {
	if path == "" {
		path = "/"
	}
	r := new(http.Request)
	*r = *req
	r.URL = new(url.URL)
	*r.URL = *req.URL
	r.URL.Path = path
	r.URL.RawPath = ""
	return r
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case !strings.HasPrefix(prefix, "/"):
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case prefix == "/" || strings.Count(prefix, "/") != 1:
		return fmt.Errorf("module prefix must be a single-level sub-path: %s", prefix)
	}
	return nil
}
