package httpkit

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"olivebranch/internal/platform/net/middleware"

	phttp "olivebranch/internal/platform/net/http"
)

// Protected groups routes under the internal-token gate and records the
// secured endpoints for diagnostics
func Protected(r Router, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(Auth(p))
		fn(&securedRouter{Router: gr})
	})
}

var (
	securedMu    sync.Mutex
	securedPaths = map[string]struct{}{}
)

func markSecured(path, verb string) {
	securedMu.Lock()
	securedPaths[verb+" "+path] = struct{}{}
	securedMu.Unlock()
}

// SecuredPaths lists every "VERB /path" registered through Protected, sorted
func SecuredPaths() []string {
	securedMu.Lock()
	defer securedMu.Unlock()
	out := make([]string, 0, len(securedPaths))
	for p := range securedPaths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type securedRouter struct {
	Router
	base string
}

func joinPath(a, b string) string {
	if a == "" {
		if strings.HasPrefix(b, "/") {
			return b
		}
		return "/" + b
	}
	if strings.HasSuffix(a, "/") {
		if strings.HasPrefix(b, "/") {
			return a + b[1:]
		}
		return a + b
	}
	if strings.HasPrefix(b, "/") {
		return a + b
	}
	return a + "/" + b
}

func (s *securedRouter) Route(prefix string, fn func(Router)) {
	child := &securedRouter{Router: s.Router, base: joinPath(s.base, prefix)}
	s.Router.Route(prefix, func(_ Router) { fn(child) })
}

func (s *securedRouter) Handle(path string, h http.Handler) { s.Router.Handle(path, h) }

func (s *securedRouter) Options(path string, h phttp.Handler) {
	markSecured(joinPath(s.base, path), "OPTIONS")
	s.Router.Options(path, h)
}

func (s *securedRouter) Head(path string, h phttp.Handler) {
	markSecured(joinPath(s.base, path), "HEAD")
	s.Router.Head(path, h)
}

func (s *securedRouter) Delete(path string, h phttp.Handler) {
	markSecured(joinPath(s.base, path), "DELETE")
	s.Router.Delete(path, h)
}

func (s *securedRouter) Get(path string, h phttp.Handler) {
	markSecured(joinPath(s.base, path), "GET")
	s.Router.Get(path, h)
}

func (s *securedRouter) Post(path string, h phttp.Handler) {
	markSecured(joinPath(s.base, path), "POST")
	s.Router.Post(path, h)
}

func (s *securedRouter) Put(path string, h phttp.Handler) {
	markSecured(joinPath(s.base, path), "PUT")
	s.Router.Put(path, h)
}

func (s *securedRouter) Patch(path string, h phttp.Handler) {
	markSecured(joinPath(s.base, path), "PATCH")
	s.Router.Patch(path, h)
}
