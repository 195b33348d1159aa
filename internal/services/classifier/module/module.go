// Package module wires the classifier into the API using modkit
package module

import (
	"net/http"

	modkit "olivebranch/internal/modkit"
	"olivebranch/internal/modkit/httpkit"

	oaiprov "olivebranch/internal/adapters/provider/openai"
	chttp "olivebranch/internal/services/classifier/http"
	csvc "olivebranch/internal/services/classifier/service"
	cdom "olivebranch/internal/services/classifier/domain"
)

// Module implements the classifier API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	ports    any
	register func(httpkit.Router)

	svc cdom.ClassifierPort
}

// Ports allows injecting a CompleterPort (tests, shared provider client)
type Ports struct {
	Completer cdom.CompleterPort
}

// New constructs the classifier module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("classifier"),
		modkit.WithPrefix("/classifier"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	completer := injected.Completer
	if completer == nil {
		completer = oaiprov.New(oaiprov.Options{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		})
	}

	svc := csvc.New(completer)

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
	}
	m.ports = Exports{Classifier: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		chttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// Exports are the ports other modules may consume
type Exports struct {
	Classifier cdom.ClassifierPort
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}
