// Package module wires the cron runner worker using modkit
package module

import (
	"context"
	"net/http"

	modkit "olivebranch/internal/modkit"
	"olivebranch/internal/modkit/httpkit"

	csvc "olivebranch/internal/services/cronrunner/service"
	tdom "olivebranch/internal/services/triggers/domain"
	trepo "olivebranch/internal/services/triggers/repo"
)

// RunnerPort is the tick surface exported to callers
type RunnerPort interface {
	Tick(ctx context.Context) (csvc.Report, error)
}

// Module implements the cron runner worker module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	ports    any
	register func(httpkit.Router)

	svc *csvc.Svc
}

// Ports allows injecting the trigger source and HTTP client (tests)
type Ports struct {
	Triggers tdom.SourcePort
	Client   *http.Client
}

// Exports are the ports other modules may consume
type Exports struct {
	Runner RunnerPort
}

// New constructs the cron runner module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("cronrunner"),
		modkit.WithPrefix("/cron"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	triggers := injected.Triggers
	if triggers == nil {
		triggers = trepo.NewPG().Bind(deps.PG)
	}

	svc := csvc.New(triggers, injected.Client, csvc.Config{
		OrchestratorURL: cfg.OrchestratorURL,
		Token:           cfg.Token,
		PopLimit:        cfg.PopLimit,
		CallTimeout:     cfg.CallTimeout,
		Attempts:        cfg.Attempts,
		RetryDelay:      cfg.RetryDelay,
		RequeueDelay:    cfg.RequeueDelay,
	})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
	}
	m.ports = Exports{Runner: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		registerRoutes(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
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

func registerRoutes(r httpkit.Router, svc RunnerPort) {
	httpkit.Post(r, "/run", func(req *http.Request) (any, error) {
		return svc.Tick(req.Context())
	})
}
