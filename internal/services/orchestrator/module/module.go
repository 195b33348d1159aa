// Package module wires the orchestrator into the API using modkit
package module

import (
	"net/http"

	modkit "olivebranch/internal/modkit"
	"olivebranch/internal/modkit/httpkit"

	cdom "olivebranch/internal/services/classifier/domain"
	odom "olivebranch/internal/services/orchestrator/domain"
	ohttp "olivebranch/internal/services/orchestrator/http"
	orepo "olivebranch/internal/services/orchestrator/repo"
	osvc "olivebranch/internal/services/orchestrator/service"
	trepo "olivebranch/internal/services/triggers/repo"
)

// Module implements the orchestrator API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	ports    any
	register func(httpkit.Router)

	svc odom.OrchestratorPort
}

// Ports declares the injected ports this module requires
type Ports struct {
	Classifier cdom.ClassifierPort

	// Triggers overrides the default Postgres trigger marks (tests)
	Triggers odom.TriggerMarker
}

// Exports are the ports other modules may consume
type Exports struct {
	Orchestrator odom.OrchestratorPort
}

// New constructs the orchestrator module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("orchestrator"),
		modkit.WithPrefix("/orchestrator"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Classifier == nil {
		panic("orchestrator module requires a Classifier port (from services/classifier)")
	}
	triggers := injected.Triggers
	if triggers == nil {
		triggers = trepo.NewPG().Bind(deps.PG)
	}

	svc := osvc.New(deps.PG, orepo.NewPG(), triggers, injected.Classifier, osvc.Config{
		ClassifierTimeout: cfg.ClassifierTimeout,
		TriggerRetryDelay: cfg.TriggerRetryDelay,
		TaskKind:          cfg.TaskKind,
	})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
	}
	m.ports = Exports{Orchestrator: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		ohttp.Register(r, m.svc)
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
