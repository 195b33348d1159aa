// Package module wires the collector worker using modkit
package module

import (
	"context"
	"net/http"

	modkit "olivebranch/internal/modkit"
	"olivebranch/internal/modkit/httpkit"

	oaiprov "olivebranch/internal/adapters/provider/openai"
	"olivebranch/internal/core/lexicon"
	cdom "olivebranch/internal/services/collector/domain"
	chttp "olivebranch/internal/services/collector/http"
	crepo "olivebranch/internal/services/collector/repo"
	csvc "olivebranch/internal/services/collector/service"
)

// Module implements the collector worker module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	ports    any
	register func(httpkit.Router)

	svc cdom.CollectorPort
}

// Ports allows injecting the provider surface (tests)
type Ports struct {
	Provider cdom.ProviderPort
}

// Exports are the ports other modules may consume
type Exports struct {
	Collector cdom.CollectorPort
}

// providerAdapter narrows the openai client to the collector port
type providerAdapter struct{ c *oaiprov.Client }

func (a providerAdapter) GetBatch(ctx context.Context, id string) (cdom.BatchState, error) {
	info, err := a.c.GetBatch(ctx, id)
	if err != nil {
		return cdom.BatchState{}, err
	}
	return cdom.BatchState{
		Status:       info.Status,
		OutputFileID: info.OutputFileID,
		ErrorFileID:  info.ErrorFileID,
		FinishedAt:   info.FinishedAt,
	}, nil
}

func (a providerAdapter) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	return a.c.DownloadFile(ctx, fileID)
}

// New constructs the collector module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("collector"),
		modkit.WithPrefix("/collector"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	provider := injected.Provider
	if provider == nil {
		provider = providerAdapter{c: oaiprov.New(oaiprov.Options{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.ProviderTimeout,
			MaxRetries: cfg.ProviderRetries,
		})}
	}

	svc := csvc.New(deps.PG, crepo.NewPG(), provider, lexicon.Default(), csvc.Config{
		MaxBatches:         cfg.MaxBatches,
		MissingOutputDelay: cfg.MissingOutputDelay,
		ProviderDelay:      cfg.ProviderDelay,
		ParseDelay:         cfg.ParseDelay,
	})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
	}
	m.ports = Exports{Collector: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		chttp.Register(r, m.svc)
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
