// Package module wires the submitter worker using modkit
package module

import (
	"context"
	"net/http"

	modkit "olivebranch/internal/modkit"
	"olivebranch/internal/modkit/httpkit"

	oaiprov "olivebranch/internal/adapters/provider/openai"
	sdom "olivebranch/internal/services/submitter/domain"
	shttp "olivebranch/internal/services/submitter/http"
	srepo "olivebranch/internal/services/submitter/repo"
	ssvc "olivebranch/internal/services/submitter/service"
)

// Module implements the submitter worker module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	ports    any
	register func(httpkit.Router)

	svc sdom.SubmitterPort
}

// Ports allows injecting the provider surface (tests)
type Ports struct {
	Provider sdom.ProviderPort
}

// Exports are the ports other modules may consume
type Exports struct {
	Submitter sdom.SubmitterPort
}

// providerAdapter narrows the openai client to the submitter port
type providerAdapter struct{ c *oaiprov.Client }

func (a providerAdapter) UploadBatchInput(ctx context.Context, name string, jsonl []byte) (string, error) {
	return a.c.UploadBatchInput(ctx, name, jsonl)
}

func (a providerAdapter) CreateBatch(ctx context.Context, inputFileID string) (string, error) {
	info, err := a.c.CreateBatch(ctx, inputFileID)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// New constructs the submitter module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("submitter"),
		modkit.WithPrefix("/submitter"),
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

	svc := ssvc.New(deps.PG, srepo.NewPG(), provider, ssvc.Config{
		ClaimLimit:       cfg.ClaimLimit,
		PerLineMaxBytes:  cfg.PerLineMaxBytes,
		BatchMaxBytes:    cfg.BatchMaxBytes,
		DeferDelay:       cfg.DeferDelay,
		RequeueDelay:     cfg.RequeueDelay,
		UploadRetryDelay: cfg.UploadRetryDelay,
		UnsupportedDelay: cfg.UnsupportedDelay,
	})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
	}
	m.ports = Exports{Submitter: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		shttp.Register(r, m.svc)
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
