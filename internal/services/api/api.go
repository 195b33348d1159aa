// Package api provides the HTTP API for the application
package api

import (
	"olivebranch/internal/platform/config"
	"olivebranch/internal/platform/logger"
	phttp "olivebranch/internal/platform/net/http"
	"olivebranch/internal/platform/store"

	"olivebranch/internal/modkit"
	"olivebranch/internal/modkit/httpkit"
	"olivebranch/internal/modkit/module"

	metamod "olivebranch/internal/services/api/meta/module"
	clfmod "olivebranch/internal/services/classifier/module"
	orchmod "olivebranch/internal/services/orchestrator/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
	}

	// Construct the classifier module first and extract its port
	classifier := clfmod.New(deps)
	clf := module.MustPortsOf[clfmod.Exports](classifier).Classifier

	// The orchestrator consumes the classifier in-process
	orchestrator := orchmod.New(
		deps,
		modkit.WithPorts(orchmod.Ports{
			Classifier: clf,
		}),
	)

	meta := metamod.New(deps)

	// internal callers authenticate with the shared token
	secret := opt.Config.MayString("INTERNAL_TOKEN", "")
	port := httpkit.NewSharedSecretPort(secret, "internal")

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		// meta stays open so probes work without the secret
		module.Register(meta.Name(), meta.Ports())
		meta.MountRoutes(api)

		httpkit.Protected(api, port, func(pr httpkit.Router) {
			for _, m := range []module.Module{classifier, orchestrator} {
				// register each module's ports under its own name (for cross-module lookups)
				module.Register(m.Name(), m.Ports())

				// mount module routes under its Prefix()
				m.MountRoutes(pr)
			}
		})
	})
}
