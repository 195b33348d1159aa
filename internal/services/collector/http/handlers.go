// Package http provides http transport for the collector
package http

import (
	stdhttp "net/http"

	"olivebranch/internal/modkit/httpkit"
	"olivebranch/internal/services/collector/domain"
)

// Register mounts the collector routes
func Register(r httpkit.Router, s domain.CollectorPort) {
	h := &handlers{svc: s}
	httpkit.Post(r, "/run", h.run)
}

type handlers struct{ svc domain.CollectorPort }

func (h *handlers) run(r *stdhttp.Request) (any, error) {
	return h.svc.Run(r.Context())
}
