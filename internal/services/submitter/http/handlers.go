// Package http provides http transport for the submitter
package http

import (
	stdhttp "net/http"

	"olivebranch/internal/modkit/httpkit"
	"olivebranch/internal/services/submitter/domain"
)

// Register mounts the submitter routes
func Register(r httpkit.Router, s domain.SubmitterPort) {
	h := &handlers{svc: s}
	httpkit.Post(r, "/run", h.run)
}

type handlers struct{ svc domain.SubmitterPort }

func (h *handlers) run(r *stdhttp.Request) (any, error) {
	return h.svc.Run(r.Context())
}
