// Package http provides http transport for the orchestrator
package http

import (
	stdhttp "net/http"

	"olivebranch/internal/modkit/httpkit"
	"olivebranch/internal/platform/net/http/bind"
	"olivebranch/internal/services/orchestrator/domain"
)

// maxBodyBytes caps the trigger payload at ingress. Bytes, not characters
const maxBodyBytes = 64 << 10

// Register mounts the orchestrator routes
func Register(r httpkit.Router, s domain.OrchestratorPort) {
	h := &handlers{svc: s}
	r.Post("/rewrite", httpkit.Handle(h.rewrite))
}

type handlers struct{ svc domain.OrchestratorPort }

func (h *handlers) rewrite(r *stdhttp.Request) httpkit.Response {
	in, err := bind.ParseJSON[domain.TriggerInput](r, bind.JSONOptions{MaxBytes: maxBodyBytes, DisallowUnknown: true})
	if err != nil {
		return httpkit.Error(err)
	}
	out, err := h.svc.Rewrite(r.Context(), in)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OK(out)
}
