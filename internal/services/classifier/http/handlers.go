// Package http provides http transport for the classifier
package http

import (
	stdhttp "net/http"

	"olivebranch/internal/modkit/httpkit"
	"olivebranch/internal/platform/net/http/bind"
	"olivebranch/internal/services/classifier/domain"
)

// Register mounts the classifier routes
func Register(r httpkit.Router, s domain.ClassifierPort) {
	h := &handlers{svc: s}
	r.Post("/classify", httpkit.Handle(h.classify))
}

type handlers struct{ svc domain.ClassifierPort }

func (h *handlers) classify(r *stdhttp.Request) httpkit.Response {
	in, err := bind.ParseJSON[domain.Input](r)
	if err != nil {
		return httpkit.Error(err)
	}
	out, err := h.svc.Classify(r.Context(), in)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OK(out)
}
