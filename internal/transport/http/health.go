package http

import (
	"net/http"

	"lendgate/pkg/httputil"
)

// healthz reports process liveness plus the status of each wired backing
// store. Any failing dependency flips the overall status and the response
// code so load balancers stop routing here.
func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}
	if h.cfg.Health != nil {
		checks = h.cfg.Health(r.Context())
		for _, v := range checks {
			if v != "ok" {
				status = "degraded"
			}
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
