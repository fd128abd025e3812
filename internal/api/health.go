package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type healthResponse struct {
	Status string `json:"status"`
	Vault  string `json:"vault,omitempty"`
}

// MountHealth registers the unauthenticated liveness and readiness checks.
// ready is consulted on every readiness request.
func MountHealth(r chi.Router, ready func() error) {
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil {
			if err := ready(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Vault: err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
}
