package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON sends v as an uncached JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: encode response", slog.Int("status", status), slog.String("error", err.Error()))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError sends {"error": msg}. Bearer failures also get a
// WWW-Authenticate challenge.
func writeError(w http.ResponseWriter, status int, msg string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="vaultkeeper"`)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
