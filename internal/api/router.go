package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MCPPath is where the streamable HTTP MCP transport is mounted.
const MCPPath = "/mcp"

// NewRouter creates a chi router serving the MCP transport.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(mcpHandler http.Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Streamable HTTP uses POST for calls, GET for the server stream and
	// DELETE to end a session.
	r.Handle(MCPPath, mcpHandler)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
