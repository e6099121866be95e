package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if g.tracing != nil {
			r.Use(g.tracing)
		}
		r.Use(g.metrics.Middleware)

		r.Get("/health", g.handleHealth())
		r.Get("/status", g.handleStatus())
		r.Handle("/metrics", g.metrics.Handler())

		r.Post("/chat", g.handleChat())

		r.Route("/api", func(r chi.Router) {
			r.Get("/conversations", g.handleListConversations())
			r.Get("/conversations/{id}", g.handleGetConversation())
			r.Post("/conversations/{id}/clear", g.handleClearConversation())
			r.Delete("/conversations/{id}", g.handleDeleteConversation())
			r.Get("/telemetry", g.handleTelemetry())
			r.Get("/telemetry/{id}", g.handleConversationTelemetry())
			r.Get("/memory/search", g.handleMemorySearch())
		})
	})

	// Mounted outside the middleware group: the WebSocket upgrade needs
	// the raw ResponseWriter for hijacking.
	r.Get("/ws/telemetry", g.handleTelemetryStream)

	return r
}
