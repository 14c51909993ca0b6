// Package transport exposes the copilot over HTTP: a websocket endpoint
// that streams transcripts/audio in and alerts out, plus health and
// session-stats routes.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-compliance-copilot-service/internal/supervisor"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(sup *supervisor.Supervisor) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1/copilot", func(r chi.Router) {
		r.Get("/ws", serveSession(sup))
		r.Get("/ws/{sessionID}", serveSession(sup))
		r.Get("/sessions/{sessionID}/stats", serveStats(sup))
	})

	return r
}

// serveStats returns the privacy-safe counters for a live session. No
// transcript text ever leaves through this endpoint.
func serveStats(sup *supervisor.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		stats, ok := sup.Stats(sessionID)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}
}
