package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// backendCheckTimeout bounds each backend check made by /health.
const backendCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Route("/server", func(r chi.Router) {
			r.Get("/", s.handleServerStatus)
			r.Post("/check", s.handleServerCheck)
			r.Get("/attempts", s.handleListAttempts)
			r.Get("/transitions", s.handleListTransitions)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports that the wrapper itself is alive, along with the
// state of each configured backend. A failing backend marks the response
// "degraded" but keeps the 200, since the wrapper still runs without it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	results := make(map[string]string)
	for name, b := range s.backends() {
		ctx, cancel := context.WithTimeout(r.Context(), backendCheckTimeout)
		err := b.HealthCheck(ctx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			status = "degraded"
			continue
		}
		results[name] = "ok"
	}

	resp := map[string]any{
		"status":  status,
		"version": s.version,
	}
	if len(results) > 0 {
		resp["backends"] = results
	}
	writeJSON(w, http.StatusOK, resp)
}
