// Package server exposes the SCM tools of a registry over HTTP.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greg-hellings/scmindex/pkg/scm"
)

// Config holds API router configuration
type Config struct {
	Registry *scm.Registry
	Logger   *slog.Logger
}

// NewRouter creates a new HTTP router with all API routes
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(Metrics)

	handlers := NewHandlers(cfg.Registry, cfg.Logger)

	r.Get("/health", handlers.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/{tool}", func(r chi.Router) {
		r.Get("/key", handlers.Key)
		r.Get("/{node}/{criteria}", handlers.FindAllByName)
		r.Get("/nodes/{node}/status", handlers.NodeStatus)
		r.Post("/subscriptions/{subscription}/link", handlers.Link)
		r.Get("/subscriptions/{subscription}/status", handlers.SubscriptionStatus)
	})

	return r
}
