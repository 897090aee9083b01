// Package handler provides the HTTP surface of the Hermes user service.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig contains the dependencies of the HTTP router.
type RouterConfig struct {
	UserHandler   *UserHandler
	HealthHandler *HealthHandler
	Metrics       *Metrics
	Logger        zerolog.Logger
}

// NewRouter assembles the chi router with the standard middleware chain and
// all routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/health", cfg.HealthHandler.Handle)
	cfg.UserHandler.RegisterRoutes(r)

	return r
}
