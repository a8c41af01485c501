package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clinicore/clinicore/internal/api/handler"
	"github.com/clinicore/clinicore/internal/api/middleware"
	"github.com/clinicore/clinicore/internal/identity"
	"github.com/clinicore/clinicore/internal/metrics"
	"github.com/clinicore/clinicore/internal/provision"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Verifier    identity.Verifier
	Provision   *provision.Service
	Metrics     *metrics.Metrics
	StorePinger handler.Pinger
	Version     string
}

// NewRouter creates and configures a Chi router with all middleware and
// routes. The user-management routes sit behind token authentication;
// authorization happens inside the provisioning service so denials share one
// code path with the policy.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	if deps.Metrics != nil {
		r.Use(middleware.InFlight(deps.Metrics))
	}

	healthHandler := handler.NewHealthHandler(deps.StorePinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if deps.Metrics != nil {
		r.Method("GET", "/metrics", deps.Metrics.Handler())
	}

	if deps.Provision != nil {
		userHandler := handler.NewUserHandler(deps.Provision, deps.Metrics)
		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.Auth(deps.Verifier))
			r.Post("/", userHandler.Create)
			r.Get("/", userHandler.List)
			r.Delete("/{uid}", userHandler.Delete)
		})
	}

	return r
}
