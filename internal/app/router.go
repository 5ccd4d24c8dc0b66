package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agentnet/agentnet/internal/auth"
	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/ledger"
	"github.com/agentnet/agentnet/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthService     *auth.Service
	AuthHandler     *auth.Handler
	AccountsHandler *hierarchy.Handler
	LedgerHandler   *ledger.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with agentnet defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Everything below requires a resolved actor.
	r.Group(func(r chi.Router) {
		r.Use(params.AuthService.RequireActor)
		r.Route("/accounts", params.AccountsHandler.MountRoutes)
		r.Route("/balance", params.LedgerHandler.MountRoutes)
		r.Route("/dashboard", params.AccountsHandler.MountDashboardRoutes)
	})

	return r
}
