package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	httphandlers "ansel/internal/interfaces/http"
	"ansel/internal/shared/config"
	"ansel/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Telemetry(cfg.Telemetry.ServiceName))
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(corsHosts(cfg)))

	if cfg.TLS.Enabled {
		r.Use(middleware.HSTS)
		logger.Info("HSTS enabled")
	}

	// Health check
	r.Get("/health", httphandlers.HandleHealth(deps.DB))

	// Protected routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.Auth(deps.JWT))

		r.Route("/plaid", func(r chi.Router) {
			r.Post("/link-token", deps.PlaidHandler.HandleCreateLinkToken)
			r.Post("/exchange-token", deps.PlaidHandler.HandleExchangeToken)
			r.Post("/balances/refresh", deps.PlaidHandler.HandleRefreshBalances)
			r.Post("/accounts/{id}/balance/refresh", deps.PlaidHandler.HandleRefreshAccountBalance)
			r.Post("/accounts/{id}/transactions/sync", deps.PlaidHandler.HandleSyncTransactions)
		})

		r.Get("/items", deps.AccountHandler.HandleListItems)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", deps.AccountHandler.HandleListAccounts)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", deps.AccountHandler.HandleGetAccount)
				r.Patch("/", deps.AccountHandler.HandleSetNickname)
				r.Get("/balances", deps.AccountHandler.HandleBalanceHistory)
				r.Get("/transactions", deps.AccountHandler.HandleListTransactions)
				r.Get("/categories", deps.AccountHandler.HandleCategories)
				r.Get("/download-logs", deps.AccountHandler.HandleDownloadLogs)
			})
		})

		r.Post("/notifications/devices", deps.NotificationHandler.HandleRegisterDevice)
	})

	return r
}

// corsHosts prefers the explicit origin list and falls back to the hosts the
// server answers on.
func corsHosts(cfg *config.Config) []string {
	if len(cfg.Server.AllowedOrigins) > 0 {
		return cfg.Server.AllowedOrigins
	}
	return cfg.Server.AllowedHosts
}
