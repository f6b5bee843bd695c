package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tabbylabs/mintpipe/internal/api"
	apiMiddleware "github.com/tabbylabs/mintpipe/internal/api/middleware"
	"github.com/tabbylabs/mintpipe/internal/api/shared"
	"github.com/tabbylabs/mintpipe/internal/platform/postgres"
)

// setupRouter creates and configures the application router with all routes
// and middleware. The surface is read-only GETs; the storefront calls it
// from the browser, so CORS allows any origin.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Create API handlers using the application's services
	processHandler := api.NewProcessHandler(
		app.service,
		app.finalizer,
		app.config.Chain.PlaceholderURI,
		app.logger,
	)
	statusHandler := api.NewStatusHandler(app.taskStore, app.sweeper, app.logger)
	cronHandler := api.NewCronHandler(app.tick, app.logger)
	metricsHandler := api.NewMetricsHandler(app.metricsStore, app.taskStore, app.logger)

	// Non-preflight OPTIONS gets an empty success; preflight is answered by
	// the CORS middleware before it reaches the router.
	r.Options("/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Register routes
	r.Get("/process/{tokenId}", processHandler.Process)
	r.Get("/status/{taskId}", statusHandler.Status)
	r.Get("/tasks/{tokenId}", statusHandler.TasksByToken)
	r.Get("/cron", cronHandler.Cron)
	r.Get("/metrics", metricsHandler.Metrics)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := postgres.HealthCheck(r.Context(), app.db); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable,
				"Storage is temporarily unavailable", err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
