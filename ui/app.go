// Package ui exposes the forecasting service over HTTP.
package ui

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gocast/app"
	"gocast/internal"
	"gocast/internal/config"
)

// App represents the HTTP application
type App struct {
	router  *chi.Mux
	service *app.ForecastService
	config  *config.Config
	logger  *internal.Logger
}

// NewApp creates a new HTTP application around the forecast service
func NewApp(cfg *config.Config, service *app.ForecastService, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	a := &App{
		router:  chi.NewRouter(),
		service: service,
		config:  cfg,
		logger:  logger,
	}

	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/health", a.handleHealth)

	a.router.Route("/api", func(r chi.Router) {
		r.Post("/forecast", a.handleForecast)
		r.Post("/backtest", a.handleBacktest)
		r.Post("/search", a.handleSearch)

		r.Get("/datasets", a.handleListDatasets)
		r.Post("/datasets/{id}/observations", a.handleAppendObservations)
		r.Post("/datasets/{id}/forecast", a.handleDatasetForecast)
	})
}

// Router exposes the handler for serving and for tests
func (a *App) Router() http.Handler {
	return a.router
}

// Start runs the HTTP server
func (a *App) Start() error {
	addr := ":" + a.config.Server.Port
	a.logger.Info("listening on %s", addr)
	return http.ListenAndServe(addr, a.router)
}
