package http

import (
	"net/http"
	"time"

	"github.com/artpar/querywire/adapters/idgen"
	"github.com/artpar/querywire/adapters/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector // Enables request metrics when set
	MetricsHandler http.Handler       // Optional /metrics handler (default: promhttp)
	MetricsPath    string             // Path of the metrics endpoint (default: /metrics)
	IDs            idgen.Generator    // Request ID source (default: UUID)
	Timeout        time.Duration      // Per-request timeout (default: 60s)
}

// NewRouter creates the main HTTP router.
//
//	GET|POST /                 query request, action named by Action
//	POST     /bundle/{action}  JSON arguments to wire parameters
//	GET      /schemas          registered actions
//	GET      /schemas/{action} leaf templates of one action
//	GET      /health           liveness
func NewRouter(h *Handler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.UUID{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(NewRequestIDMiddleware(cfg.IDs))
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, cfg.MetricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	// Metrics middleware (if enabled)
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, cfg.MetricsPath))
	}

	// Health endpoints
	r.Get("/health", Health)
	r.Get("/health/live", Health)

	// Metrics endpoint
	if cfg.MetricsHandler != nil {
		r.Handle(cfg.MetricsPath, cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	// Schema introspection
	r.Get("/schemas", h.ListSchemas)
	r.Get("/schemas/{action}", h.GetSchema)

	// Wire conversion
	r.Post("/bundle/{action}", h.ServeBundle)

	// Query protocol endpoint
	r.Get("/", h.ServeAction)
	r.Post("/", h.ServeAction)

	return r
}
