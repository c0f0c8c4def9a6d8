// Package httpapi is the orchestrator's HTTP transport layer: a thin
// chi-routed shell that decodes JSON requests, calls into
// pkg/orchestrator.Service, and encodes the result, mirroring the
// request/recovery/logging middleware chain used across this codebase's
// other HTTP-fronted services.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillmind/orchestrator/internal/health"
	"github.com/quillmind/orchestrator/internal/observe"
	"github.com/quillmind/orchestrator/pkg/orchestrator"
)

// Deps holds everything the router needs to wire its routes.
type Deps struct {
	Service *orchestrator.Service
	Logger  *slog.Logger
	Metrics *observe.Metrics

	// HealthCheckers feed /readyz, in addition to the always-200 /healthz.
	HealthCheckers []health.Checker

	// MetricsHandler, if non-nil, is mounted at /metrics (typically the
	// Prometheus exporter's http.Handler).
	MetricsHandler http.Handler
}

type server struct {
	deps Deps
}

// New builds the fully-routed HTTP handler described by SPEC_FULL.md's
// external interface table.
func New(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	s := &server{deps: deps}

	r := chi.NewRouter()
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	r.Use(observe.Middleware(deps.Metrics))

	healthHandler := health.New(deps.HealthCheckers...)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/complete", s.handleComplete)
		r.Post("/complete/stream", s.handleStreamComplete)
		r.Post("/batch", s.handleBatch)
		r.Get("/costs", s.handleCosts)
		r.Get("/health/providers", s.handleProviderHealth)
		r.Get("/health", s.handleComprehensiveHealth)
		r.Get("/performance", s.handlePerformance)
		r.Get("/performance/{provider}", s.handleProviderPerformance)
		r.Get("/performance/trends", s.handlePerformanceTrends)
		r.Get("/performance/alerts", s.handlePerformanceAlerts)
		r.Post("/circuit/{action}", s.handleCircuitControl)
	})

	return r
}
