// Package observe provides application-wide observability primitives for
// the orchestrator: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all orchestrator metrics.
const meterName = "github.com/quillmind/orchestrator"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// CompletionDuration tracks end-to-end completion latency, including
	// fallback retries.
	CompletionDuration metric.Float64Histogram

	// ProviderCallDuration tracks a single provider call's latency.
	ProviderCallDuration metric.Float64Histogram

	// ContextManagementDuration tracks time spent trimming a conversation
	// to fit a provider's context window.
	ContextManagementDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// CacheLookups counts response-cache lookups. Use with attribute:
	//   attribute.Bool("hit", ...)
	CacheLookups metric.Int64Counter

	// FallbacksTriggered counts how often a fallback provider was used
	// because a preferred provider failed or was circuit-open.
	FallbacksTriggered metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// CircuitState tracks the current circuit-breaker state per provider as
	// a 0 (closed) / 1 (half-open) / 2 (open) value. Use with attribute:
	//   attribute.String("provider", ...)
	CircuitState metric.Int64UpDownCounter

	// InFlightRequests tracks the number of completion requests currently
	// being processed.
	InFlightRequests metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for LLM-completion latencies, which run longer than typical RPC latencies.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CompletionDuration, err = m.Float64Histogram("orchestrator.completion.duration",
		metric.WithDescription("End-to-end latency of a completion request, including fallback retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderCallDuration, err = m.Float64Histogram("orchestrator.provider_call.duration",
		metric.WithDescription("Latency of a single provider call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ContextManagementDuration, err = m.Float64Histogram("orchestrator.context_management.duration",
		metric.WithDescription("Latency of trimming a conversation to fit a provider's context window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("orchestrator.provider.requests",
		metric.WithDescription("Total provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("orchestrator.cache.lookups",
		metric.WithDescription("Total response-cache lookups by hit/miss."),
	); err != nil {
		return nil, err
	}
	if met.FallbacksTriggered, err = m.Int64Counter("orchestrator.fallbacks_triggered",
		metric.WithDescription("Total times a fallback provider was used in place of the preferred one."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("orchestrator.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.CircuitState, err = m.Int64UpDownCounter("orchestrator.circuit.state",
		metric.WithDescription("Current circuit-breaker state per provider (0=closed, 1=half-open, 2=open)."),
	); err != nil {
		return nil, err
	}
	if met.InFlightRequests, err = m.Int64UpDownCounter("orchestrator.in_flight_requests",
		metric.WithDescription("Number of completion requests currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("orchestrator.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordCacheLookup is a convenience method that records a cache lookup
// counter increment.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("hit", hit)),
	)
}

// RecordFallback is a convenience method that records a fallback-triggered
// counter increment.
func (m *Metrics) RecordFallback(ctx context.Context, fromProvider, toProvider string) {
	m.FallbacksTriggered.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", fromProvider),
			attribute.String("to", toProvider),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
