package orchestrator

import (
	"context"

	"github.com/quillmind/orchestrator/internal/auditlog"
	"github.com/quillmind/orchestrator/internal/perfmon"
	"github.com/quillmind/orchestrator/internal/providerhealth"
	"github.com/quillmind/orchestrator/internal/tokenize"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

// EstimateCosts prices req against every registered provider, independent of
// whether that provider is currently eligible for selection.
func (s *Service) EstimateCosts(req llm.CompletionRequest) map[string]CostEstimate {
	inputTokens := estimateRequestTokens(req)
	entries := s.snapshotProviders()

	out := make(map[string]CostEstimate, len(entries))
	for _, e := range entries {
		out[e.name] = e.estimateCost(req, inputTokens)
	}
	return out
}

// ProviderHealthSnapshot reports the health and circuit state of the named
// provider.
type ProviderHealthSnapshot struct {
	Provider     string                  `json:"provider"`
	Health       providerhealth.Snapshot `json:"health"`
	CircuitState string                  `json:"circuit_state"`
}

// GetProviderHealth returns a point-in-time health snapshot for the named
// provider, or false if it is not registered.
func (s *Service) GetProviderHealth(name string) (ProviderHealthSnapshot, bool) {
	e, ok := s.get(name)
	if !ok {
		return ProviderHealthSnapshot{}, false
	}
	return ProviderHealthSnapshot{
		Provider:     name,
		Health:       e.health.Snapshot(),
		CircuitState: e.cb.State().String(),
	}, true
}

// HealthCheckAllProviders attempts a minimal completion against every
// registered provider and reports which ones responded successfully. Unlike
// CompleteWithFallback this bypasses provider selection and circuit
// breakers entirely, so it can observe the true current state of a
// provider whose breaker is open.
func (s *Service) HealthCheckAllProviders(ctx context.Context) map[string]bool {
	entries := s.snapshotProviders()
	probe := llm.CompletionRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	}

	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		_, err := e.provider.Complete(ctx, probe)
		out[e.name] = err == nil
	}
	return out
}

// ServiceHealthReport summarizes the whole orchestrator's operating state,
// grounded on the comprehensive health payload returned by
// get_comprehensive_health_report in the orchestration service this design
// is modeled on.
type ServiceHealthReport struct {
	Providers      map[string]ProviderHealthSnapshot `json:"providers"`
	RecentSecurity []auditlog.Event                  `json:"recent_security_events"`
	KnownModels    []string                          `json:"known_models"`
}

// GetComprehensiveHealth assembles a [ServiceHealthReport] across every
// registered provider.
func (s *Service) GetComprehensiveHealth() ServiceHealthReport {
	entries := s.snapshotProviders()

	providers := make(map[string]ProviderHealthSnapshot, len(entries))
	for _, e := range entries {
		providers[e.name] = ProviderHealthSnapshot{
			Provider:     e.name,
			Health:       e.health.Snapshot(),
			CircuitState: e.cb.State().String(),
		}
	}

	return ServiceHealthReport{
		Providers:      providers,
		RecentSecurity: s.audit.RecentEvents(20),
		KnownModels:    tokenize.KnownModels(),
	}
}

// GetPerformanceStats returns aggregate performance statistics across all
// providers.
func (s *Service) GetPerformanceStats() perfmon.Stats {
	return s.perf.OverallStats()
}

// GetProviderPerformance returns the performance statistics recorded under
// name, or false if none have been recorded. CompleteWithFallback records
// every request under the single name "orchestration", so a registered
// provider's own name has no records.
func (s *Service) GetProviderPerformance(name string) (perfmon.Stats, bool) {
	return s.perf.ProviderStats(name)
}

// GetPerformanceTrends returns hour-bucketed average latency per recorded
// name (see GetProviderPerformance) over the trailing window.
func (s *Service) GetPerformanceTrends(hours int) map[string][]float64 {
	return s.perf.Trends(hours)
}

// GetPerformanceAlerts returns the most recent performance alerts, newest
// first, bounded by limit.
func (s *Service) GetPerformanceAlerts(limit int) []perfmon.Alert {
	return s.perf.RecentAlerts(limit)
}

// EmergencyAction names a bulk circuit-breaker operation applied across
// every registered provider at once.
type EmergencyAction string

const (
	// EmergencyOpenAll forces every provider's circuit breaker open,
	// halting all outbound traffic immediately.
	EmergencyOpenAll EmergencyAction = "open_all"

	// EmergencyCloseAll resets every provider's circuit breaker to closed,
	// clearing failure counters and backoff state.
	EmergencyCloseAll EmergencyAction = "close_all"

	// EmergencyResetAll resets every circuit breaker and additionally
	// purges the response cache, for use after a confirmed incident where
	// cached responses may no longer be trustworthy.
	EmergencyResetAll EmergencyAction = "reset_all"
)

// EmergencyCircuitControl applies action across every registered provider's
// circuit breaker and logs the operation to the security audit trail.
func (s *Service) EmergencyCircuitControl(action EmergencyAction) error {
	entries := s.snapshotProviders()

	switch action {
	case EmergencyOpenAll:
		for _, e := range entries {
			e.cb.Open()
		}
	case EmergencyCloseAll:
		for _, e := range entries {
			e.cb.Reset()
		}
	case EmergencyResetAll:
		for _, e := range entries {
			e.cb.Reset()
		}
		s.cache.Purge()
	default:
		return errUnknownEmergencyAction(action)
	}

	s.audit.LogEvent(auditlog.EventSecurityViolation,
		"emergency circuit control invoked: "+string(action), auditlog.SeverityHigh)
	return nil
}

type errUnknownEmergencyAction string

func (e errUnknownEmergencyAction) Error() string {
	return "orchestrator: unknown emergency action: " + string(e)
}
