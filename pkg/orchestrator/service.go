// Package orchestrator multiplexes completion requests across heterogeneous
// LLM providers, applying content sanitization, context-window trimming,
// response caching, health-aware provider selection, and circuit-breaker
// protected fallback.
//
// Grounded on AIOrchestrationService in the orchestration service this
// system is modeled on: a registry of named providers, each tracked by its
// own rolling health state and circuit breaker, selected per request by a
// health/cost/latency heuristic and tried in that order until one succeeds
// or every candidate is exhausted.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quillmind/orchestrator/internal/auditlog"
	"github.com/quillmind/orchestrator/internal/breaker"
	"github.com/quillmind/orchestrator/internal/contextmgr"
	"github.com/quillmind/orchestrator/internal/keymgr"
	"github.com/quillmind/orchestrator/internal/observe"
	"github.com/quillmind/orchestrator/internal/perfmon"
	"github.com/quillmind/orchestrator/internal/providerhealth"
	"github.com/quillmind/orchestrator/internal/ratelimit"
	"github.com/quillmind/orchestrator/internal/respcache"
	"github.com/quillmind/orchestrator/internal/sanitize"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

// registeredProvider bundles an adapter with the per-provider state the
// orchestrator maintains alongside it: rolling health, a dedicated circuit
// breaker, a rate limiter, and pricing for cost estimation.
type registeredProvider struct {
	name     string
	provider llm.Provider
	caps     llm.ModelCapabilities

	health  *providerhealth.Health
	cb      *breaker.CircuitBreaker
	limiter *ratelimit.Limiter

	inputCostPerMillion  float64
	outputCostPerMillion float64
}

// Service is the orchestrator's core: it holds every registered provider
// and the shared ambient services (cache, context manager, performance
// monitor, audit log, key manager) that every completion request passes
// through.
type Service struct {
	logger *slog.Logger
	metrics *observe.Metrics

	mu            sync.RWMutex
	providers     map[string]*registeredProvider
	fallbackOrder []string

	maxContextTokens int

	cache       *respcache.Cache
	contextMgr  *contextmgr.Manager
	perf        *perfmon.Monitor
	audit       *auditlog.Logger
	keys        *keymgr.Manager
	enableFilter bool
}

// Config configures a [Service].
type Config struct {
	MaxContextTokens       int
	CacheMaxEntries        int
	EnableContentFiltering bool
	Logger                 *slog.Logger
	Metrics                *observe.Metrics
}

// Dependencies bundles the ambient services a [Service] needs, so tests and
// alternate wiring (a shared audit log across services, a cache with
// non-default eviction policy) can supply their own instead of always
// getting the package defaults [New] builds.
type Dependencies struct {
	Cache      *respcache.Cache
	ContextMgr *contextmgr.Manager
	Perf       *perfmon.Monitor
	Audit      *auditlog.Logger
	Keys       *keymgr.Manager
	Logger     *slog.Logger
	Metrics    *observe.Metrics
}

// NewService constructs a [Service] from explicit dependencies rather than
// building them internally from a scalar [Config]. Every field of deps must
// be non-nil; New exists as the convenience path that fills in package
// defaults and calls this.
func NewService(maxContextTokens int, enableContentFiltering bool, deps Dependencies) (*Service, error) {
	if deps.Cache == nil || deps.ContextMgr == nil || deps.Perf == nil || deps.Audit == nil || deps.Keys == nil || deps.Logger == nil || deps.Metrics == nil {
		return nil, fmt.Errorf("orchestrator: NewService requires every Dependencies field to be non-nil")
	}
	if maxContextTokens <= 0 {
		maxContextTokens = 100_000
	}

	return &Service{
		logger:           deps.Logger,
		metrics:          deps.Metrics,
		providers:        make(map[string]*registeredProvider),
		maxContextTokens: maxContextTokens,
		cache:            deps.Cache,
		contextMgr:       deps.ContextMgr,
		perf:             deps.Perf,
		audit:            deps.Audit,
		keys:             deps.Keys,
		enableFilter:     enableContentFiltering,
	}, nil
}

// New constructs an empty [Service] ready to have providers registered via
// [Service.AddProvider], building its ambient [Dependencies] from cfg with
// package defaults. Use [Factory.CreateOrchestrationService] to build a
// fully populated service from a loaded [config.Config] instead of calling
// this directly in most cases; call [NewService] directly when dependencies
// need to be shared or substituted.
func New(cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	cache, err := respcache.New(cfg.CacheMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create response cache: %w", err)
	}

	return NewService(cfg.MaxContextTokens, cfg.EnableContentFiltering, Dependencies{
		Cache:      cache,
		ContextMgr: contextmgr.New(logger),
		Perf:       perfmon.New(0, perfmon.DefaultThresholds()),
		Audit:      auditlog.New(logger, 1000),
		Keys:       keymgr.NewManager(),
		Logger:     logger,
		Metrics:    metrics,
	})
}

// ProviderOptions configures a single provider registration.
type ProviderOptions struct {
	CircuitConfig        breaker.Config
	MaxConcurrent        int
	MinInterval          time.Duration
	InputCostPerMillion  float64
	OutputCostPerMillion float64
}

// AddProvider registers provider under name with the given resilience
// options, appending name to the fallback order.
func (s *Service) AddProvider(name string, provider llm.Provider, opts ProviderOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := opts.CircuitConfig
	if cfg.Name == "" {
		cfg = breaker.ConfigFor(name)
	}

	s.providers[name] = &registeredProvider{
		name:                 name,
		provider:             provider,
		caps:                 provider.Capabilities(),
		health:               providerhealth.New(),
		cb:                   breaker.New(cfg),
		limiter:              ratelimit.New(ratelimit.Config{MaxConcurrent: opts.MaxConcurrent, MinInterval: opts.MinInterval}),
		inputCostPerMillion:  opts.InputCostPerMillion,
		outputCostPerMillion: opts.OutputCostPerMillion,
	}
	s.fallbackOrder = append(s.fallbackOrder, name)
}

// KeyManager returns the service's API key manager, for registering
// provider keys and checking rotation needs.
func (s *Service) KeyManager() *keymgr.Manager { return s.keys }

// AuditLog returns the service's security audit logger.
func (s *Service) AuditLog() *auditlog.Logger { return s.audit }

// PerformanceMonitor returns the service's performance monitor.
func (s *Service) PerformanceMonitor() *perfmon.Monitor { return s.perf }

func (s *Service) get(name string) (*registeredProvider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[name]
	return p, ok
}

func (s *Service) snapshotProviders() []*registeredProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*registeredProvider, 0, len(s.fallbackOrder))
	for _, name := range s.fallbackOrder {
		if p, ok := s.providers[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// sanitizeRequest applies content filtering to every message's content if
// enabled, returning sanitize.ErrSensitiveContent instead of forwarding
// the request to a provider.
func (s *Service) sanitizeRequest(req *llm.CompletionRequest) error {
	if !s.enableFilter {
		return nil
	}
	for _, msg := range req.Messages {
		if sanitize.ContainsSensitive(msg.Content) {
			s.audit.LogEvent(auditlog.EventSecurityViolation, "request sanitization failed: content contains sensitive information", auditlog.SeverityHigh)
			return sanitize.ErrSensitiveContent
		}
	}
	return nil
}

// containsSensitive reports whether resp's content looks sensitive, used to
// pick the cache TTL tier.
func containsSensitive(resp *llm.CompletionResponse) bool {
	return sanitize.ContainsSensitive(resp.Content)
}
