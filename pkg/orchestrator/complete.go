package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillmind/orchestrator/internal/auditlog"
	"github.com/quillmind/orchestrator/internal/breaker"
	"github.com/quillmind/orchestrator/internal/contextmgr"
	"github.com/quillmind/orchestrator/internal/observe"
	"github.com/quillmind/orchestrator/internal/respcache"
	"github.com/quillmind/orchestrator/internal/sanitize"
	"github.com/quillmind/orchestrator/internal/tokenize"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

// ErrNoProvidersAvailable is returned when no registered provider is
// eligible to serve a request (all unhealthy or circuit-open).
var ErrNoProvidersAvailable = errors.New("orchestrator: no providers available")

// CompleteWithFallback sanitizes, trims, and dispatches req to the
// best-ranked eligible provider, falling back to the next candidate on
// failure. A successful response is cached under a TTL chosen by whether
// its content looks sensitive.
func (s *Service) CompleteWithFallback(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	perfReq := s.perf.Start("orchestration", req.Model)
	defer func() {
		s.metrics.CompletionDuration.Record(ctx, time.Since(start).Seconds())
	}()

	if err := s.sanitizeRequest(&req); err != nil {
		s.perf.Fail(perfReq, "security_violation")
		return nil, &OrchestratorError{
			Kind:    ErrorKindSecurityViolation,
			Message: sanitize.ForLogging(err.Error()),
			Elapsed: time.Since(start),
			Wrapped: err,
		}
	}

	trimmed, err := s.contextMgr.Manage(ctx, req.Messages, s.maxContextTokens)
	if err != nil {
		s.perf.Fail(perfReq, "context_management")
		return nil, &OrchestratorError{
			Kind:    ErrorKindValidation,
			Message: sanitize.ForLogging(err.Error()),
			Elapsed: time.Since(start),
			Wrapped: err,
		}
	}
	req.Messages = trimmed

	if err := contextmgr.ValidateFit(req.Messages, s.maxContextTokens); err != nil {
		s.perf.Fail(perfReq, "tokenization_validation")
		return nil, &OrchestratorError{
			Kind:    ErrorKindValidation,
			Message: sanitize.ForLogging(err.Error()),
			Elapsed: time.Since(start),
			Wrapped: err,
		}
	}

	cacheKey := respcache.Key(req)
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.RecordCacheLookup(ctx, true)
		s.perf.CacheHit(perfReq)
		return &cached, nil
	}
	s.metrics.RecordCacheLookup(ctx, false)

	candidates := s.selectProviders(req)
	if len(candidates) == 0 {
		s.perf.Fail(perfReq, "no_providers_available")
		s.audit.LogEvent(auditlog.EventSuspiciousActivity, "no AI providers available for request", auditlog.SeverityMedium)
		return nil, &OrchestratorError{
			Kind:    ErrorKindCircuitOpen,
			Message: "no providers available",
			Elapsed: time.Since(start),
			Wrapped: ErrNoProvidersAvailable,
		}
	}

	fg := fallbackGroupFor(candidates)
	attempted := 0
	resp, err := breaker.ExecuteWithResult[*registeredProvider, *llm.CompletionResponse](fg, func(entry *registeredProvider) (*llm.CompletionResponse, error) {
		if attempted > 0 {
			s.metrics.RecordFallback(ctx, candidates[0].name, entry.name)
		}
		attempted++
		return s.callProvider(ctx, entry, req)
	})
	if err != nil {
		s.perf.Fail(perfReq, "all_providers_failed")
		s.audit.LogEvent(auditlog.EventSuspiciousActivity,
			fmt.Sprintf("all AI providers failed after %d attempts: %s", attempted, sanitize.ForLogging(err.Error())),
			auditlog.SeverityMedium)
		return nil, &OrchestratorError{
			Kind:               ErrorKindAllProvidersFailed,
			Message:            sanitize.ForLogging(err.Error()),
			ProvidersAttempted: fg.Names(),
			Elapsed:            time.Since(start),
			Wrapped:            err,
		}
	}

	sanitized := sanitize.SanitizeResponse(*resp)
	sensitive := containsSensitive(&sanitized)
	s.cache.Set(cacheKey, sanitized, sensitive)
	s.perf.Complete(perfReq)
	return &sanitized, nil
}

// fallbackGroupFor builds a [breaker.FallbackGroup] over candidates' own
// persistent circuit breakers, preserving the caller-supplied order, so
// breaker trip state accumulates across requests even though the group
// itself is rebuilt (and reordered by [Service.selectProviders]) per call.
func fallbackGroupFor(candidates []*registeredProvider) *breaker.FallbackGroup[*registeredProvider] {
	entries := make([]breaker.Entry[*registeredProvider], len(candidates))
	for i, c := range candidates {
		entries[i] = breaker.Entry[*registeredProvider]{Name: c.name, Value: c, Breaker: c.cb}
	}
	return breaker.NewFallbackGroupFromBreakers(entries...)
}

// callProvider acquires entry's rate limiter slot, calls its adapter, and
// records health/perf/metric outcomes. The circuit-breaker wrapping happens
// one level up, in the [breaker.FallbackGroup] driving this call.
func (s *Service) callProvider(ctx context.Context, entry *registeredProvider, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	release, err := entry.limiter.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: acquire rate limit for %s: %w", entry.name, err)
	}
	defer release()

	callStart := time.Now()
	resp, err := entry.provider.Complete(ctx, req)
	duration := time.Since(callStart)
	s.metrics.ProviderCallDuration.Record(ctx, duration.Seconds(), observe.Attr("provider", entry.name))

	if err != nil {
		entry.health.RecordFailure()
		s.metrics.RecordProviderError(ctx, entry.name, "call_failed")
		s.metrics.RecordProviderRequest(ctx, entry.name, "error")
		return nil, err
	}

	entry.health.RecordSuccess(duration)
	s.metrics.RecordProviderRequest(ctx, entry.name, "ok")

	// Overwrite the adapter's self-reported usage with an authoritative
	// recount: adapters estimate (or report) usage inconsistently with
	// each other, so downstream cost/context accounting needs one
	// uniform source of truth rather than per-provider self-reports.
	resp.Usage = tokenize.CalculateUsage(req.Messages, resp.Content)
	return resp, nil
}

// StreamCompletion behaves like CompleteWithFallback but returns a channel
// of streamed chunks from the first candidate that accepts the stream. Once
// a provider begins streaming, failure mid-stream is surfaced as a final
// chunk with FinishReason "error" rather than silently falling back,
// since partial output may already have reached the caller.
func (s *Service) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	if err := s.sanitizeRequest(&req); err != nil {
		return nil, err
	}

	trimmed, err := s.contextMgr.Manage(ctx, req.Messages, s.maxContextTokens)
	if err != nil {
		return nil, err
	}
	req.Messages = trimmed

	candidates := s.selectProviders(req)
	if len(candidates) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	var lastErr error
	for _, entry := range candidates {
		release, err := entry.limiter.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		var chunks <-chan llm.Chunk
		startErr := entry.cb.Execute(func() error {
			var innerErr error
			chunks, innerErr = entry.provider.StreamCompletion(ctx, req)
			return innerErr
		})
		if startErr != nil {
			release()
			entry.health.RecordFailure()
			lastErr = startErr
			continue
		}

		entry.health.RecordSuccess(0)
		release()
		return chunks, nil
	}

	return nil, fmt.Errorf("orchestrator: all providers failed to start stream: %w", lastErr)
}

// BatchResult pairs a batch request's response with any error.
type BatchResult struct {
	Response *llm.CompletionResponse
	Err      error
}

// BatchComplete dispatches every request in reqs concurrently through
// CompleteWithFallback, preserving input order in the result slice.
func (s *Service) BatchComplete(ctx context.Context, reqs []llm.CompletionRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	done := make(chan int, len(reqs))

	for i, req := range reqs {
		go func(i int, req llm.CompletionRequest) {
			resp, err := s.CompleteWithFallback(ctx, req)
			results[i] = BatchResult{Response: resp, Err: err}
			done <- i
		}(i, req)
	}

	for range reqs {
		<-done
	}
	return results
}
