package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quillmind/orchestrator/internal/sanitize"
	"github.com/quillmind/orchestrator/pkg/orchestrator"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

// handleComplete implements POST /v1/complete.
func (s *server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req llm.CompletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse("messages must not be empty"))
		return
	}

	resp, err := s.deps.Service.CompleteWithFallback(r.Context(), req)
	if err != nil {
		writeCompletionError(s.deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStreamComplete implements POST /v1/complete/stream, framing chunks
// as server-sent events mirroring the OpenAI streaming convention.
func (s *server) handleStreamComplete(w http.ResponseWriter, r *http.Request) {
	var req llm.CompletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse("messages must not be empty"))
		return
	}

	chunks, err := s.deps.Service.StreamCompletion(r.Context(), req)
	if err != nil {
		writeCompletionError(s.deps.Logger, w, err)
		return
	}

	writeSSEHeaders(w)
	flusher, _ := w.(http.Flusher)

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				writeSSEDone(w)
				if flusher != nil {
					flusher.Flush()
				}
				return
			}
			if chunk.FinishReason == "error" {
				writeSSEError(w, chunk.Text)
			} else {
				data, err := json.Marshal(chunk)
				if err != nil {
					continue
				}
				writeSSEData(w, data)
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleBatch implements POST /v1/batch.
func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []llm.CompletionRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	if len(reqs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse("batch must contain at least one request"))
		return
	}

	results := s.deps.Service.BatchComplete(r.Context(), reqs)
	writeJSON(w, http.StatusOK, batchResponse(results))
}

type batchItem struct {
	Response *llm.CompletionResponse `json:"response,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

func batchResponse(results []orchestrator.BatchResult) []batchItem {
	out := make([]batchItem, len(results))
	for i, r := range results {
		if r.Err != nil {
			out[i] = batchItem{Error: r.Err.Error()}
			continue
		}
		out[i] = batchItem{Response: r.Response}
	}
	return out
}

// handleCosts implements GET /v1/costs, pricing the request body against
// every registered provider.
func (s *server) handleCosts(w http.ResponseWriter, r *http.Request) {
	var req llm.CompletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Service.EstimateCosts(req))
}

// handleProviderHealth implements GET /v1/health/providers. With no query
// parameter it runs a live probe against every provider; with
// ?provider=name it returns that provider's cached health snapshot.
func (s *server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("provider"); name != "" {
		snap, ok := s.deps.Service.GetProviderHealth(name)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse("unknown provider: "+name))
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Service.HealthCheckAllProviders(r.Context()))
}

// handleComprehensiveHealth implements GET /v1/health.
func (s *server) handleComprehensiveHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Service.GetComprehensiveHealth())
}

// handlePerformance implements GET /v1/performance.
func (s *server) handlePerformance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Service.GetPerformanceStats())
}

// handleProviderPerformance implements GET /v1/performance/{provider}.
func (s *server) handleProviderPerformance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	stats, ok := s.deps.Service.GetProviderPerformance(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse("no performance data for provider: "+name))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handlePerformanceTrends implements GET /v1/performance/trends?hours=N.
func (s *server) handlePerformanceTrends(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			hours = n
		}
	}
	writeJSON(w, http.StatusOK, s.deps.Service.GetPerformanceTrends(hours))
}

// handlePerformanceAlerts implements GET /v1/performance/alerts?limit=N.
func (s *server) handlePerformanceAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.deps.Service.GetPerformanceAlerts(limit))
}

// handleCircuitControl implements POST /v1/circuit/{action}.
func (s *server) handleCircuitControl(w http.ResponseWriter, r *http.Request) {
	action := orchestrator.EmergencyAction(chi.URLParam(r, "action"))
	if err := s.deps.Service.EmergencyCircuitControl(action); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "action": string(action)})
}

// writeCompletionError maps a CompleteWithFallback/StreamCompletion error to
// an HTTP status, logging the underlying error server-side and returning a
// sanitized message to the client. Every logged error passes through
// sanitize.ForLogging first: upstream provider error bodies can echo request
// content verbatim, so even an error we're about to log ourselves isn't safe
// to write raw.
func writeCompletionError(logger *slog.Logger, w http.ResponseWriter, err error) {
	var oe *orchestrator.OrchestratorError
	if errors.As(err, &oe) {
		logger.Warn("completion failed", "kind", oe.Kind.String(), "providers_attempted", oe.ProvidersAttempted, "elapsed", oe.Elapsed, "error", sanitize.ForLogging(oe.Message))
		writeJSON(w, statusForKind(oe.Kind), errorResponse(oe.Message))
		return
	}

	switch {
	case errors.Is(err, sanitize.ErrSensitiveContent):
		writeJSON(w, http.StatusBadRequest, errorResponse("request content rejected by content filter"))
	case errors.Is(err, orchestrator.ErrNoProvidersAvailable):
		logger.Warn("completion failed: no providers available", "error", sanitize.ForLogging(err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("no providers available"))
	default:
		logger.Error("completion failed", "error", sanitize.ForLogging(err.Error()))
		writeJSON(w, http.StatusBadGateway, errorResponse("all providers failed"))
	}
}

// statusForKind maps an orchestrator error kind to the HTTP status a client
// should see.
func statusForKind(kind orchestrator.ErrorKind) int {
	switch kind {
	case orchestrator.ErrorKindValidation, orchestrator.ErrorKindSecurityViolation:
		return http.StatusBadRequest
	case orchestrator.ErrorKindAuthentication:
		return http.StatusUnauthorized
	case orchestrator.ErrorKindRateLimited:
		return http.StatusTooManyRequests
	case orchestrator.ErrorKindCircuitOpen:
		return http.StatusServiceUnavailable
	case orchestrator.ErrorKindProviderError, orchestrator.ErrorKindNetwork, orchestrator.ErrorKindAllProvidersFailed:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
