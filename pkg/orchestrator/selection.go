package orchestrator

import (
	"sort"

	"github.com/quillmind/orchestrator/internal/breaker"
	"github.com/quillmind/orchestrator/internal/tokenize"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

// candidate is one provider considered for a request, carrying the data the
// ordering heuristic needs.
type candidate struct {
	entry        *registeredProvider
	healthy      bool
	circuitState breaker.State
	estimatedCost float64
}

// selectProviders returns the subset of registered providers eligible for
// req, ordered: healthy before unhealthy, closed-circuit before half-open,
// then by estimated cost (a >20% cheaper candidate wins outright), then by
// ascending average response time.
func (s *Service) selectProviders(req llm.CompletionRequest) []*registeredProvider {
	entries := s.snapshotProviders()

	inputTokens := estimateRequestTokens(req)

	candidates := make([]candidate, 0, len(entries))
	for _, e := range entries {
		if !e.health.ShouldRetry() {
			continue
		}
		state := e.cb.State()
		if state == breaker.StateOpen {
			continue
		}
		cost := e.estimateCost(req, inputTokens).TotalCost
		candidates = append(candidates, candidate{
			entry:         e,
			healthy:       e.health.IsHealthy(),
			circuitState:  state,
			estimatedCost: cost,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		if a.healthy != b.healthy {
			return a.healthy
		}

		aClosed := a.circuitState == breaker.StateClosed
		bClosed := b.circuitState == breaker.StateClosed
		if aClosed != bClosed {
			return aClosed
		}

		costDiff := a.estimatedCost - b.estimatedCost
		if abs(costDiff) > 0.001 {
			if costDiff > a.estimatedCost*0.2 {
				return false
			}
			if costDiff < -a.estimatedCost*0.2 {
				return true
			}
		}

		return a.entry.health.AvgResponseTime() < b.entry.health.AvgResponseTime()
	})

	out := make([]*registeredProvider, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// estimateRequestTokens sums a rough token estimate across req's messages,
// used for provider-selection cost estimation before a specific provider's
// own CountTokens is available.
func estimateRequestTokens(req llm.CompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += tokenize.CountText(msg.Content)
	}
	if req.SystemPrompt != "" {
		total += tokenize.CountText(req.SystemPrompt)
	}
	if total == 0 {
		total = 1000
	}
	return total
}
