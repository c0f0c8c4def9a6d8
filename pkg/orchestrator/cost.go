package orchestrator

import "github.com/quillmind/orchestrator/pkg/orchestrator/llm"

// CostEstimate prices a request against one provider.
type CostEstimate struct {
	Provider          string  `json:"provider"`
	InputTokens       int     `json:"input_tokens"`
	OutputTokens      int     `json:"output_tokens"`
	InputCost         float64 `json:"input_cost"`
	OutputCost        float64 `json:"output_cost"`
	TotalCost         float64 `json:"total_cost"`
	ProviderAvailable bool    `json:"provider_available"`
}

// estimateCost prices req against the named provider entry using its
// per-million-token pricing and the request's estimated token counts.
func (e *registeredProvider) estimateCost(req llm.CompletionRequest, inputTokens int) CostEstimate {
	outputTokens := req.MaxTokens
	if outputTokens <= 0 {
		outputTokens = e.caps.MaxOutputTokens
		if outputTokens > 1000 {
			outputTokens = 1000
		}
	}

	inputCost := float64(inputTokens) / 1_000_000 * e.inputCostPerMillion
	outputCost := float64(outputTokens) / 1_000_000 * e.outputCostPerMillion

	return CostEstimate{
		Provider:          e.name,
		InputTokens:       inputTokens,
		OutputTokens:      outputTokens,
		InputCost:         inputCost,
		OutputCost:        outputCost,
		TotalCost:         inputCost + outputCost,
		ProviderAvailable: e.health.ShouldRetry(),
	}
}
