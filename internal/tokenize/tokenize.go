// Package tokenize estimates token counts for conversation content and
// looks up per-model context-window metadata for callers, such as
// internal/contextmgr, that need both in one place without depending on a
// specific provider adapter.
//
// Providers each ship their own CountTokens heuristic; this package exists
// for components that must estimate tokens before a provider has been
// chosen (context management, cost estimation) and so cannot call into an
// adapter directly.
package tokenize

import (
	"sort"
	"strings"

	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

// charsPerToken approximates the token density of English prose for
// GPT/Claude-family tokenizers. It intentionally matches the ~4-chars-per-
// token heuristic used by every provider adapter in this codebase so that
// pre-dispatch estimates agree with post-dispatch provider-reported usage
// closely enough to avoid systematic context-budget drift.
const charsPerToken = 4

// messageOverhead accounts for the role/formatting tokens a chat-style API
// adds around each message's raw content.
const messageOverhead = 4

// CountText estimates the number of tokens s takes up as one chat message:
// its length at charsPerToken, plus messageOverhead.
func CountText(s string) int {
	return (len(s)+charsPerToken-1)/charsPerToken + messageOverhead
}

// ModelLimits describes the token budget of a named model.
type ModelLimits struct {
	ContextWindow   int
	MaxOutputTokens int
}

// defaultLimits is used for models not present in the table below.
var defaultLimits = ModelLimits{ContextWindow: 128_000, MaxOutputTokens: 4_096}

// knownModels mirrors the capability tables embedded in the openai, anyllm,
// and anthropic provider adapters, collected here so context management can
// size its budget without instantiating a provider.
var knownModels = map[string]ModelLimits{
	"gpt-4o":              {128_000, 16_384},
	"gpt-4o-mini":         {128_000, 16_384},
	"gpt-4-turbo":         {128_000, 4_096},
	"gpt-4":               {8_192, 4_096},
	"gpt-3.5-turbo":       {16_385, 4_096},
	"o1":                  {200_000, 100_000},
	"o1-mini":             {128_000, 65_536},
	"o3":                  {200_000, 100_000},
	"o3-mini":             {200_000, 100_000},
	"claude-3-5-sonnet":   {200_000, 8_192},
	"claude-3-5-haiku":    {200_000, 8_192},
	"claude-3-opus":       {200_000, 4_096},
	"gemini-1.5-pro":      {2_097_152, 8_192},
	"gemini-1.5-flash":    {1_048_576, 8_192},
	"gemini-2.0-flash":    {1_048_576, 8_192},
}

// LimitsFor returns the known token budget for model, matching by prefix
// against the table above (the longest matching prefix wins), or
// defaultLimits if nothing matches.
func LimitsFor(model string) ModelLimits {
	lower := strings.ToLower(model)
	best, bestLen := defaultLimits, 0
	for prefix, limits := range knownModels {
		if strings.HasPrefix(lower, prefix) && len(prefix) > bestLen {
			best, bestLen = limits, len(prefix)
		}
	}
	return best
}

// KnownModels returns the sorted list of model name prefixes with an entry
// in the capability table, for reporting in health/status payloads.
func KnownModels() []string {
	names := make([]string, 0, len(knownModels))
	for name := range knownModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CalculateUsage recomputes authoritative token accounting for a completed
// request, overwriting whatever the adapter itself self-reported. Every
// adapter estimates (or reports) usage differently — some not at all — so
// the orchestrator recounts prompt and completion tokens itself with the
// same estimator CountText is built on, keeping accounting consistent
// across providers.
func CalculateUsage(messages []llm.Message, completion string) llm.Usage {
	prompt := 0
	for _, m := range messages {
		prompt += CountText(m.Content)
	}
	completionTokens := CountText(completion)
	return llm.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
	}
}
