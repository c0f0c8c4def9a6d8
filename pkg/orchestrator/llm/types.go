// Package llm defines the Provider interface for Large Language Model backends
// and the request/response types shared by every adapter and by the
// orchestrator core.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, or anything reachable through any-llm) and exposes a
// uniform interface so the orchestrator can perform completions, stream
// output, count tokens, and inspect model capabilities without coupling to
// any specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of RoleSystem, RoleUser, RoleAssistant, or RoleTool.
	Role Role `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`

	// Name is an optional participant name (for multi-speaker contexts).
	Name string `json:"name,omitempty"`

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is set when Role is RoleTool, identifying which tool call
	// this responds to.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall represents a tool/function invocation requested by the LLM.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool that can be offered to an LLM.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	ContextWindow       int
	MaxOutputTokens     int
	SupportsToolCalling bool
	SupportsVision      bool
	SupportsStreaming   bool

	// SupportsBatching is reported true by every adapter in this module.
	// The orchestrator's batch path does not consult it: BatchComplete
	// dispatches every request concurrently regardless of this flag.
	SupportsBatching bool
}

// Priority expresses scheduling urgency for a CompletionRequest. The
// orchestrator does not read it: it changes neither provider selection nor
// the performance and audit records.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the human-readable name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// Model names the model the caller wants, independent of which
	// provider ultimately serves it. Adapters map this onto their own
	// model identifier; the orchestrator uses it to pick a fallback chain.
	Model string `json:"model"`

	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`

	// Tools is the set of function/tool definitions offered to the model.
	Tools []ToolDefinition `json:"tools,omitempty"`

	// Temperature controls output randomness in [0.0, 2.0].
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens caps the number of completion tokens the model may generate.
	MaxTokens int `json:"max_tokens,omitempty"`

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Priority expresses scheduling urgency; see Priority.
	Priority Priority `json:"priority,omitempty"`

	// Timeout is a per-request time limit. The orchestrator does not apply
	// it; a request is bounded only by the caller's context deadline (if
	// any) and the adapter's own HTTP client timeout.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Batchable marks the request as suitable for batching. BatchComplete
	// does not read it and dispatches every request it is given.
	Batchable bool `json:"batchable,omitempty"`

	// CompressResponse hints that the caller can tolerate a summarized or
	// truncated response body, letting a provider adapter that supports it
	// request a shorter completion instead of the full one. Adapters that
	// don't support response compression ignore this field.
	CompressResponse bool `json:"compress_response,omitempty"`

	// Metadata carries caller-supplied key/value pairs. It is never sent to
	// the provider, and it is not copied into audit or performance records.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk is a single fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content of this chunk.
	Text string `json:"text"`

	// FinishReason is set on the final chunk. Common values are "stop",
	// "length", "tool_calls", and "" for a non-final chunk. The sentinel
	// value "error" indicates a mid-stream failure; Text then carries the
	// error message.
	FinishReason string `json:"finish_reason,omitempty"`

	// ToolCalls contains any tool invocations the model is requesting.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Choice represents one candidate completion within a response. Every
// request produces at least one; future multi-sample support would
// produce more, each with its own Index.
type Choice struct {
	Index        int        `json:"index"`
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// ID uniquely identifies this response. Adapters don't uniformly
	// expose a provider-native response id across backends, so the
	// orchestrator assigns one itself.
	ID string `json:"id"`

	// Model is the model name the adapter copies from the request
	// (CompletionRequest.Model); it is empty when the request named none and
	// is not the adapter's own configured model identifier.
	Model string `json:"model"`

	// CreatedAt is when the response was produced.
	CreatedAt time.Time `json:"created_at"`

	// Choices holds every candidate completion. Choices[0] mirrors the
	// top-level Content/ToolCalls/FinishReason fields below, which exist
	// for callers that only care about a single completion.
	Choices []Choice `json:"choices,omitempty"`

	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	Usage        Usage      `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`

	// Metadata carries response-level annotations the orchestrator
	// attaches (e.g. cache status), not ones the provider itself returned.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewResponse builds a single-choice CompletionResponse, assigning a
// fresh ID and creation timestamp and mirroring the choice onto the
// top-level convenience fields. Adapters that only ever return one
// candidate completion should build their result through this helper
// rather than constructing CompletionResponse by hand, so every adapter
// stamps an ID/Model/CreatedAt the same way.
func NewResponse(model, content string, toolCalls []ToolCall, finishReason string, usage Usage) *CompletionResponse {
	return &CompletionResponse{
		ID:           uuid.NewString(),
		Model:        model,
		CreatedAt:    time.Now().UTC(),
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
		Usage:        usage,
		Choices: []Choice{{
			Index:        0,
			Content:      content,
			ToolCalls:    toolCalls,
			FinishReason: finishReason,
		}},
	}
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Each method should propagate context cancellation promptly.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only
	// channel that emits Chunk values as they arrive. The channel is closed
	// by the implementation when generation finishes or ctx is cancelled.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens the given message list
	// would consume in the model's context window.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying model supports.
	Capabilities() ModelCapabilities
}
