// Package anthropic provides an LLM provider backed by the Anthropic Messages
// API, called directly over HTTP.
//
// Unlike the openai and anyllm adapters, no example in this codebase's
// dependency pack wraps the Anthropic wire protocol directly — every pack
// repo that talks to Claude does so transitively through any-llm. Since the
// orchestrator needs a dedicated, independently-circuit-broken Anthropic
// path (mirroring the two-provider claude/openai split of the system this
// was modeled on), this adapter is hand-rolled against net/http and
// encoding/json rather than adopting a third SDK with no grounding in the
// pack.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// Provider implements llm.Provider against the Anthropic Messages API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout. Default: 60s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new Anthropic LLM Provider for model, authenticated with apiKey.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model must not be empty")
	}

	cfg := &config{baseURL: defaultBaseURL, timeout: 60 * time.Second}
	for _, o := range opts {
		o(cfg)
	}

	return &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: cfg.baseURL,
		client:  &http.Client{Timeout: cfg.timeout},
	}, nil
}

// --- wire format ---

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireResponse struct {
	Content    []wireContentBlock `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      wireUsage          `json:"usage"`
}

type wireError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func defaultMaxTokens(maxTokens int) int {
	if maxTokens > 0 {
		return maxTokens
	}
	return 4096
}

// convertMessages flattens a tool-call-bearing conversation into the
// role/content pairs the Messages API accepts. Anthropic has no distinct
// "tool" role in the simple text path used here; tool results are folded
// into a user-role message prefixed with their originating call ID. Tool
// invocation (the assistant requesting a call) is not round-tripped through
// this adapter's structured ToolCalls field — any-llm's Anthropic backend
// covers that richer path; this adapter targets plain text/streaming
// completions where the orchestrator's own tool loop (if any) mediates
// tool responses before they reach here.
func convertMessages(messages []llm.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		role := "user"
		content := m.Content
		switch m.Role {
		case llm.RoleUser:
			role = "user"
		case llm.RoleAssistant:
			role = "assistant"
		case llm.RoleTool:
			role = "user"
			content = fmt.Sprintf("[tool result %s] %s", m.ToolCallID, m.Content)
		case llm.RoleSystem:
			// System messages are carried via the top-level System field by
			// the caller; a mid-conversation system message has no direct
			// Messages-API equivalent, so fold it into a user turn.
			role = "user"
		}
		out = append(out, wireMessage{Role: role, Content: content})
	}
	return out
}

func (p *Provider) buildWireRequest(req llm.CompletionRequest, stream bool) wireRequest {
	return wireRequest{
		Model:       p.model,
		Messages:    convertMessages(req.Messages),
		System:      req.SystemPrompt,
		MaxTokens:   defaultMaxTokens(req.MaxTokens),
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func (p *Provider) newHTTPRequest(ctx context.Context, body wireRequest) (*http.Request, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

// classifyStatus maps HTTP status codes to descriptive errors distinguishing
// authentication, rate-limit, and transient server failures.
func classifyStatus(status int, body []byte) error {
	var we wireError
	_ = json.Unmarshal(body, &we)
	msg := we.Error.Message
	if msg == "" {
		msg = string(body)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("anthropic: authentication failed: %s", msg)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("anthropic: rate limited: %s", msg)
	case status >= 500:
		return fmt.Errorf("anthropic: server error (%d): %s", status, msg)
	default:
		return fmt.Errorf("anthropic: request failed (%d): %s", status, msg)
	}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	httpReq, err := p.newHTTPRequest(ctx, p.buildWireRequest(req, false))
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	var text strings.Builder
	for _, block := range wr.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return llm.NewResponse(req.Model, text.String(), nil, wr.StopReason, llm.Usage{
		PromptTokens:     wr.Usage.InputTokens,
		CompletionTokens: wr.Usage.OutputTokens,
		TotalTokens:      wr.Usage.InputTokens + wr.Usage.OutputTokens,
	}), nil
}

type sseEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
}

// StreamCompletion implements llm.Provider. It parses the `data: {json}\n\n`
// SSE framing used by the Anthropic Messages streaming API, which terminates
// the stream with a message_stop event rather than the OpenAI-style literal
// "[DONE]" sentinel.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	httpReq, err := p.newHTTPRequest(ctx, p.buildWireRequest(req, true))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: do request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp.StatusCode, body)
	}

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")

			var evt sseEvent
			if err := json.Unmarshal([]byte(payload), &evt); err != nil {
				continue
			}

			var out llm.Chunk
			switch evt.Type {
			case "content_block_delta":
				out.Text = evt.Delta.Text
			case "message_delta":
				out.FinishReason = evt.Delta.StopReason
			case "message_stop":
				if out.FinishReason == "" {
					out.FinishReason = "stop"
				}
			default:
				continue
			}

			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
			if evt.Type == "message_stop" {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case ch <- llm.Chunk{FinishReason: "error", Text: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// CountTokens estimates token usage. The Messages API exposes a dedicated
// count_tokens endpoint, but to avoid a second round trip on every request
// this adapter uses the same character-heuristic approximation as the
// openai and anyllm adapters.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		total += 4
	}
	return total, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	contextWindow, maxOutputTokens, supportsVision := modelLimits(p.model)
	return llm.ModelCapabilities{
		ContextWindow:       contextWindow,
		MaxOutputTokens:     maxOutputTokens,
		SupportsToolCalling: true,
		SupportsVision:      supportsVision,
		SupportsStreaming:   true,
		SupportsBatching:    true,
	}
}

// modelLimits returns static capability metadata for known Claude model names.
func modelLimits(model string) (contextWindow, maxOutputTokens int, supportsVision bool) {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "claude-3-5"), strings.Contains(lower, "claude-3.5"):
		return 200_000, 8_192, true
	case strings.Contains(lower, "claude-3-opus"):
		return 200_000, 4_096, true
	case strings.Contains(lower, "claude-3"):
		return 200_000, 4_096, true
	default:
		return 100_000, 4_096, false
	}
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
