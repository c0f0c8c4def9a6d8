// Package config provides the configuration schema and loader for the
// orchestrator.
package config

import "time"

// Config is the root configuration structure for the orchestrator.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Cache     CacheConfig               `yaml:"cache"`
	Context   ContextConfig             `yaml:"context"`
	Security  SecurityConfig            `yaml:"security"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Fallback  []string                  `yaml:"fallback_order"`
}

// LogLevel controls logger verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels, or empty.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
		return true
	default:
		return false
	}
}

// ServerConfig holds network and logging settings for the orchestrator's
// HTTP surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds how long graceful shutdown waits for in-flight
	// requests to finish.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig tunes the response cache.
type CacheConfig struct {
	// MaxEntries bounds the number of cached responses held in memory.
	MaxEntries int `yaml:"max_entries"`

	// DefaultTTLSeconds is the configured cache lifetime for non-sensitive
	// responses. It is loaded and defaulted but not passed to the service;
	// the response cache always uses respcache.DefaultTTL.
	DefaultTTLSeconds int `yaml:"default_ttl_seconds"`

	// SensitiveTTLSeconds is the configured cache lifetime for responses
	// flagged as containing sensitive content. It is loaded and defaulted
	// but not passed to the service; the response cache always uses
	// respcache.SensitiveTTL.
	SensitiveTTLSeconds int `yaml:"sensitive_ttl_seconds"`
}

// ContextConfig bounds how much conversation history is sent to a provider.
type ContextConfig struct {
	// MaxContextTokens is the hard ceiling enforced across every provider,
	// regardless of a given model's own larger context window.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// SecurityConfig toggles content-safety behavior.
type SecurityConfig struct {
	// EnableContentFiltering rejects requests whose content matches a
	// prohibited pattern (credentials, card/SSN-shaped numbers) instead of
	// forwarding them to a provider.
	EnableContentFiltering bool `yaml:"enable_content_filtering"`
}

// ProviderConfig configures a single named LLM provider and the resilience
// policy applied to it.
type ProviderConfig struct {
	// Kind selects the adapter implementation: "openai", "anthropic", or
	// "anyllm" (routed through the multi-backend adapter using Backend).
	Kind string `yaml:"kind"`

	// Backend selects the any-llm-go backend when Kind is "anyllm".
	// Valid values: "openai", "anthropic", "gemini", "ollama", "deepseek",
	// "mistral", "groq", "llamacpp", "llamafile".
	Backend string `yaml:"backend"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Leave empty
	// to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "claude-3-5-sonnet-20241022").
	Model string `yaml:"model"`

	// Timeout bounds a single request to this provider.
	Timeout time.Duration `yaml:"timeout"`

	// CircuitProfile names a pre-tuned circuit-breaker profile: "conservative",
	// "default", or "aggressive". Empty selects a profile based on Kind.
	CircuitProfile string `yaml:"circuit_profile"`

	// MaxConcurrent bounds in-flight requests to this provider.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MinIntervalMillis enforces a minimum spacing between requests to this
	// provider, in milliseconds.
	MinIntervalMillis int `yaml:"min_interval_millis"`

	// KeyRotationMaxUsage, if > 0, flags this provider's key for rotation
	// once it has been used this many times.
	KeyRotationMaxUsage uint64 `yaml:"key_rotation_max_usage"`

	// InputCostPerMillion and OutputCostPerMillion price a provider's
	// tokens in USD per million tokens, for cost estimation.
	InputCostPerMillion  float64 `yaml:"input_cost_per_million"`
	OutputCostPerMillion float64 `yaml:"output_cost_per_million"`
}
