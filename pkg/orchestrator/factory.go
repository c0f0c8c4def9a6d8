package orchestrator

import (
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/quillmind/orchestrator/internal/breaker"
	"github.com/quillmind/orchestrator/internal/config"
	"github.com/quillmind/orchestrator/internal/observe"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm/anthropic"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm/anyllm"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm/openai"
)

// Factory builds a [Service] from a loaded [config.Config]. It exists
// separately from [New] so that provider construction (which has to branch
// on Kind/Backend and touch real SDK clients) stays out of the core service
// type.
type Factory struct {
	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// CreateOrchestrationService builds and fully wires a [Service] from cfg:
// one registered provider per entry in cfg.Providers, API keys registered
// with the key manager, and the fallback order taken from cfg.Fallback (or
// map iteration order made deterministic via cfg.Fallback when set). An
// "openai" or "anthropic" entry with no API key is skipped with a warning.
func (f *Factory) CreateOrchestrationService(cfg *config.Config) (*Service, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := f.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	svc, err := New(Config{
		MaxContextTokens:       cfg.Context.MaxContextTokens,
		CacheMaxEntries:        cfg.Cache.MaxEntries,
		EnableContentFiltering: cfg.Security.EnableContentFiltering,
		Logger:                 logger,
		Metrics:                metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create service: %w", err)
	}

	order := cfg.Fallback
	if len(order) == 0 {
		for name := range cfg.Providers {
			order = append(order, name)
		}
	}

	for _, name := range order {
		pc, ok := cfg.Providers[name]
		if !ok {
			return nil, fmt.Errorf("orchestrator: fallback_order references unconfigured provider %q", name)
		}

		if pc.APIKey == "" && (pc.Kind == "openai" || pc.Kind == "anthropic") {
			logger.Warn("orchestrator: skipping provider with no api key", "provider", name)
			continue
		}

		provider, err := buildProvider(name, pc)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: build provider %q: %w", name, err)
		}

		circuitCfg := circuitConfigFor(name, pc)
		svc.AddProvider(name, provider, ProviderOptions{
			CircuitConfig:        circuitCfg,
			MaxConcurrent:        pc.MaxConcurrent,
			MinInterval:          time.Duration(pc.MinIntervalMillis) * time.Millisecond,
			InputCostPerMillion:  pc.InputCostPerMillion,
			OutputCostPerMillion: pc.OutputCostPerMillion,
		})

		if pc.APIKey != "" {
			if pc.KeyRotationMaxUsage > 0 {
				svc.KeyManager().AddKeyWithRotation(name, pc.APIKey, pc.KeyRotationMaxUsage)
			} else {
				svc.KeyManager().AddKey(name, pc.APIKey)
			}
		}
	}

	return svc, nil
}

// circuitConfigFor resolves pc.CircuitProfile to a [breaker.Config], falling
// back to [breaker.ConfigFor]'s kind-based default when unset.
func circuitConfigFor(name string, pc config.ProviderConfig) breaker.Config {
	switch pc.CircuitProfile {
	case "conservative":
		return breaker.Conservative(name)
	case "default":
		return breaker.Default(name)
	case "aggressive":
		return breaker.Aggressive(name)
	default:
		return breaker.ConfigFor(name)
	}
}

// buildProvider constructs the llm.Provider adapter named by pc.Kind (and,
// for "anyllm", pc.Backend).
func buildProvider(name string, pc config.ProviderConfig) (llm.Provider, error) {
	switch pc.Kind {
	case "openai":
		opts := []openai.Option{}
		if pc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pc.BaseURL))
		}
		if pc.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(pc.Timeout))
		}
		return openai.New(pc.APIKey, pc.Model, opts...)

	case "anthropic":
		opts := []anthropic.Option{}
		if pc.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(pc.BaseURL))
		}
		if pc.Timeout > 0 {
			opts = append(opts, anthropic.WithTimeout(pc.Timeout))
		}
		return anthropic.New(pc.APIKey, pc.Model, opts...)

	case "anyllm":
		opts := []anyllmlib.Option{}
		if pc.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(pc.APIKey))
		}
		if pc.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(pc.BaseURL))
		}
		return anyllm.New(pc.Backend, pc.Model, opts...)

	default:
		return nil, fmt.Errorf("orchestrator: unknown provider kind %q for %q", pc.Kind, name)
	}
}
