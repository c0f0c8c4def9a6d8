package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidKinds lists the recognised provider adapter kinds.
var ValidKinds = []string{"openai", "anthropic", "anyllm"}

// ValidBackends lists the recognised any-llm-go backend names, used when a
// provider's Kind is "anyllm".
var ValidBackends = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// ValidCircuitProfiles lists the recognised circuit-breaker profile names.
var ValidCircuitProfiles = []string{"conservative", "default", "aggressive"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-valued fields that must not be left at zero
// for the system to behave sensibly.
func applyDefaults(cfg *Config) {
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 10_000
	}
	if cfg.Cache.DefaultTTLSeconds <= 0 {
		cfg.Cache.DefaultTTLSeconds = 600
	}
	if cfg.Cache.SensitiveTTLSeconds <= 0 {
		cfg.Cache.SensitiveTTLSeconds = 60
	}
	if cfg.Context.MaxContextTokens <= 0 {
		cfg.Context.MaxContextTokens = 100_000
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if len(cfg.Providers) == 0 {
		errs = append(errs, errors.New("providers: at least one provider must be configured"))
	}

	for name, p := range cfg.Providers {
		prefix := fmt.Sprintf("providers.%s", name)
		if p.Kind == "" {
			errs = append(errs, fmt.Errorf("%s.kind is required", prefix))
		} else if !slices.Contains(ValidKinds, p.Kind) {
			errs = append(errs, fmt.Errorf("%s.kind %q is invalid; valid values: %v", prefix, p.Kind, ValidKinds))
		}
		if p.Kind == "anyllm" {
			if p.Backend == "" {
				errs = append(errs, fmt.Errorf("%s.backend is required when kind is anyllm", prefix))
			} else if !slices.Contains(ValidBackends, p.Backend) {
				errs = append(errs, fmt.Errorf("%s.backend %q is invalid; valid values: %v", prefix, p.Backend, ValidBackends))
			}
		}
		if p.APIKey == "" && p.Kind != "" && p.Kind != "anyllm" {
			errs = append(errs, fmt.Errorf("%s.api_key is required", prefix))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		if p.CircuitProfile != "" && !slices.Contains(ValidCircuitProfiles, p.CircuitProfile) {
			errs = append(errs, fmt.Errorf("%s.circuit_profile %q is invalid; valid values: %v", prefix, p.CircuitProfile, ValidCircuitProfiles))
		}
		if p.MaxConcurrent < 0 {
			errs = append(errs, fmt.Errorf("%s.max_concurrent must be >= 0", prefix))
		}
	}

	for i, name := range cfg.Fallback {
		if _, ok := cfg.Providers[name]; !ok {
			errs = append(errs, fmt.Errorf("fallback_order[%d] %q does not match any configured provider", i, name))
		}
	}

	return errors.Join(errs...)
}
