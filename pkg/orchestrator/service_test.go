package orchestrator

import (
	"testing"

	"github.com/quillmind/orchestrator/internal/breaker"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm/mock"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Config{MaxContextTokens: 8000, CacheMaxEntries: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func addMockProvider(svc *Service, name string, p *mock.Provider, opts ProviderOptions) {
	svc.AddProvider(name, p, opts)
}

func TestAddProviderAppendsFallbackOrder(t *testing.T) {
	svc := newTestService(t)
	addMockProvider(svc, "a", &mock.Provider{}, ProviderOptions{})
	addMockProvider(svc, "b", &mock.Provider{}, ProviderOptions{})

	if len(svc.fallbackOrder) != 2 || svc.fallbackOrder[0] != "a" || svc.fallbackOrder[1] != "b" {
		t.Fatalf("unexpected fallback order: %v", svc.fallbackOrder)
	}
}

func TestSanitizeRequestRejectsSensitiveContent(t *testing.T) {
	svc, err := New(Config{EnableContentFiltering: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "api_key: sk-super-secret"}}}
	if err := svc.sanitizeRequest(&req); err == nil {
		t.Fatal("expected sanitize error, got nil")
	}
}

func TestSanitizeRequestDisabledByDefault(t *testing.T) {
	svc := newTestService(t)
	req := llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "password: hunter2"}}}
	if err := svc.sanitizeRequest(&req); err != nil {
		t.Fatalf("expected no error with filtering disabled, got %v", err)
	}
}

func TestGetUnknownProviderNotFound(t *testing.T) {
	svc := newTestService(t)
	if _, ok := svc.get("missing"); ok {
		t.Fatal("expected ok=false for unregistered provider")
	}
}

// ensure circuit breaker profile defaulting doesn't panic when unset.
func TestAddProviderDefaultsCircuitConfig(t *testing.T) {
	svc := newTestService(t)
	addMockProvider(svc, "p", &mock.Provider{}, ProviderOptions{CircuitConfig: breaker.Config{}})
	entry, ok := svc.get("p")
	if !ok {
		t.Fatal("expected provider to be registered")
	}
	if entry.cb == nil {
		t.Fatal("expected a circuit breaker to be constructed")
	}
}
