package orchestrator

import (
	"context"
	"testing"

	"github.com/quillmind/orchestrator/internal/breaker"
	"github.com/quillmind/orchestrator/internal/respcache"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm/mock"
)

func TestEstimateCostsCoversEveryProvider(t *testing.T) {
	svc := newTestService(t)
	addMockProvider(svc, "a", &mock.Provider{}, ProviderOptions{InputCostPerMillion: 1, OutputCostPerMillion: 2})
	addMockProvider(svc, "b", &mock.Provider{}, ProviderOptions{InputCostPerMillion: 3, OutputCostPerMillion: 4})

	costs := svc.EstimateCosts(basicRequest())
	if len(costs) != 2 {
		t.Fatalf("expected 2 cost estimates, got %d", len(costs))
	}
	if costs["a"].TotalCost >= costs["b"].TotalCost {
		t.Fatalf("expected provider a to be cheaper: %+v vs %+v", costs["a"], costs["b"])
	}
}

func TestGetProviderHealthUnknownProvider(t *testing.T) {
	svc := newTestService(t)
	if _, ok := svc.GetProviderHealth("ghost"); ok {
		t.Fatal("expected ok=false for an unregistered provider")
	}
}

func TestHealthCheckAllProvidersBypassesOpenCircuit(t *testing.T) {
	svc := newTestService(t)
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "pong"}}
	addMockProvider(svc, "p", p, ProviderOptions{})

	entry, _ := svc.get("p")
	entry.cb.Open()

	results := svc.HealthCheckAllProviders(context.Background())
	if ok, found := results["p"]; !found || !ok {
		t.Fatalf("expected HealthCheckAllProviders to probe past an open circuit, got %v", results)
	}
}

func TestGetComprehensiveHealthIncludesKnownModels(t *testing.T) {
	svc := newTestService(t)
	addMockProvider(svc, "p", &mock.Provider{}, ProviderOptions{})

	report := svc.GetComprehensiveHealth()
	if len(report.Providers) != 1 {
		t.Fatalf("expected 1 provider in report, got %d", len(report.Providers))
	}
	if len(report.KnownModels) == 0 {
		t.Fatal("expected a non-empty known-models list")
	}
}

func TestEmergencyCircuitControlOpenAll(t *testing.T) {
	svc := newTestService(t)
	addMockProvider(svc, "a", &mock.Provider{}, ProviderOptions{})
	addMockProvider(svc, "b", &mock.Provider{}, ProviderOptions{})

	if err := svc.EmergencyCircuitControl(EmergencyOpenAll); err != nil {
		t.Fatalf("EmergencyCircuitControl: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		e, _ := svc.get(name)
		if e.cb.State() != breaker.StateOpen {
			t.Fatalf("expected %s to be open, got %v", name, e.cb.State())
		}
	}
}

func TestEmergencyCircuitControlUnknownAction(t *testing.T) {
	svc := newTestService(t)
	if err := svc.EmergencyCircuitControl(EmergencyAction("bogus")); err == nil {
		t.Fatal("expected an error for an unknown emergency action")
	}
}

func TestEmergencyCircuitControlResetAllPurgesCache(t *testing.T) {
	svc := newTestService(t)
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "cached"}}
	addMockProvider(svc, "only", p, ProviderOptions{})

	req := basicRequest()
	if _, err := svc.CompleteWithFallback(context.Background(), req); err != nil {
		t.Fatalf("CompleteWithFallback: %v", err)
	}
	if _, ok := svc.cache.Get(respcache.Key(req)); !ok {
		t.Fatal("expected response to be cached before reset")
	}

	if err := svc.EmergencyCircuitControl(EmergencyResetAll); err != nil {
		t.Fatalf("EmergencyCircuitControl: %v", err)
	}
	if _, ok := svc.cache.Get(respcache.Key(req)); ok {
		t.Fatal("expected cache to be purged by EmergencyResetAll")
	}
}
