package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quillmind/orchestrator/pkg/orchestrator"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm/mock"
)

func newTestHandler(t *testing.T) (http.Handler, *mock.Provider) {
	t.Helper()
	svc, err := orchestrator.New(orchestrator.Config{MaxContextTokens: 8000, CacheMaxEntries: 100})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "hello from test"}}
	svc.AddProvider("test-provider", p, orchestrator.ProviderOptions{InputCostPerMillion: 1, OutputCostPerMillion: 1})
	return New(Deps{Service: svc}), p
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleCompleteSuccess(t *testing.T) {
	h, _ := newTestHandler(t)
	req := llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}
	rec := doJSON(t, h, http.MethodPost, "/v1/complete", req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp llm.CompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Content != "hello from test" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
}

func TestHandleCompleteRejectsEmptyMessages(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/v1/complete", llm.CompletionRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleCompleteRejectsMalformedJSON(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/complete", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestHandleBatchReturnsItemPerRequest(t *testing.T) {
	h, _ := newTestHandler(t)
	reqs := []llm.CompletionRequest{
		{Messages: []llm.Message{{Role: llm.RoleUser, Content: "one"}}},
		{Messages: []llm.Message{{Role: llm.RoleUser, Content: "two"}}},
	}
	rec := doJSON(t, h, http.MethodPost, "/v1/batch", reqs)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var items []batchItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 batch items, got %d", len(items))
	}
}

func TestHandleCostsReturnsPerProviderEstimate(t *testing.T) {
	h, _ := newTestHandler(t)
	req := llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "price this"}}}
	rec := doJSON(t, h, http.MethodGet, "/v1/costs", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var costs map[string]orchestrator.CostEstimate
	if err := json.Unmarshal(rec.Body.Bytes(), &costs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := costs["test-provider"]; !ok {
		t.Fatalf("expected an estimate for test-provider, got %v", costs)
	}
}

func TestHandleComprehensiveHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCircuitControlUnknownAction(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/circuit/not-a-real-action", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown circuit action, got %d", rec.Code)
	}
}

func TestHandleCircuitControlOpenAll(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/circuit/open_all", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthzAlwaysOK(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a generated request ID header")
	}
}
