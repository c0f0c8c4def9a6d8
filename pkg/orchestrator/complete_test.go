package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm/mock"
)

func basicRequest() llm.CompletionRequest {
	return llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello there"}}}
}

func TestCompleteWithFallbackSucceedsOnFirstProvider(t *testing.T) {
	svc := newTestService(t)
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "hi"}}
	addMockProvider(svc, "only", p, ProviderOptions{})

	resp, err := svc.CompleteWithFallback(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("CompleteWithFallback: %v", err)
	}
	if resp.Content != "hi" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if len(p.CompleteCalls) != 1 {
		t.Fatalf("expected exactly 1 call, got %d", len(p.CompleteCalls))
	}
}

func TestCompleteWithFallbackFallsBackOnFailure(t *testing.T) {
	svc := newTestService(t)
	failing := &mock.Provider{CompleteErr: errors.New("boom")}
	working := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "recovered"}}
	addMockProvider(svc, "failing", failing, ProviderOptions{InputCostPerMillion: 1, OutputCostPerMillion: 1})
	addMockProvider(svc, "working", working, ProviderOptions{InputCostPerMillion: 1, OutputCostPerMillion: 1})

	resp, err := svc.CompleteWithFallback(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("CompleteWithFallback: %v", err)
	}
	if resp.Content != "recovered" {
		t.Fatalf("expected fallback response, got %q", resp.Content)
	}
}

func TestCompleteWithFallbackReturnsErrorWhenAllFail(t *testing.T) {
	svc := newTestService(t)
	addMockProvider(svc, "a", &mock.Provider{CompleteErr: errors.New("a failed")}, ProviderOptions{})
	addMockProvider(svc, "b", &mock.Provider{CompleteErr: errors.New("b failed")}, ProviderOptions{})

	_, err := svc.CompleteWithFallback(context.Background(), basicRequest())
	if err == nil {
		t.Fatal("expected an error when every provider fails")
	}
}

func TestCompleteWithFallbackNoProvidersRegistered(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CompleteWithFallback(context.Background(), basicRequest())
	if !errors.Is(err, ErrNoProvidersAvailable) {
		t.Fatalf("expected ErrNoProvidersAvailable, got %v", err)
	}
}

func TestCompleteWithFallbackServesFromCache(t *testing.T) {
	svc := newTestService(t)
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "cached"}}
	addMockProvider(svc, "only", p, ProviderOptions{})

	req := basicRequest()
	if _, err := svc.CompleteWithFallback(context.Background(), req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := svc.CompleteWithFallback(context.Background(), req); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(p.CompleteCalls) != 1 {
		t.Fatalf("expected provider called once, cache should have served the second request; got %d calls", len(p.CompleteCalls))
	}
}

func TestCompleteWithFallbackRejectsSensitiveContent(t *testing.T) {
	svc, err := New(Config{EnableContentFiltering: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addMockProvider(svc, "only", &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}, ProviderOptions{})

	req := llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "api_key: sk-leak-me-now"}}}
	_, err = svc.CompleteWithFallback(context.Background(), req)
	if err == nil {
		t.Fatal("expected sensitive-content rejection")
	}
}

func TestBatchCompleteReturnsResultPerRequest(t *testing.T) {
	svc := newTestService(t)
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	addMockProvider(svc, "only", p, ProviderOptions{})

	reqs := make([]llm.CompletionRequest, 5)
	for i := range reqs {
		reqs[i] = llm.CompletionRequest{
			Model:    "m",
			Messages: []llm.Message{{Role: llm.RoleUser, Content: "distinct message"}},
		}
	}
	results := svc.BatchComplete(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("result %d: unexpected error %v", i, r.Err)
		}
	}
}

func TestStreamCompletionFallsBackOnStartFailure(t *testing.T) {
	svc := newTestService(t)
	failing := &mock.Provider{StreamErr: errors.New("start failed")}
	working := &mock.Provider{StreamChunks: []llm.Chunk{{Text: "chunk1", FinishReason: "stop"}}}
	addMockProvider(svc, "failing", failing, ProviderOptions{InputCostPerMillion: 1, OutputCostPerMillion: 1})
	addMockProvider(svc, "working", working, ProviderOptions{InputCostPerMillion: 1, OutputCostPerMillion: 1})

	ch, err := svc.StreamCompletion(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	var got []llm.Chunk
	for c := range ch {
		got = append(got, c)
	}
	if len(got) != 1 || got[0].Text != "chunk1" {
		t.Fatalf("expected chunk from fallback provider, got %v", got)
	}
}
