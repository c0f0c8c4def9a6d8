package respcache

import (
	"testing"

	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

func TestSetAndGetRoundTrip(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp := llm.CompletionResponse{Content: "hello"}
	c.Set("k", resp, false)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Content != "hello" {
		t.Fatalf("unexpected content: %q", got.Content)
	}
}

func TestGetMissingKey(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected a cache miss for an unset key")
	}
}

func TestDeletePurge(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Set("a", llm.CompletionResponse{Content: "a"}, false)
	c.Set("b", llm.CompletionResponse{Content: "b"}, false)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("expected b to still be present")
	}

	c.Purge()
	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be gone after Purge")
	}
}

func TestKeyIsDeterministicAndContentSensitive(t *testing.T) {
	req1 := llm.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
	}
	req2 := req1
	req2.Messages = []llm.Message{{Role: llm.RoleUser, Content: "hello"}}

	if Key(req1) != Key(req2) {
		t.Fatal("expected identical requests to produce the same key")
	}

	req3 := req1
	req3.Messages = []llm.Message{{Role: llm.RoleUser, Content: "goodbye"}}
	if Key(req1) == Key(req3) {
		t.Fatal("expected different message content to produce different keys")
	}
}

func TestKeyDistinguishesRole(t *testing.T) {
	base := llm.CompletionRequest{Model: "gpt-4o"}
	userReq := base
	userReq.Messages = []llm.Message{{Role: llm.RoleUser, Content: "x"}}
	systemReq := base
	systemReq.Messages = []llm.Message{{Role: llm.RoleSystem, Content: "x"}}

	if Key(userReq) == Key(systemReq) {
		t.Fatal("expected role to participate in the cache key")
	}
}

func TestSensitiveTTLShorterThanDefault(t *testing.T) {
	if SensitiveTTL >= DefaultTTL {
		t.Fatalf("expected SensitiveTTL (%v) to be shorter than DefaultTTL (%v)", SensitiveTTL, DefaultTTL)
	}
}

func TestNewDefaultsNonPositiveMaxSize(t *testing.T) {
	c, err := New(0)
	if err != nil {
		t.Fatalf("New(0): %v", err)
	}
	c.Set("k", llm.CompletionResponse{Content: "v"}, false)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected cache to function with a defaulted max size")
	}
}
