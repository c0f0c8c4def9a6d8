package tokenize

import (
	"sort"
	"testing"
)

func TestCountTextScalesWithLength(t *testing.T) {
	short := CountText("hi")
	long := CountText("a reasonably long sentence with many more characters in it")
	if long <= short {
		t.Fatalf("expected longer text to estimate more tokens: short=%d long=%d", short, long)
	}
}

func TestLimitsForKnownPrefix(t *testing.T) {
	limits := LimitsFor("gpt-4o-2024-08-06")
	if limits.ContextWindow != 128_000 {
		t.Fatalf("expected gpt-4o family context window, got %+v", limits)
	}
}

func TestLimitsForUnknownModelFallsBackToDefault(t *testing.T) {
	limits := LimitsFor("some-unreleased-model")
	if limits != defaultLimits {
		t.Fatalf("expected defaultLimits for an unknown model, got %+v", limits)
	}
}

func TestKnownModelsIsSortedAndNonEmpty(t *testing.T) {
	models := KnownModels()
	if len(models) == 0 {
		t.Fatal("expected a non-empty known-models list")
	}
	if !sort.StringsAreSorted(models) {
		t.Fatal("expected KnownModels to return a sorted slice")
	}
}
