package breaker

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensOnConsecutiveFailures(t *testing.T) {
	cfg := Config{FailureThresholdCount: 3, FailureThresholdRatio: 0.99, OpenDuration: time.Hour, MaxOpenDuration: time.Hour}
	cb := New(cfg)

	failErr := errors.New("boom")
	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return failErr }); !errors.Is(err, failErr) {
			t.Fatalf("call %d: expected passthrough error, got %v", i, err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected StateOpen after %d failures, got %v", cfg.FailureThresholdCount, cb.State())
	}

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenClosesOnSuccess(t *testing.T) {
	cfg := Config{FailureThresholdCount: 1, FailureThresholdRatio: 0.99, OpenDuration: 10 * time.Millisecond, MaxOpenDuration: time.Second, HalfOpenProbeCount: 1}
	cb := New(cfg)

	_ = cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatal("expected open after first failure")
	}

	time.Sleep(20 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatal("expected half-open after OpenDuration elapses")
	}

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe success, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.State())
	}
}

func TestCircuitBreakerDoublesBackoffOnReopen(t *testing.T) {
	cfg := Config{FailureThresholdCount: 1, FailureThresholdRatio: 0.99, OpenDuration: 10 * time.Millisecond, MaxOpenDuration: time.Second, HalfOpenProbeCount: 1}
	cb := New(cfg)

	_ = cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(func() error { return errors.New("boom again") }) // fails the half-open probe

	if cb.openDuration <= cfg.OpenDuration {
		t.Fatalf("expected openDuration to double past %v, got %v", cfg.OpenDuration, cb.openDuration)
	}
}

func TestCircuitBreakerOpensOnFailureRatio(t *testing.T) {
	cfg := Config{FailureThresholdCount: 100, FailureThresholdRatio: 0.5, OpenDuration: time.Hour, MaxOpenDuration: time.Hour}
	cb := New(cfg)

	for i := 0; i < 10; i++ {
		var err error
		if i%2 == 0 {
			err = errors.New("boom")
		}
		_ = cb.Execute(func() error { return err })
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open due to 50%% failure ratio, got %v", cb.State())
	}
}

func TestReset(t *testing.T) {
	cfg := Config{FailureThresholdCount: 1, FailureThresholdRatio: 0.99, OpenDuration: time.Hour, MaxOpenDuration: time.Hour}
	cb := New(cfg)
	_ = cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatal("expected closed after Reset")
	}
}

func TestOpenForcesOpenState(t *testing.T) {
	cb := New(Default("test"))
	cb.Open()
	if cb.State() != StateOpen {
		t.Fatal("expected Open() to force StateOpen")
	}
}

func TestConfigForRoutesByProviderClass(t *testing.T) {
	if got := ConfigFor("claude").FailureThresholdCount; got != Conservative("claude").FailureThresholdCount {
		t.Fatalf("expected claude to use Conservative profile")
	}
	if got := ConfigFor("openai").FailureThresholdCount; got != Default("openai").FailureThresholdCount {
		t.Fatalf("expected openai to use Default profile")
	}
	if got := ConfigFor("groq").FailureThresholdCount; got != Aggressive("groq").FailureThresholdCount {
		t.Fatalf("expected unknown providers to use Aggressive profile")
	}
}

func TestFallbackGroupTriesNextOnFailure(t *testing.T) {
	fg := NewFallbackGroup[string]("primary", "primary", Default("primary"))
	fg.AddFallback("secondary", "secondary", Default("secondary"))

	calls := map[string]int{}
	err := fg.Execute(func(name string) error {
		calls[name]++
		if name == "primary" {
			return errors.New("primary down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if calls["primary"] != 1 || calls["secondary"] != 1 {
		t.Fatalf("unexpected call counts: %+v", calls)
	}
}

func TestFallbackGroupAllFail(t *testing.T) {
	fg := NewFallbackGroup[string]("only", "only", Default("only"))
	err := fg.Execute(func(string) error { return errors.New("down") })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("expected ErrAllFailed, got %v", err)
	}
}

func TestExecuteWithResult(t *testing.T) {
	fg := NewFallbackGroup[string]("a", "a", Default("a"))
	fg.AddFallback("b", "b", Default("b"))

	result, err := ExecuteWithResult[string, int](fg, func(name string) (int, error) {
		if name == "a" {
			return 0, errors.New("a failed")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if result != 42 {
		t.Fatalf("result = %d, want 42", result)
	}
}

func TestNewFallbackGroupFromBreakersReusesPersistentBreakers(t *testing.T) {
	cbA := New(Default("a"))
	cbB := New(Default("b"))

	// Trip A's breaker ahead of time.
	cfgTrip := Config{FailureThresholdCount: 1}
	cbA = New(cfgTrip)
	_ = cbA.Execute(func() error { return errors.New("boom") })

	fg := NewFallbackGroupFromBreakers(
		Entry[string]{Name: "a", Value: "a", Breaker: cbA},
		Entry[string]{Name: "b", Value: "b", Breaker: cbB},
	)

	var called string
	err := fg.Execute(func(name string) error {
		called = name
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "b" {
		t.Fatalf("expected tripped breaker 'a' to be skipped in favor of 'b', got %q", called)
	}
}
