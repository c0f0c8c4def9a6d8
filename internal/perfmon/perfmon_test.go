package perfmon

import (
	"testing"
)

func TestCompleteRecordsSuccess(t *testing.T) {
	m := New(0, DefaultThresholds())
	req := m.Start("openai", "gpt-4o")
	m.Complete(req)

	stats, ok := m.ProviderStats("openai")
	if !ok {
		t.Fatal("expected stats to exist")
	}
	if stats.TotalRequests != 1 || stats.Successes != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestFailRecordsFailureAndErrorRate(t *testing.T) {
	m := New(0, DefaultThresholds())
	for i := 0; i < 3; i++ {
		req := m.Start("claude", "claude-3-5-sonnet")
		m.Complete(req)
	}
	req := m.Start("claude", "claude-3-5-sonnet")
	m.Fail(req, "timeout")

	stats, ok := m.ProviderStats("claude")
	if !ok {
		t.Fatal("expected stats to exist")
	}
	if stats.Failures != 1 || stats.TotalRequests != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ErrorRate != 0.25 {
		t.Fatalf("ErrorRate = %v, want 0.25", stats.ErrorRate)
	}
}

func TestCacheHitExcludedFromDuration(t *testing.T) {
	m := New(0, DefaultThresholds())
	req := m.Start("openai", "gpt-4o")
	m.CacheHit(req)

	stats, ok := m.ProviderStats("openai")
	if !ok {
		t.Fatal("expected stats to exist")
	}
	if stats.CacheHits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", stats.CacheHits)
	}
	if stats.AvgDuration != 0 {
		t.Fatalf("expected cache hits to not affect AvgDuration, got %v", stats.AvgDuration)
	}
}

func TestAlertFiresOnHighErrorRate(t *testing.T) {
	m := New(0, Thresholds{MaxErrorRate: 0.4})
	for i := 0; i < 2; i++ {
		req := m.Start("openai", "gpt-4o")
		m.Complete(req)
	}
	for i := 0; i < 3; i++ {
		req := m.Start("openai", "gpt-4o")
		m.Fail(req, "server_error")
	}

	alerts := m.RecentAlerts(10)
	if len(alerts) == 0 {
		t.Fatal("expected at least one alert")
	}
	if alerts[0].Provider != "openai" {
		t.Fatalf("expected alert for openai, got %+v", alerts[0])
	}
}

func TestOverallStatsAggregatesProviders(t *testing.T) {
	m := New(0, DefaultThresholds())
	m.Complete(m.Start("openai", "gpt-4o"))
	m.Complete(m.Start("claude", "claude-3-5-sonnet"))

	overall := m.OverallStats()
	if overall.TotalRequests != 2 {
		t.Fatalf("expected 2 total requests, got %d", overall.TotalRequests)
	}
}

func TestCapacityBoundsRingBuffer(t *testing.T) {
	m := New(5, DefaultThresholds())
	for i := 0; i < 20; i++ {
		m.Complete(m.Start("openai", "gpt-4o"))
	}
	stats, ok := m.ProviderStats("openai")
	if !ok {
		t.Fatal("expected stats to exist")
	}
	if stats.TotalRequests != 5 {
		t.Fatalf("expected capacity-bounded 5 requests, got %d", stats.TotalRequests)
	}
}

func TestTrendsBucketsByHour(t *testing.T) {
	m := New(0, DefaultThresholds())
	m.Complete(m.Start("openai", "gpt-4o"))
	trends := m.Trends(1)
	if _, ok := trends["openai"]; !ok {
		t.Fatal("expected a trend entry for openai")
	}
}
