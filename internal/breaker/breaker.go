// Package breaker provides circuit breaker and provider failover primitives
// for the orchestrator.
//
// The central type is [CircuitBreaker], a three-state breaker
// (closed → open → half-open) that protects callers from cascading provider
// failures. Three pre-named configurations — Conservative, Default, and
// Aggressive — tune the thresholds per provider class. [FallbackGroup]
// composes multiple instances of any provider type with per-entry circuit
// breakers so a failing primary is automatically bypassed in favor of
// healthy fallbacks.
//
// All types are safe for concurrent use.
package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quillmind/orchestrator/internal/sanitize"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// in the open state and retry_after has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed is the normal operating state — all calls are forwarded.
	StateClosed State = iota

	// StateOpen indicates the breaker has tripped. Calls are rejected
	// immediately with [ErrCircuitOpen] until retry_after elapses.
	StateOpen

	// StateHalfOpen is the probe state entered after open_duration. A
	// limited number of concurrent probe calls are allowed through; any
	// success closes the breaker, any failure re-opens it with the
	// open_duration doubled (capped).
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds tuning knobs for a [CircuitBreaker].
type Config struct {
	// Name is a human-readable label used in log messages.
	Name string

	// FailureThresholdCount is the number of consecutive failures in the
	// closed state before the breaker opens.
	FailureThresholdCount int

	// FailureThresholdRatio opens the breaker once the failure ratio over
	// the rolling window of the most recent call outcomes (at most
	// windowSize) reaches this fraction, even if the consecutive-failure
	// count hasn't tripped.
	FailureThresholdRatio float64

	// OpenDuration is how long the breaker stays open before transitioning
	// to half-open. Doubled (up to MaxOpenDuration) on every re-open from
	// half-open.
	OpenDuration time.Duration

	// MaxOpenDuration caps the doubling in OpenDuration.
	MaxOpenDuration time.Duration

	// HalfOpenProbeCount is the number of concurrent probe calls permitted
	// in the half-open state.
	HalfOpenProbeCount int
}

// Conservative is tuned for high-value, typically reliable providers
// (modeled on the Claude path of the system this design is based on): it
// trips on fewer failures and recovers slowly, avoiding flapping on a
// provider operators trust to usually be healthy.
func Conservative(name string) Config {
	return Config{
		Name:                  name,
		FailureThresholdCount: 3,
		FailureThresholdRatio: 0.3,
		OpenDuration:          60 * time.Second,
		MaxOpenDuration:       10 * time.Minute,
		HalfOpenProbeCount:    1,
	}
}

// Default is tuned for general-purpose providers (modeled on the OpenAI
// path): a middle ground between Conservative and Aggressive.
func Default(name string) Config {
	return Config{
		Name:                  name,
		FailureThresholdCount: 5,
		FailureThresholdRatio: 0.5,
		OpenDuration:          30 * time.Second,
		MaxOpenDuration:       5 * time.Minute,
		HalfOpenProbeCount:    2,
	}
}

// Aggressive is tuned for secondary/experimental providers: it tolerates
// more failures before tripping but also recovers faster, since these
// providers carry less traffic and a flap is cheap.
func Aggressive(name string) Config {
	return Config{
		Name:                  name,
		FailureThresholdCount: 8,
		FailureThresholdRatio: 0.7,
		OpenDuration:          15 * time.Second,
		MaxOpenDuration:       2 * time.Minute,
		HalfOpenProbeCount:    3,
	}
}

// ConfigFor returns the pre-named configuration appropriate for providerName,
// mirroring the provider-class routing of conservative/default/aggressive:
// "claude"/"anthropic" gets Conservative, "openai" gets Default, everything
// else gets Aggressive.
func ConfigFor(providerName string) Config {
	switch providerName {
	case "claude", "anthropic":
		return Conservative(providerName)
	case "openai":
		return Default(providerName)
	default:
		return Aggressive(providerName)
	}
}

// CircuitBreaker implements the three-state circuit breaker pattern with
// doubled-on-reopen backoff. It is safe for concurrent use.
type CircuitBreaker struct {
	cfg Config

	mu              sync.Mutex
	state           State
	consecutiveFail int
	window          []bool // ring of recent outcomes, true = failure
	lastFailure     time.Time
	openDuration    time.Duration
	retryAfter      time.Time
	halfOpenCalls   int
	halfOpenFails   int
}

// New creates a [CircuitBreaker] with the supplied configuration. Zero-value
// fields are replaced with sensible defaults.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThresholdCount <= 0 {
		cfg.FailureThresholdCount = 5
	}
	if cfg.FailureThresholdRatio <= 0 {
		cfg.FailureThresholdRatio = 0.5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 30 * time.Second
	}
	if cfg.MaxOpenDuration <= 0 {
		cfg.MaxOpenDuration = 5 * time.Minute
	}
	if cfg.HalfOpenProbeCount <= 0 {
		cfg.HalfOpenProbeCount = 2
	}
	return &CircuitBreaker{
		cfg:          cfg,
		state:        StateClosed,
		openDuration: cfg.OpenDuration,
	}
}

// windowSize is the rolling outcome window used for the ratio-based trip.
const windowSize = 20

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn unless retry_after has elapsed, in
// which case it transitions to half-open first. In half-open a bounded
// number of concurrent probes are permitted.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Now().After(cb.retryAfter) {
			cb.state = StateHalfOpen
			cb.halfOpenCalls = 0
			cb.halfOpenFails = 0
			slog.Info("circuit breaker transitioning to half-open", "name", cb.cfg.Name)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}

	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.cfg.HalfOpenProbeCount {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	inHalfOpen := cb.state == StateHalfOpen
	if inHalfOpen {
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.recordFailure(inHalfOpen)
	} else {
		cb.recordSuccess(inHalfOpen)
	}
	return err
}

// recordFailure handles failure accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) recordFailure(inHalfOpen bool) {
	cb.lastFailure = time.Now()
	cb.pushOutcome(true)

	if inHalfOpen {
		cb.halfOpenFails++
		cb.openWithBackoff()
		slog.Warn("circuit breaker re-opened from half-open", "name", cb.cfg.Name, "retry_after", cb.retryAfter)
		return
	}

	cb.consecutiveFail++
	if cb.consecutiveFail >= cb.cfg.FailureThresholdCount || cb.failureRatio() >= cb.cfg.FailureThresholdRatio {
		cb.openDuration = cb.cfg.OpenDuration
		cb.openWithBackoff()
		slog.Warn("circuit breaker opened", "name", cb.cfg.Name,
			"consecutive_failures", cb.consecutiveFail, "failure_ratio", cb.failureRatio())
	}
}

// openWithBackoff transitions to StateOpen with the current openDuration,
// then doubles openDuration (capped at MaxOpenDuration) for next time.
func (cb *CircuitBreaker) openWithBackoff() {
	cb.state = StateOpen
	cb.consecutiveFail = cb.cfg.FailureThresholdCount
	cb.retryAfter = time.Now().Add(cb.openDuration)
	cb.openDuration *= 2
	if cb.openDuration > cb.cfg.MaxOpenDuration {
		cb.openDuration = cb.cfg.MaxOpenDuration
	}
}

// recordSuccess handles success accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) recordSuccess(inHalfOpen bool) {
	cb.pushOutcome(false)

	if inHalfOpen {
		cb.state = StateClosed
		cb.consecutiveFail = 0
		cb.halfOpenCalls = 0
		cb.halfOpenFails = 0
		cb.openDuration = cb.cfg.OpenDuration
		slog.Info("circuit breaker closed after successful probe", "name", cb.cfg.Name)
		return
	}

	// Decay the consecutive failure count on success rather than zeroing it
	// outright, so an isolated failure amid a run of successes doesn't
	// linger at full weight.
	if cb.consecutiveFail > 0 {
		cb.consecutiveFail--
	}
}

func (cb *CircuitBreaker) pushOutcome(failed bool) {
	cb.window = append(cb.window, failed)
	if len(cb.window) > windowSize {
		cb.window = cb.window[len(cb.window)-windowSize:]
	}
}

func (cb *CircuitBreaker) failureRatio() float64 {
	if len(cb.window) == 0 {
		return 0
	}
	fails := 0
	for _, f := range cb.window {
		if f {
			fails++
		}
	}
	return float64(fails) / float64(len(cb.window))
}

// State returns the current [State] of the breaker. If the breaker is open
// and retry_after has elapsed, the returned state is [StateHalfOpen] (the
// actual transition happens on the next [Execute] call).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Now().After(cb.retryAfter) {
		return StateHalfOpen
	}
	return cb.state
}

// Reset manually forces the breaker back to [StateClosed], clearing all
// failure counters and backoff state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.consecutiveFail = 0
	cb.halfOpenCalls = 0
	cb.halfOpenFails = 0
	cb.openDuration = cb.cfg.OpenDuration
	cb.window = nil
	slog.Info("circuit breaker manually reset", "name", cb.cfg.Name)
}

// Open manually forces the breaker into [StateOpen] for OpenDuration. Used by
// emergency circuit control to pre-emptively stop traffic to a provider.
func (cb *CircuitBreaker) Open() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateOpen
	cb.retryAfter = time.Now().Add(cb.cfg.OpenDuration)
	slog.Warn("circuit breaker forced open", "name", cb.cfg.Name)
}

// --- Fallback group ---

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the
// same provider type. When the primary fails (or its circuit breaker is
// open), the next healthy fallback is tried in registration order.
//
// FallbackGroup is safe for concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
}

// Entry pairs a provider value with its name and an already-constructed
// circuit breaker, for use with [NewFallbackGroupFromBreakers].
type Entry[T any] struct {
	Name    string
	Value   T
	Breaker *CircuitBreaker
}

// NewFallbackGroupFromBreakers builds a [FallbackGroup] from entries that
// already carry their own long-lived [CircuitBreaker] instances, in the
// given order. This is the constructor callers should use when the call
// order must vary per invocation (e.g. a health/cost-based selection) while
// still accumulating breaker state across calls: build a fresh
// [FallbackGroup] per request from the same persistent breakers, reordered
// as needed, rather than constructing new breakers every time.
func NewFallbackGroupFromBreakers[T any](entries ...Entry[T]) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{entries: make([]fallbackEntry[T], len(entries))}
	for i, e := range entries {
		fg.entries[i] = fallbackEntry[T]{name: e.Name, value: e.Value, breaker: e.Breaker}
	}
	return fg
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry,
// guarded by a circuit breaker built from cfg.
func NewFallbackGroup[T any](primary T, primaryName string, cfg Config) *FallbackGroup[T] {
	cfg.Name = primaryName
	return &FallbackGroup[T]{
		entries: []fallbackEntry[T]{{name: primaryName, value: primary, breaker: New(cfg)}},
	}
}

// AddFallback appends a fallback provider guarded by its own circuit breaker
// built from cfg. Fallbacks are tried in the order they are added, after the
// primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T, cfg Config) {
	cfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{name: name, value: fallback, breaker: New(cfg)})
}

// Names returns the registration order of entry names.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Breaker returns the circuit breaker for the named entry, or nil if absent.
func (fg *FallbackGroup[T]) Breaker(name string) *CircuitBreaker {
	for i := range fg.entries {
		if fg.entries[i].name == name {
			return fg.entries[i].breaker
		}
	}
	return nil
}

// Execute tries fn against each entry in order until one succeeds.
// Circuit-breaker-open entries are skipped. Returns [ErrAllFailed] wrapped
// with the last error if every entry fails.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]
		err := entry.breaker.Execute(func() error { return fn(entry.value) })
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", entry.name, "error", sanitize.ForLogging(err.Error()))
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult tries fn against each entry in the group until one
// succeeds, returning both the result value and error. This is a
// package-level function because Go does not support method-level type
// parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", entry.name, "error", sanitize.ForLogging(err.Error()))
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
