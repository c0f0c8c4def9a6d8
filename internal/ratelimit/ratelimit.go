// Package ratelimit bounds concurrent provider calls and enforces a minimum
// interval between requests to the same provider.
//
// Grounded on the RateLimiter type backing each provider's HTTP calls in the
// orchestration service this system is modeled on: a counting semaphore caps
// concurrency, and a tracked last-request timestamp enforces pacing even
// when a permit is immediately available.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds concurrent calls to MaxConcurrent and enforces MinInterval
// between the start of consecutive calls. Safe for concurrent use.
type Limiter struct {
	sem          *semaphore.Weighted
	minInterval  time.Duration
	mu           sync.Mutex
	lastRequest  time.Time
}

// Config tunes a [Limiter].
type Config struct {
	// MaxConcurrent is the maximum number of in-flight calls. Must be > 0.
	MaxConcurrent int

	// MinInterval is the minimum spacing enforced between the start of
	// consecutive calls, regardless of concurrency headroom.
	MinInterval time.Duration
}

// New creates a [Limiter] from cfg.
func New(cfg Config) *Limiter {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		minInterval: cfg.MinInterval,
		lastRequest: time.Now().Add(-time.Minute),
	}
}

// Release is returned by Acquire and must be called exactly once to give up
// the held concurrency slot.
type Release func()

// Acquire blocks until a concurrency slot is available and the minimum
// interval since the previous request has elapsed, or ctx is cancelled.
// The caller must invoke the returned Release when the call completes.
func (l *Limiter) Acquire(ctx context.Context) (Release, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("ratelimit: acquire: %w", err)
	}

	l.mu.Lock()
	elapsed := time.Since(l.lastRequest)
	var wait time.Duration
	if elapsed < l.minInterval {
		wait = l.minInterval - elapsed
	}
	l.lastRequest = time.Now().Add(wait)
	l.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			l.sem.Release(1)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.sem.Release(1) })
	}, nil
}
