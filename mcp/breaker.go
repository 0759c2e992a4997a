// ABOUTME: Per-server circuit breaker - stops sending requests to a failing
// ABOUTME: server for a cool-down period, with a single half-open probe.
package mcp

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker tracks consecutive failures for one server. After threshold
// consecutive failures it opens and rejects calls until the cool-down
// elapses; the first call after that is let through as a single probe
// (half-open). A probe success closes the breaker and zeroes the
// failure counter; a probe failure reopens it and restarts the
// cool-down. Recovery never skips half-open.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	probing             bool

	totalSuccesses int64
	totalFailures  int64
	totalRejected  int64
}

// BreakerMetrics is a point-in-time snapshot of breaker state.
type BreakerMetrics struct {
	State               BreakerState
	ConsecutiveFailures int
	OpenedAt            time.Time
	TotalSuccesses      int64
	TotalFailures       int64
	TotalRejected       int64
}

// NewBreaker creates a breaker using the wall clock.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return NewBreakerWithClock(threshold, cooldown, time.Now)
}

// NewBreakerWithClock creates a breaker with an injected clock, so
// time-based transitions are testable without real sleeps.
func NewBreakerWithClock(threshold int, cooldown time.Duration, now func() time.Time) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       now,
		state:     BreakerClosed,
	}
}

// Allow reports whether a call may proceed. When it returns false,
// retryAt is when the cool-down elapses. Transitioning open to
// half-open happens here: the first Allow after the cool-down admits
// exactly one probe and rejects further calls until the probe resolves.
func (b *Breaker) Allow() (ok bool, retryAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true, time.Time{}

	case BreakerOpen:
		retryAt = b.openedAt.Add(b.cooldown)
		if b.now().Before(retryAt) {
			b.totalRejected++
			return false, retryAt
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return true, time.Time{}

	default: // BreakerHalfOpen
		if b.probing {
			b.totalRejected++
			return false, b.openedAt.Add(b.cooldown)
		}
		b.probing = true
		return true, time.Time{}
	}
}

// RecordSuccess notes a successful call. A half-open probe success
// fully resets the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSuccesses++
	b.consecutiveFailures = 0
	b.probing = false
	b.state = BreakerClosed
}

// RecordFailure notes a failed call. Crossing the threshold opens the
// breaker; a half-open probe failure reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.probing = false
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.threshold && b.state == BreakerClosed {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a copy of the breaker's counters for observability.
func (b *Breaker) Snapshot() BreakerMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerMetrics{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		OpenedAt:            b.openedAt,
		TotalSuccesses:      b.totalSuccesses,
		TotalFailures:       b.totalFailures,
		TotalRejected:       b.totalRejected,
	}
}
