package sms

import (
	"context"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER - Token Bucket implementation
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter implements the Token Bucket algorithm to control the request rate
// against the records service.
type RateLimiter struct {
	mu sync.Mutex

	maxTokens   float64
	refillRate  float64 // tokens per second
	tokens      float64
	lastRefill  time.Time
	waitTimeout time.Duration
	pausedUntil time.Time // set by a 429 response

	now func() time.Time
}

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables limiting.
	RequestsPerSecond float64

	// BurstSize is the bucket capacity.
	BurstSize int

	// WaitTimeout is the maximum time Wait blocks for a token.
	WaitTimeout time.Duration
}

// DefaultRateLimiterConfig returns defaults suited to a small records service.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 20,
		BurstSize:         10,
		WaitTimeout:       10 * time.Second,
	}
}

// NewRateLimiter creates a new RateLimiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	burst := config.BurstSize
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		maxTokens:   float64(burst),
		refillRate:  config.RequestsPerSecond,
		tokens:      float64(burst),
		waitTimeout: config.WaitTimeout,
		now:         time.Now,
	}
	rl.lastRefill = rl.now()
	return rl
}

// Enabled reports whether the limiter restricts anything.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.refillRate > 0
}

// Wait blocks until a token is available, ctx is done, or WaitTimeout passes.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if !rl.Enabled() {
		return nil
	}

	var deadline time.Time
	if rl.waitTimeout > 0 {
		deadline = rl.now().Add(rl.waitTimeout)
	}

	for {
		wait, ok := rl.tryAcquire()
		if ok {
			return nil
		}
		if !deadline.IsZero() && rl.now().Add(wait).After(deadline) {
			return &RateLimitError{RetryAfter: wait, Local: true}
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// TryAllow takes a token without blocking.
func (rl *RateLimiter) TryAllow() bool {
	if !rl.Enabled() {
		return true
	}
	_, ok := rl.tryAcquire()
	return ok
}

func (rl *RateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Before(rl.pausedUntil) {
		return rl.pausedUntil.Sub(now), false
	}

	rl.refillLocked(now)
	if rl.tokens < 1 {
		need := 1 - rl.tokens
		return time.Duration(need / rl.refillRate * float64(time.Second)), false
	}
	rl.tokens--
	return 0, true
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens = min(rl.tokens+elapsed*rl.refillRate, rl.maxTokens)
	rl.lastRefill = now
}

// RecordRateLimitHit empties the bucket and pauses for retryAfter after the
// service answered 429.
func (rl *RateLimiter) RecordRateLimitHit(retryAfter time.Duration) {
	if !rl.Enabled() {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.tokens = 0
	rl.lastRefill = now
	if retryAfter > 0 {
		rl.pausedUntil = now.Add(retryAfter)
	}
}

// RateLimiterStatus is a point-in-time view of the bucket.
type RateLimiterStatus struct {
	Enabled         bool      `json:"enabled"`
	AvailableTokens float64   `json:"available_tokens"`
	MaxTokens       float64   `json:"max_tokens"`
	PausedUntil     time.Time `json:"paused_until,omitempty"`
}

// Status returns the current status of the rate limiter.
func (rl *RateLimiter) Status() RateLimiterStatus {
	if !rl.Enabled() {
		return RateLimiterStatus{}
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(rl.now())

	return RateLimiterStatus{
		Enabled:         true,
		AvailableTokens: rl.tokens,
		MaxTokens:       rl.maxTokens,
		PausedUntil:     rl.pausedUntil,
	}
}

// Reset refills the bucket and lifts any pause.
func (rl *RateLimiter) Reset() {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = rl.maxTokens
	rl.lastRefill = rl.now()
	rl.pausedUntil = time.Time{}
}
