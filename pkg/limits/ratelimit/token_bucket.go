package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm used to throttle
// outbound calls to one backend.
//
// Tokens refill lazily at a constant rate based on elapsed wall-clock
// time, capped at capacity. Each outbound call consumes one token.
// The bucket never holds more than capacity tokens and never goes
// negative.
//
// # Thread Safety
//
// TokenBucket is thread-safe; refill and consumption happen atomically
// under one mutex, so concurrent callers can never over-admit.
type TokenBucket struct {
	capacity   int64     // Maximum tokens in bucket
	tokens     int64     // Current available tokens
	refillRate float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	mu         sync.Mutex
}

// NewTokenBucket creates a token bucket that starts full.
//
// Parameters:
//   - capacity: maximum burst size
//   - refillRate: tokens added per second (sustained rate)
func NewTokenBucket(capacity int64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Take attempts to consume one token. It refills based on elapsed time
// first, then reports whether a token was available and consumed.
func (tb *TokenBucket) Take() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}

	return false
}

// Remaining returns the number of tokens currently available after a
// refill.
func (tb *TokenBucket) Remaining() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// Capacity returns the maximum bucket capacity.
func (tb *TokenBucket) Capacity() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.capacity
}

// NextAvailable returns how long until one token will be available.
// Returns 0 if a token is available now.
func (tb *TokenBucket) NextAvailable() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		return 0
	}

	secondsNeeded := float64(1-tb.tokens) / tb.refillRate
	return time.Duration(secondsNeeded * float64(time.Second))
}

// refillLocked adds tokens for the wall-clock time elapsed since the last
// refill, capped at capacity. Caller must hold the lock.
//
// lastRefill only advances when at least one whole token accrued, so
// fractional progress is never discarded.
func (tb *TokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tokensToAdd := int64(elapsed.Seconds() * tb.refillRate)
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
}
