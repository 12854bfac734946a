package ratelimit

import (
	"context"
	"time"
)

// Limiter is the blocking per-backend throttle adapters call before every
// outbound request. It wraps a TokenBucket and, when the bucket is empty,
// suspends the caller for exactly the time it takes one token to accrue
// instead of failing.
//
// Acquire never returns a rate-limit error; its only failure mode is
// context cancellation. Each backend owns an independent Limiter, so one
// backend's throttling cannot starve another's.
type Limiter struct {
	bucket   *TokenBucket
	observer WaitObserver
}

// WaitObserver receives the time a caller spent waiting on the limiter.
// Used to feed the telemetry wait histogram; may be nil.
type WaitObserver interface {
	ObserveRateLimitWait(backend string, wait time.Duration)
}

// NewLimiter creates a blocking limiter with the given burst capacity and
// sustained refill rate (tokens per second).
func NewLimiter(capacity int64, refillRate float64) *Limiter {
	return &Limiter{
		bucket: NewTokenBucket(capacity, refillRate),
	}
}

// SetObserver installs a wait observer. Must be called before the limiter
// is shared across goroutines.
func (l *Limiter) SetObserver(obs WaitObserver) {
	l.observer = obs
}

// Acquire consumes one token, blocking until one is available or ctx is
// cancelled.
//
// The wait is computed once per loop iteration from bucket math, so the
// loop runs a small bounded number of times even under contention: after
// sleeping the computed interval at least one token has accrued, and a
// failed Take means another caller consumed it, which shortens the next
// computed wait accordingly.
func (l *Limiter) Acquire(ctx context.Context, backend string) error {
	var waited time.Duration

	for {
		if l.bucket.Take() {
			if l.observer != nil && waited > 0 {
				l.observer.ObserveRateLimitWait(backend, waited)
			}
			return nil
		}

		wait := l.bucket.NextAvailable()
		if wait <= 0 {
			// Token appeared between Take and NextAvailable; retry
			// immediately.
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			waited += wait
		}
	}
}

// Remaining reports the tokens currently available. Intended for tests
// and introspection endpoints.
func (l *Limiter) Remaining() int64 {
	return l.bucket.Remaining()
}
