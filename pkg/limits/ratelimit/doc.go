// Package ratelimit provides the per-backend outbound throttle.
//
// Each backend adapter owns one Limiter, a blocking token bucket: when a
// token is available the call proceeds immediately, otherwise the caller
// is suspended for the exact time one token takes to accrue and then
// retried in a bounded loop. Throttling is therefore absorbed as latency,
// never surfaced as an error.
//
// Buckets refill lazily from elapsed wall-clock time, allow bursts up to
// capacity, and are never shared between backends.
package ratelimit
