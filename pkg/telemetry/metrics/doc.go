// Package metrics exposes relay's Prometheus metrics: routed request
// counts and latencies, stream chunk counts, rate-limiter wait time, and
// credential pool state. The Collector implements the sink interfaces
// declared by the packages it observes, so those packages never import
// Prometheus directly.
package metrics
