package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/relay/pkg/config"
)

// Collector owns every Prometheus metric relay exposes and implements
// the metric sink interfaces of the router, the rate limiter, and the
// credential pool. A disabled collector is safe to use; every method
// becomes a no-op.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	streamChunks    *prometheus.CounterVec
	rateLimitWait   *prometheus.HistogramVec

	credentialsActive  *prometheus.GaugeVec
	credentialsBlocked *prometheus.GaugeVec
	mintsTotal         *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics. If registry
// is nil a fresh one is used.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = config.DefaultMetricsNamespace
	}

	durationBuckets := cfg.RequestDurationBuckets
	if len(durationBuckets) == 0 {
		// Latencies of upstream LLM calls: hundreds of ms to tens of
		// seconds.
		durationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0}
	}

	c := &Collector{
		enabled:  cfg.Enabled,
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "requests_total",
			Help:      "Completion requests by backend, model, and outcome.",
		}, []string{"backend", "model", "outcome"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "request_duration_seconds",
			Help:      "Completion request duration by backend and model.",
			Buckets:   durationBuckets,
		}, []string{"backend", "model"}),

		streamChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "stream_chunks_total",
			Help:      "Canonical stream chunks emitted, by backend.",
		}, []string{"backend"}),

		rateLimitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent blocked on the per-backend rate limiter.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0},
		}, []string{"backend"}),

		credentialsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "credentials_active",
			Help:      "Active credentials in the pool, by backend.",
		}, []string{"backend"}),

		credentialsBlocked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "credentials_blocked",
			Help:      "Blocked credential codes, by backend.",
		}, []string{"backend"}),

		mintsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "credential_mints_total",
			Help:      "Credential mint attempts by backend and outcome.",
		}, []string{"backend", "outcome"}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.streamChunks,
		c.rateLimitWait,
		c.credentialsActive,
		c.credentialsBlocked,
		c.mintsTotal,
	)

	return c
}

// RecordRequest records one completed (or failed) routed request.
func (c *Collector) RecordRequest(backend, model, outcome string, duration time.Duration) {
	if !c.enabled {
		return
	}
	c.requestsTotal.WithLabelValues(backend, model, outcome).Inc()
	c.requestDuration.WithLabelValues(backend, model).Observe(duration.Seconds())
}

// RecordStreamChunk counts one emitted canonical chunk.
func (c *Collector) RecordStreamChunk(backend string) {
	if !c.enabled {
		return
	}
	c.streamChunks.WithLabelValues(backend).Inc()
}

// ObserveRateLimitWait records time spent blocked on a backend's limiter.
func (c *Collector) ObserveRateLimitWait(backend string, wait time.Duration) {
	if !c.enabled {
		return
	}
	c.rateLimitWait.WithLabelValues(backend).Observe(wait.Seconds())
}

// SetCredentialCounts publishes a pool's current active/blocked sizes.
func (c *Collector) SetCredentialCounts(backend string, active, blocked int) {
	if !c.enabled {
		return
	}
	c.credentialsActive.WithLabelValues(backend).Set(float64(active))
	c.credentialsBlocked.WithLabelValues(backend).Set(float64(blocked))
}

// RecordMint counts one mint attempt ("success", "blocked", "error").
func (c *Collector) RecordMint(backend, outcome string) {
	if !c.enabled {
		return
	}
	c.mintsTotal.WithLabelValues(backend, outcome).Inc()
}

// Handler returns the Prometheus scrape handler for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
