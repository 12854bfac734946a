package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultListenAddress   = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 90 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20 // 1 MiB
	DefaultShutdownTimeout = 15 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "relay"
	DefaultMetricsPath      = "/metrics"

	DefaultRequestTimeout = 120 * time.Second

	DefaultBackendTimeout    = 60 * time.Second
	DefaultBackendMaxRetries = 2

	DefaultRateLimitCapacity   = 10
	DefaultRateLimitRefillRate = 5.0

	DefaultCredentialStore = "file"
	DefaultMinBalance      = 0.01
)

// ApplyDefaults fills unset fields with default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Routing.RequestTimeout == 0 {
		cfg.Routing.RequestTimeout = DefaultRequestTimeout
	}

	for i := range cfg.Backends {
		applyBackendDefaults(&cfg.Backends[i])
	}
}

func applyBackendDefaults(b *BackendConfig) {
	if b.Type == "" {
		b.Type = BackendTypeOpenAICompatible
	}
	if b.Timeout == 0 {
		b.Timeout = DefaultBackendTimeout
	}
	if b.MaxRetries == 0 {
		b.MaxRetries = DefaultBackendMaxRetries
	}
	if b.Model.Name == "" {
		b.Model.Name = b.Model.ID
	}
	if b.RateLimit.Capacity == 0 {
		b.RateLimit.Capacity = DefaultRateLimitCapacity
	}
	if b.RateLimit.RefillRate == 0 {
		b.RateLimit.RefillRate = DefaultRateLimitRefillRate
	}
	if b.Type == BackendTypeSession {
		if b.Credentials.Store == "" {
			b.Credentials.Store = DefaultCredentialStore
		}
		if b.Credentials.MinBalance == 0 {
			b.Credentials.MinBalance = DefaultMinBalance
		}
	}
}
