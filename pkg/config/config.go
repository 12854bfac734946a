package config

import "time"

// Config is the root configuration for relay.
type Config struct {
	// Server configures the HTTP front door.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`

	// Routing configures the completion router.
	Routing RoutingConfig `yaml:"routing"`

	// Backends lists every upstream backend to register.
	Backends []BackendConfig `yaml:"backends"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	// ListenAddress is the address to bind (e.g., ":8080").
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Streaming responses disable it per-request.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxHeaderBytes limits request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// APIKeys lists the accepted client API keys for the completion
	// surface. Empty disables inbound authentication.
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`

	// Path is the scrape endpoint path.
	Path string `yaml:"path"`

	// RequestDurationBuckets overrides the latency histogram buckets.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// RoutingConfig configures the completion router.
type RoutingConfig struct {
	// RequestTimeout is the per-request deadline for buffered and
	// streamed completions.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// OwnerPriority orders the model catalog: models owned by earlier
	// entries sort first.
	OwnerPriority []string `yaml:"owner_priority"`

	// TokenRatios overrides the characters-per-token ratio used to
	// estimate usage for backends that do not report it, keyed by model
	// id or model id prefix.
	TokenRatios map[string]float64 `yaml:"token_ratios"`
}

// ModelConfig declares the model one backend serves.
type ModelConfig struct {
	// ID is the routing key callers use. Required.
	ID string `yaml:"id"`

	// Name is the display name (defaults to ID).
	Name string `yaml:"name"`

	// Description is a short human-readable description.
	Description string `yaml:"description"`

	// ContextWindow is the context window size in tokens.
	ContextWindow int `yaml:"context_window"`

	// OwnedBy is the declared author or owning organization.
	OwnedBy string `yaml:"owned_by"`
}

// RateLimitConfig configures a backend's outbound token bucket.
type RateLimitConfig struct {
	// Capacity is the burst size (tokens).
	Capacity int64 `yaml:"capacity"`

	// RefillRate is the sustained rate in tokens per second.
	RefillRate float64 `yaml:"refill_rate"`
}

// CredentialConfig configures the credential pool of a
// session-authenticated backend.
type CredentialConfig struct {
	// Store selects the persistence backend ("file" or "sqlite").
	Store string `yaml:"store"`

	// Path is the state file or database path.
	Path string `yaml:"path"`

	// MinBalance is the threshold below which a credential is blocked.
	MinBalance float64 `yaml:"min_balance"`

	// RefreshSchedule is a cron expression for periodic balance
	// re-query; empty disables refreshing.
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// BackendConfig configures one upstream backend adapter.
type BackendConfig struct {
	// Name identifies this backend instance, unique across the config.
	Name string `yaml:"name"`

	// Type selects the adapter ("openai-compatible" or "session").
	Type string `yaml:"type"`

	// BaseURL is the upstream API base URL.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates openai-compatible backends.
	APIKey string `yaml:"api_key"`

	// Model is the model this backend serves.
	Model ModelConfig `yaml:"model"`

	// Streaming declares streaming support (default true).
	Streaming *bool `yaml:"streaming"`

	// Timeout is the upstream HTTP timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the adapter's own retry budget against this one
	// backend (distinct from the router's re-selection).
	MaxRetries int `yaml:"max_retries"`

	// RateLimit throttles outbound calls to this backend.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Credentials configures the credential pool for session backends.
	Credentials CredentialConfig `yaml:"credentials"`
}

// SupportsStreaming resolves the Streaming flag with its default.
func (b *BackendConfig) SupportsStreaming() bool {
	if b.Streaming == nil {
		return true
	}
	return *b.Streaming
}

// Backend type constants.
const (
	BackendTypeOpenAICompatible = "openai-compatible"
	BackendTypeSession          = "session"
)
