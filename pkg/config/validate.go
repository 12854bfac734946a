package config

import (
	"fmt"
	"strings"
)

// Validate checks a fully defaulted configuration for consistency.
// It collects every problem it finds rather than stopping at the first.
func Validate(cfg *Config) error {
	var problems []string

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unknown format %q", cfg.Logging.Format))
	}

	if cfg.Routing.RequestTimeout <= 0 {
		problems = append(problems, "routing.request_timeout: must be positive")
	}

	if len(cfg.Backends) == 0 {
		problems = append(problems, "backends: at least one backend is required")
	}

	names := make(map[string]bool, len(cfg.Backends))
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		prefix := fmt.Sprintf("backends[%d]", i)

		if b.Name == "" {
			problems = append(problems, prefix+".name: required")
		} else if names[b.Name] {
			problems = append(problems, fmt.Sprintf("%s.name: duplicate backend name %q", prefix, b.Name))
		}
		names[b.Name] = true

		switch b.Type {
		case BackendTypeOpenAICompatible, BackendTypeSession:
		default:
			problems = append(problems, fmt.Sprintf("%s.type: unknown type %q", prefix, b.Type))
		}

		if b.BaseURL == "" {
			problems = append(problems, prefix+".base_url: required")
		}
		if b.Model.ID == "" {
			problems = append(problems, prefix+".model.id: required")
		}
		if b.RateLimit.Capacity < 0 {
			problems = append(problems, prefix+".rate_limit.capacity: must not be negative")
		}
		if b.RateLimit.RefillRate < 0 {
			problems = append(problems, prefix+".rate_limit.refill_rate: must not be negative")
		}

		if b.Type == BackendTypeSession {
			switch b.Credentials.Store {
			case "file", "sqlite":
			default:
				problems = append(problems, fmt.Sprintf("%s.credentials.store: unknown store %q", prefix, b.Credentials.Store))
			}
			if b.Credentials.Path == "" {
				problems = append(problems, prefix+".credentials.path: required for session backends")
			}
			if b.Credentials.MinBalance < 0 {
				problems = append(problems, prefix+".credentials.min_balance: must not be negative")
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
