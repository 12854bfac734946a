package config

import (
	"fmt"
	"os"
	"strings"
)

// resolveSecretRef resolves an indirect secret reference in a config
// value. Supported forms:
//
//	env:NAME    read from the NAME environment variable
//	file:PATH   read from PATH, trailing whitespace trimmed
//
// Any other value is returned as-is, so inline keys keep working.
func resolveSecretRef(value string) (string, error) {
	switch {
	case strings.HasPrefix(value, "env:"):
		name := strings.TrimPrefix(value, "env:")
		resolved := os.Getenv(name)
		if resolved == "" {
			return "", fmt.Errorf("secret environment variable %q is not set", name)
		}
		return resolved, nil

	case strings.HasPrefix(value, "file:"):
		path := strings.TrimPrefix(value, "file:")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read secret file %q: %w", path, err)
		}
		resolved := strings.TrimRight(string(data), "\r\n \t")
		if resolved == "" {
			return "", fmt.Errorf("secret file %q is empty", path)
		}
		return resolved, nil
	}

	return value, nil
}

// resolveSecrets resolves every secret reference in the config. API keys
// may be given inline, via env:NAME, or via file:PATH.
func resolveSecrets(cfg *Config) error {
	for i := range cfg.Backends {
		resolved, err := resolveSecretRef(cfg.Backends[i].APIKey)
		if err != nil {
			return fmt.Errorf("backend %q api_key: %w", cfg.Backends[i].Name, err)
		}
		cfg.Backends[i].APIKey = resolved
	}

	for i, key := range cfg.Server.APIKeys {
		resolved, err := resolveSecretRef(key)
		if err != nil {
			return fmt.Errorf("server api_keys[%d]: %w", i, err)
		}
		cfg.Server.APIKeys[i] = resolved
	}

	return nil
}
