// Package config loads, defaults, validates, and watches relay's YAML
// configuration.
//
// Loading follows a fixed sequence: parse YAML, apply defaults, apply
// RELAY_* environment overrides, validate. Validation collects every
// problem before failing so a misconfigured file is fixed in one pass.
//
// The Watcher observes the config file (through its parent directory, so
// atomic renames are seen) and hands each valid new configuration to the
// caller, which rebuilds the registry from it.
package config
