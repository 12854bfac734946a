// Relay is an OpenAI-compatible completion gateway.
//
// It exposes the OpenAI Chat Completions API and routes each request to
// one of the configured upstream backends, providing:
//   - Model-based routing across redundant backends
//   - Per-backend rate limiting and retry
//   - Credential pool management with balance tracking
//   - Stream normalization to canonical delta chunks
//
// Usage:
//
//	# Start the gateway with default configuration
//	relay run
//
//	# Start with a custom configuration file
//	relay run --config /path/to/config.yaml
//
//	# Validate a configuration file
//	relay validate
//
//	# Show version information
//	relay version
package main

func main() {
	Execute()
}
