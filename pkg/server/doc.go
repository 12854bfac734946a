// Package server owns the HTTP listener lifecycle: route wiring,
// middleware chain, signal handling, and graceful shutdown.
package server
