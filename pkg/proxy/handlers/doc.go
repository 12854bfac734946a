// Package handlers contains the HTTP handlers of the front door: chat
// completions (buffered and streamed), the model catalog, and the
// health and readiness probes.
package handlers
