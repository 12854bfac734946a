// Package middleware provides the HTTP middleware chain of the front
// door: request ID assignment, structured request logging, and panic
// recovery.
package middleware
