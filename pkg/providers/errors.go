package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies every error the dispatch core can surface.
// The HTTP front door maps kinds to transport status codes; the core
// itself never deals in status codes.
type ErrorKind string

const (
	// KindNotFound means no backend is registered for the requested
	// model id.
	KindNotFound ErrorKind = "not_found"

	// KindProvider means the selected backend failed, returned empty
	// content, or returned malformed output.
	KindProvider ErrorKind = "provider"

	// KindTimeout means the per-request deadline elapsed before the
	// backend completed.
	KindTimeout ErrorKind = "timeout"

	// KindCredentialExhausted means no upstream credential could be
	// minted and all existing ones are blocked.
	KindCredentialExhausted ErrorKind = "credential_exhausted"
)

// NotFoundError is returned when the requested model id was never
// registered.
type NotFoundError struct {
	// Model is the requested model identifier
	Model string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no backend registered for model %q", e.Model)
}

// BackendError represents a failure of one specific backend: an upstream
// HTTP error, an empty result, or a malformed response.
type BackendError struct {
	// Backend is the name of the backend that failed
	Backend string

	// StatusCode is the upstream HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %q error (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %q error: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// AuthError represents an upstream credential rejection (401/402-class).
// Adapters report it to the credential pool; the router never retries it.
type AuthError struct {
	// Backend is the name of the backend that rejected the credential
	Backend string

	// Code is the credential code that was rejected
	Code string

	// Message is the error message from the backend
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("backend %q rejected credential: %s", e.Backend, e.Message)
}

// TimeoutError is returned when the per-request deadline elapsed before
// the backend produced a result.
type TimeoutError struct {
	// Backend is the backend the request was dispatched to ("" if the
	// deadline fired before selection)
	Backend string

	// Deadline is the configured deadline duration
	Deadline time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("request deadline of %s elapsed", e.Deadline)
	}
	return fmt.Sprintf("backend %q did not answer within %s", e.Backend, e.Deadline)
}

// CredentialExhaustedError is returned when the credential pool cannot
// supply a valid credential: every known credential is blocked and the
// mint flow failed or is unavailable.
type CredentialExhaustedError struct {
	// Backend is the backend whose pool is exhausted
	Backend string

	// Cause is the mint failure (nil when no mint flow is configured)
	Cause error
}

// Error implements the error interface.
func (e *CredentialExhaustedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %q credential pool exhausted: %v", e.Backend, e.Cause)
	}
	return fmt.Sprintf("backend %q credential pool exhausted", e.Backend)
}

// Unwrap returns the underlying error for error chain support.
func (e *CredentialExhaustedError) Unwrap() error {
	return e.Cause
}

// Classify maps any error surfaced by the core to its ErrorKind.
// An error that matches none of the typed errors is treated as a backend
// failure; an unclassified error never escapes the router.
func Classify(err error) ErrorKind {
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return KindNotFound
	}

	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var exhausted *CredentialExhaustedError
	if errors.As(err, &exhausted) {
		return KindCredentialExhausted
	}

	return KindProvider
}

// Retryable reports whether the router may retry err on an alternate
// backend serving the same model id. Credential rejections and deadline
// failures are never retried by the router.
func Retryable(err error) bool {
	var auth *AuthError
	if errors.As(err, &auth) {
		return false
	}
	return Classify(err) == KindProvider
}
