// Package logging configures the process-wide structured logger.
//
// relay logs exclusively through log/slog; this package translates the
// logging section of the configuration into an slog handler (JSON or
// text, leveled, optionally with source locations) and installs it as
// the default. Components derive their own loggers with
// slog.Default().With("component", ...).
package logging
