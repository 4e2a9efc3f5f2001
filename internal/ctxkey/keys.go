// Package ctxkey holds context keys shared by packages that cannot import
// each other. It must not import other internal packages.
package ctxkey

// LoggerKey stores the request-scoped *slog.Logger.
type LoggerKey struct{}

// RequestIDKey stores the request ID string.
type RequestIDKey struct{}
