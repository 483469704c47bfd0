// Package observability defines the logging and metrics seams of the
// netboxapi client. The client never logs or measures on its own; callers
// inject implementations through the client Config, and no-op defaults are
// used otherwise.
package observability

// Field is a structured logging key-value pair.
type Field struct {
	Key   string
	Value any
}

// Logger receives structured log events from the client. Any logging
// backend (slog, zap, zerolog, ...) can be adapted to it.
type Logger interface {
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type noopLogger struct{}

// NoopLogger returns a Logger that discards every event. It is the default
// when no Logger is configured.
//
//nolint:ireturn // factory returns the interface for injection
func NoopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}
