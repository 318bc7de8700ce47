package logger

// Logger is the logging surface shared across the parking service. Core
// packages only ever see this interface; the zerolog adapter lives under
// infra/logger.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields, used for per-space
	// state transitions and similar high-volume debug payloads.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StructuredLogger is the structured subset of Logger. It is implemented by
// ZerologLogger and other adapters.
type StructuredLogger interface {
	Debugw(msg string, fields map[string]any)
}
