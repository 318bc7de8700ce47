package logger

import corelogger "github.com/openlot/parkd/core/logger"

// Logger mirrors the core logger interface so adapters and core packages
// share one surface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns a zerolog-backed Logger for the given component. APP_ENV
// selects the output format, PARKD_LOG_LEVEL the minimum level.
func New(component string) Logger {
	return NewZerologLogger(component)
}
