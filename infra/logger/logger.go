package logger

import corelogger "github.com/kilianp07/solaris/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component, formatted according to the
// options set with Configure.
func New(component string) Logger {
	return NewZerologLogger(component)
}
