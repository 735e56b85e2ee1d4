// Package common provides shared constants, types, and utilities
// used across the seaside NetworkManager plugin.
package common

// Logger defines the interface for leveled logging.
// *AppLogger satisfies it; packages that accept a Logger fall back to the
// default logger when given nil.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
	// Fatal logs an unrecoverable session failure. It does not exit.
	Fatal(msg string, args ...interface{})
}

// LoggerOrDefault returns l, or the default logger when l is nil.
func LoggerOrDefault(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}
