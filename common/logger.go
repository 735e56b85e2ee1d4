// Package common provides shared constants, types, and utilities
// used across the seaside NetworkManager plugin.
package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// priority is the syslog priority journald assigns to the level.
func (l LogLevel) priority() int {
	switch l {
	case LevelDebug:
		return 7
	case LevelInfo:
		return 6
	case LevelWarn:
		return 4
	case LevelError:
		return 3
	default:
		return 2
	}
}

// ParseLevel converts a configuration string into a LogLevel.
// Unknown strings yield LevelInfo and false.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "fatal":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// AppLogger is the plugin logger.
//
// NetworkManager starts the plugin with stderr attached to the system
// journal. When that is detected (JOURNAL_STREAM is set) lines carry an
// sd-daemon "<N>" priority prefix instead of a timestamp. A log file, when
// enabled, always receives timestamped lines.
type AppLogger struct {
	mu      sync.Mutex
	level   LogLevel
	output  io.Writer
	journal bool
	file    *rotatingFile
	// rotation settings applied when file logging is enabled
	maxFileSize int64
	maxBackups  int
}

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	Level LogLevel
	// FilePath enables file logging when non-empty.
	FilePath    string
	MaxFileSize int64 // in bytes, default 5MB
	MaxBackups  int   // number of rotated files to keep, default 5
}

var (
	defaultLogger *AppLogger
	loggerOnce    sync.Once
)

const (
	defaultMaxFileSize = 5 * 1024 * 1024 // 5MB
	defaultMaxBackups  = 5
)

// NewLogger creates a logger writing timestamped lines to w.
func NewLogger(w io.Writer, level LogLevel) *AppLogger {
	return &AppLogger{
		level:       level,
		output:      w,
		maxFileSize: defaultMaxFileSize,
		maxBackups:  defaultMaxBackups,
	}
}

// GetLogger returns the singleton logger instance.
func GetLogger() *AppLogger {
	loggerOnce.Do(func() {
		defaultLogger = NewLogger(os.Stderr, LevelInfo)
		defaultLogger.journal = os.Getenv("JOURNAL_STREAM") != ""
	})
	return defaultLogger
}

// InitLogger initializes the default logger with custom configuration.
// Should be called early in application startup.
func InitLogger(config LogConfig) error {
	logger := GetLogger()
	logger.SetLevel(config.Level)

	logger.mu.Lock()
	if config.MaxFileSize > 0 {
		logger.maxFileSize = config.MaxFileSize
	}
	if config.MaxBackups > 0 {
		logger.maxBackups = config.MaxBackups
	}
	logger.mu.Unlock()

	if config.FilePath != "" {
		return logger.EnableFileLogging(config.FilePath)
	}
	return nil
}

// SetLevel sets the minimum log level.
func (l *AppLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the minimum log level.
func (l *AppLogger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetOutput sets the primary log destination.
func (l *AppLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// Redirect sends primary output to w until the returned function restores
// the previous destination. The log file is unaffected.
func (l *AppLogger) Redirect(w io.Writer) (restore func()) {
	l.mu.Lock()
	prev := l.output
	l.output = w
	l.mu.Unlock()
	return func() { l.SetOutput(prev) }
}

// SetJournal switches the primary output between journal priority
// prefixes and timestamps.
func (l *AppLogger) SetJournal(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.journal = enabled
}

// EnableFileLogging mirrors log output to logPath. The file is rotated
// whenever it would grow past the configured size.
func (l *AppLogger) EnableFileLogging(logPath string) error {
	logDir := filepath.Dir(logPath)

	if isSymlink(logDir) {
		return fmt.Errorf("security error: log directory is a symlink")
	}
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return err
	}
	if isSymlink(logPath) {
		return fmt.Errorf("security error: log file is a symlink")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := openRotatingFile(logPath, l.maxFileSize, l.maxBackups)
	if err != nil {
		return err
	}
	if l.file != nil {
		l.file.Close()
	}
	l.file = file
	return nil
}

// write formats and emits one log line. depth is the number of stack frames
// between the public entry point and write.
func (l *AppLogger) write(depth int, level LogLevel, msg string, args ...interface{}) {
	if level < l.Level() {
		return
	}

	caller := "???"
	if _, file, line, ok := runtime.Caller(depth); ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}
	body := fmt.Sprintf("[%s] %s: %s\n", level, caller, formatted)
	stamped := time.Now().Format("2006/01/02 15:04:05") + " " + body

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.output != nil {
		if l.journal {
			fmt.Fprintf(l.output, "<%d>%s", level.priority(), body)
		} else {
			io.WriteString(l.output, stamped)
		}
	}
	if l.file != nil {
		if _, err := l.file.Write([]byte(stamped)); err != nil && l.output != nil {
			fmt.Fprintf(l.output, "log file: %v\n", err)
		}
	}
}

// Debug logs a debug message.
func (l *AppLogger) Debug(msg string, args ...interface{}) {
	l.write(2, LevelDebug, msg, args...)
}

// Info logs an informational message.
func (l *AppLogger) Info(msg string, args ...interface{}) {
	l.write(2, LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *AppLogger) Warn(msg string, args ...interface{}) {
	l.write(2, LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *AppLogger) Error(msg string, args ...interface{}) {
	l.write(2, LevelError, msg, args...)
}

// Fatal logs a session-fatal message. The process keeps running.
func (l *AppLogger) Fatal(msg string, args ...interface{}) {
	l.write(2, LevelFatal, msg, args...)
}

// Shorthand functions for the default logger.

// LogDebug logs a debug message to the default logger.
func LogDebug(msg string, args ...interface{}) {
	GetLogger().write(2, LevelDebug, msg, args...)
}

// LogInfo logs an info message to the default logger.
func LogInfo(msg string, args ...interface{}) {
	GetLogger().write(2, LevelInfo, msg, args...)
}

// LogWarn logs a warning message to the default logger.
func LogWarn(msg string, args ...interface{}) {
	GetLogger().write(2, LevelWarn, msg, args...)
}

// LogError logs an error message to the default logger.
func LogError(msg string, args ...interface{}) {
	GetLogger().write(2, LevelError, msg, args...)
}

// Close closes the log file. Should be called on application shutdown.
func (l *AppLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// CloseLogger closes the default logger.
func CloseLogger() error {
	return GetLogger().Close()
}
