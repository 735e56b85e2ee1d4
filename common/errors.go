// Package common provides shared constants, types, and utilities
// used across the seaside NetworkManager plugin.
package common

import "errors"

// Sentinel errors for bridge operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Session errors.
	ErrBadArguments      = errors.New("bad arguments")
	ErrInvalidConnection = errors.New("invalid connection")
	ErrLaunchFailed      = errors.New("launch failed")
	ErrEngineStart       = errors.New("engine start failed")
	ErrStopFailed        = errors.New("stop failed")
	ErrAlreadyStarted    = errors.New("session already active")

	// Engine module errors.
	ErrModuleNotFound = errors.New("engine module not found")
	ErrMissingSymbol  = errors.New("engine symbol missing")

	// Event loop errors.
	ErrQueueFull  = errors.New("event queue full")
	ErrLoopClosed = errors.New("event loop closed")

	// Profile errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrDuplicateName   = errors.New("profile name already exists")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
