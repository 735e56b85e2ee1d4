// Package engine provides the binding to the seaside engine module.
package engine

import (
	"fmt"
	"sync"

	"github.com/yllada/seaside-nm/common"
)

// Entry point symbol names exported by the engine module.
const (
	StartSymbol = "vpn_start"
	StopSymbol  = "vpn_stop"
)

// Handle is the opaque session token issued by the engine.
// It is passed back unmodified on stop and never dereferenced.
type Handle uintptr

// Config is the tunnel configuration produced by a successful start.
// Addresses are IPv4 in host byte order; zero means unset.
type Config struct {
	TunnelName    string
	MTU           uint32
	RemoteAddress uint32
	TunnelGateway uint32
	TunnelAddress uint32
	TunnelPrefix  uint32
	DNSAddress    uint32
}

// Report is an asynchronous notification raised by the engine.
// A report without a message means the engine exited cleanly.
type Report struct {
	Message    string
	HasMessage bool

	once sync.Once
	free func()
}

// NewReport wraps an engine error message. free releases the engine-owned
// buffer and may be nil.
func NewReport(message string, free func()) *Report {
	return &Report{Message: message, HasMessage: true, free: free}
}

// CleanExit returns a report signalling a clean engine exit.
func CleanExit() *Report {
	return &Report{}
}

// Release frees the engine buffer behind the report. Safe to call repeatedly.
func (r *Report) Release() {
	r.once.Do(func() {
		if r.free != nil {
			r.free()
		}
	})
}

// ErrorSink receives reports from engine threads. It must not block.
type ErrorSink func(report *Report)

// EntryPoints are the typed engine functions resolved from the module.
type EntryPoints interface {
	// Start launches a session. certificate holds either decoded certificate
	// bytes (length = len) or a file path (length = 0). sink receives
	// asynchronous failures until Stop returns.
	Start(certificate []byte, length int, protocol string, sink ErrorSink) (*Config, Handle, error)
	// Stop terminates the session identified by handle.
	Stop(handle Handle) error
}

// Loader resolves the engine entry points.
type Loader interface {
	Load() (EntryPoints, error)
}

// LoadErrorKind classifies a LoadError.
type LoadErrorKind int

const (
	// ModuleNotFound means the loader could not open the module.
	ModuleNotFound LoadErrorKind = iota
	// MissingSymbol means the module lacks a required entry point.
	MissingSymbol
)

// String returns the kind name.
func (k LoadErrorKind) String() string {
	switch k {
	case ModuleNotFound:
		return "ModuleNotFound"
	case MissingSymbol:
		return "MissingSymbol"
	default:
		return "Unknown"
	}
}

// LoadError reports a failure to bind the engine module.
type LoadError struct {
	Kind   LoadErrorKind
	Module string
	Symbol string
	Err    error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case MissingSymbol:
		return fmt.Sprintf("engine module %s: missing symbol %q", e.Module, e.Symbol)
	default:
		if e.Err != nil {
			return fmt.Sprintf("engine module %s not found: %v", e.Module, e.Err)
		}
		return fmt.Sprintf("engine module %s not found", e.Module)
	}
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *LoadError) Unwrap() []error {
	sentinel := common.ErrModuleNotFound
	if e.Kind == MissingSymbol {
		sentinel = common.ErrMissingSymbol
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}
