// Package vpn provides the seaside session controller and operator profiles.
package vpn

import "time"

// State is the lifecycle state of a session.
type State int

const (
	// StateIdle means no session has been started.
	StateIdle State = iota
	// StateStarting means the engine start call is in progress.
	StateStarting
	// StateRunning means the engine is up and owns a session handle.
	StateRunning
	// StateStopping means the engine stop call is in progress.
	StateStopping
	// StateTerminated means the last session ended; see Outcome.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Active reports whether a session occupies the controller.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}

// Outcome tells how a terminated session ended.
type Outcome int

const (
	// OutcomeNone is the outcome of a session that has not terminated.
	OutcomeNone Outcome = iota
	// OutcomeClean means the session was disconnected on request.
	OutcomeClean
	// OutcomeFailed means the engine reported an asynchronous failure.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeClean:
		return "Clean"
	case OutcomeFailed:
		return "Failed"
	default:
		return "None"
	}
}

// Status is a point-in-time snapshot of the controller.
type Status struct {
	State   State
	Outcome Outcome
	// Session is the identifier of the current or last session.
	Session string
	// Protocol of the current or last session.
	Protocol string
	// Since is when State was entered.
	Since time.Time
	// LastError holds the failure message of the last failed session.
	LastError string
}

// String renders the status the way the CLI and logs show it.
func (s Status) String() string {
	if s.State == StateTerminated {
		return s.State.String() + "(" + s.Outcome.String() + ")"
	}
	return s.State.String()
}
