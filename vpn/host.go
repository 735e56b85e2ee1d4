// Package vpn provides the seaside session controller and operator profiles.
package vpn

import (
	"time"

	"github.com/godbus/dbus/v5"
)

// FailureReason is the reason code reported to the host on failure
// (NM_VPN_PLUGIN_FAILURE_*).
type FailureReason uint32

const (
	// FailureLoginFailed is reported when authentication was rejected.
	FailureLoginFailed FailureReason = 0
	// FailureConnectFailed is reported for asynchronous engine failures.
	FailureConnectFailed FailureReason = 1
	// FailureBadIPConfig is reported when the tunnel config is unusable.
	FailureBadIPConfig FailureReason = 2
)

// Host is the control plane the controller reports to.
// All methods are called on the loop goroutine.
type Host interface {
	// StateChanged is called on every session state transition.
	// A transition to StateTerminated is the host-side teardown request.
	StateChanged(state State)
	// SetConfig delivers the general configuration dictionary.
	SetConfig(general map[string]dbus.Variant) error
	// SetIP4Config delivers the IPv4 configuration dictionary.
	SetIP4Config(ip4 map[string]dbus.Variant) error
	// Failure reports a session failure once per session.
	Failure(reason FailureReason) error
}

// Journal records session history. Errors are logged by the controller and
// never affect the session.
type Journal interface {
	SessionStarted(session, protocol string, at time.Time) error
	SessionConfigured(session, device, address string, at time.Time) error
	SessionFinished(session, outcome, message string, at time.Time) error
}
