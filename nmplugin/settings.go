// Package nmplugin provides the NetworkManager VPN plugin D-Bus service.
package nmplugin

import (
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/seaside-nm/common"
	"github.com/yllada/seaside-nm/vpn"
)

// NetworkManager VPN plugin error names (NM_VPN_PLUGIN_ERROR_*).
const (
	ErrorFailed             = "org.freedesktop.NetworkManager.VPN.Error.Failed"
	ErrorStartingInProgress = "org.freedesktop.NetworkManager.VPN.Error.StartingInProgress"
	ErrorAlreadyStarted     = "org.freedesktop.NetworkManager.VPN.Error.AlreadyStarted"
	ErrorBadArguments       = "org.freedesktop.NetworkManager.VPN.Error.BadArguments"
	ErrorLaunchFailed       = "org.freedesktop.NetworkManager.VPN.Error.LaunchFailed"
	ErrorInvalidConnection  = "org.freedesktop.NetworkManager.VPN.Error.InvalidConnection"
)

// Connection setting names and keys read from the Connect argument.
const (
	settingVPN = "vpn"
	keyData    = "data"
	keyService = "service-type"
)

// Settings is the a{sa{sv}} connection dictionary NetworkManager passes to
// Connect.
type Settings = map[string]map[string]dbus.Variant

// ParseSettings extracts session parameters from the vpn setting.
// A connection without a vpn setting wraps common.ErrInvalidConnection.
// Missing data items are left empty for the controller to reject.
func ParseSettings(settings Settings) (vpn.Parameters, error) {
	s, ok := settings[settingVPN]
	if !ok {
		return vpn.Parameters{}, common.WrapError(common.ErrInvalidConnection, "no vpn setting in connection")
	}

	if v, ok := s[keyService]; ok {
		common.LogDebug("Plugin: connection service type %v", v.Value())
	}

	var data map[string]string
	if v, ok := s[keyData]; ok {
		data, ok = v.Value().(map[string]string)
		if !ok {
			return vpn.Parameters{}, common.WrapError(common.ErrInvalidConnection,
				"vpn.data has signature "+v.Signature().String()+", want a{ss}")
		}
	}
	return vpn.ParametersFromData(data), nil
}

// dbusError maps controller errors to NetworkManager VPN error names.
func dbusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name := ErrorFailed
	switch {
	case errors.Is(err, common.ErrBadArguments):
		name = ErrorBadArguments
	case errors.Is(err, common.ErrInvalidConnection):
		name = ErrorInvalidConnection
	case errors.Is(err, common.ErrAlreadyStarted):
		name = ErrorAlreadyStarted
	case errors.Is(err, common.ErrLaunchFailed):
		name = ErrorLaunchFailed
	}
	return dbus.NewError(name, []interface{}{err.Error()})
}
