// Package nmplugin provides the NetworkManager VPN plugin D-Bus service.
package nmplugin

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/yllada/seaside-nm/common"
)

// pluginObject holds exactly the methods exported on PluginInterface.
type pluginObject struct {
	svc *Service
}

func (o pluginObject) Connect(connection Settings) *dbus.Error {
	common.LogDebug("Plugin: Connect")
	return o.svc.connect(connection)
}

func (o pluginObject) ConnectInteractive(connection Settings, details map[string]dbus.Variant) *dbus.Error {
	common.LogDebug("Plugin: ConnectInteractive (%d details)", len(details))
	return o.svc.connect(connection)
}

// NeedSecrets reports the setting that lacks secrets. None are needed.
func (o pluginObject) NeedSecrets(connection Settings) (string, *dbus.Error) {
	if _, err := ParseSettings(connection); err != nil {
		return "", dbusError(err)
	}
	return "", nil
}

func (o pluginObject) NewSecrets(connection Settings) *dbus.Error {
	common.LogDebug("Plugin: NewSecrets ignored")
	return nil
}

func (o pluginObject) Disconnect() *dbus.Error {
	common.LogDebug("Plugin: Disconnect")
	return o.svc.disconnect()
}

func (o pluginObject) SetConfig(config map[string]dbus.Variant) *dbus.Error {
	common.LogDebug("Plugin: SetConfig from helper ignored (%d keys)", len(config))
	return nil
}

func (o pluginObject) SetIp4Config(config map[string]dbus.Variant) *dbus.Error {
	common.LogDebug("Plugin: SetIp4Config from helper ignored (%d keys)", len(config))
	return nil
}

func (o pluginObject) SetIp6Config(config map[string]dbus.Variant) *dbus.Error {
	common.LogDebug("Plugin: SetIp6Config from helper ignored (%d keys)", len(config))
	return nil
}

func (o pluginObject) SetFailure(reason string) *dbus.Error {
	common.LogWarn("Plugin: helper reported failure: %s", reason)
	return nil
}

func signalArg(name, typ string) introspect.Arg {
	return introspect.Arg{Name: name, Type: typ}
}

// Export publishes the plugin object on conn, claims name and activates
// the service.
func (s *Service) Export(conn *dbus.Conn, name string) error {
	obj := pluginObject{svc: s}
	if err := conn.Export(obj, PluginPath, PluginInterface); err != nil {
		return fmt.Errorf("export plugin object: %w", err)
	}

	props, err := prop.Export(conn, PluginPath, prop.Map{
		PluginInterface: {
			"State": {Value: uint32(ServiceInit), Writable: false, Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return fmt.Errorf("export plugin properties: %w", err)
	}
	s.mu.Lock()
	s.props = props
	s.mu.Unlock()

	node := &introspect.Node{
		Name: string(PluginPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       PluginInterface,
				Methods:    introspect.Methods(obj),
				Properties: props.Introspection(PluginInterface),
				Signals: []introspect.Signal{
					{Name: "StateChanged", Args: []introspect.Arg{signalArg("state", "u")}},
					{Name: "Config", Args: []introspect.Arg{signalArg("config", "a{sv}")}},
					{Name: "Ip4Config", Args: []introspect.Arg{signalArg("ip4config", "a{sv}")}},
					{Name: "Ip6Config", Args: []introspect.Arg{signalArg("ip6config", "a{sv}")}},
					{Name: "Failure", Args: []introspect.Arg{signalArg("reason", "u")}},
					{Name: "LoginBanner", Args: []introspect.Arg{signalArg("banner", "s")}},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), PluginPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name %s: %w", name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", name)
	}

	common.LogInfo("Plugin: serving %s at %s", name, PluginPath)
	s.Activate()
	return nil
}

// ConnectBus opens a private connection to the system or session bus.
func ConnectBus(bus string) (*dbus.Conn, error) {
	switch bus {
	case "", "system":
		return dbus.ConnectSystemBus()
	case "session":
		return dbus.ConnectSessionBus()
	default:
		return nil, fmt.Errorf("unknown bus %q", bus)
	}
}
