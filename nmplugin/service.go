// Package nmplugin exposes the session controller as a NetworkManager VPN
// service plugin on D-Bus.
//
// D-Bus method calls arrive on godbus goroutines and are marshalled onto
// the events.Loop with Loop.Do, so every controller transition happens on
// the loop goroutine. Controller callbacks (vpn.Host) are turned into the
// plugin's StateChanged, Config, Ip4Config and Failure signals.
package nmplugin

import (
	"context"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	"github.com/yllada/seaside-nm/common"
	"github.com/yllada/seaside-nm/events"
	"github.com/yllada/seaside-nm/vpn"
)

// Object path and interface of the VPN plugin object.
const (
	PluginPath      = dbus.ObjectPath("/org/freedesktop/NetworkManager/VPN/Plugin")
	PluginInterface = "org.freedesktop.NetworkManager.VPN.Plugin"
)

// ServiceState is the VPN service state (NM_VPN_SERVICE_STATE_*).
type ServiceState uint32

const (
	ServiceUnknown  ServiceState = 0
	ServiceInit     ServiceState = 1
	ServiceShutdown ServiceState = 2
	ServiceStarting ServiceState = 3
	ServiceStarted  ServiceState = 4
	ServiceStopping ServiceState = 5
	ServiceStopped  ServiceState = 6
)

func (s ServiceState) String() string {
	switch s {
	case ServiceInit:
		return "init"
	case ServiceShutdown:
		return "shutdown"
	case ServiceStarting:
		return "starting"
	case ServiceStarted:
		return "started"
	case ServiceStopping:
		return "stopping"
	case ServiceStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Active reports whether a session is starting, running or stopping.
func (s ServiceState) Active() bool {
	switch s {
	case ServiceStarting, ServiceStarted, ServiceStopping:
		return true
	}
	return false
}

// Emitter sends D-Bus signals. *dbus.Conn implements it.
type Emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// Sessions is the controller surface the plugin drives.
type Sessions interface {
	Connect(params vpn.Parameters) error
	Disconnect() error
}

// Service is the NetworkManager VPN plugin. It implements vpn.Host.
type Service struct {
	loop     *events.Loop
	emitter  Emitter
	idleQuit time.Duration
	ctx      context.Context

	sessions Sessions
	props    *prop.Properties

	mu        sync.Mutex
	state     ServiceState
	idleTimer *time.Timer
	quit      chan struct{}
	quitOnce  sync.Once
}

// NewService creates a plugin emitting signals through emitter. idleQuit
// is how long the plugin stays up without a session; zero disables it.
// ctx bounds the wait of D-Bus calls for the loop.
func NewService(ctx context.Context, loop *events.Loop, emitter Emitter, idleQuit time.Duration) *Service {
	return &Service{
		loop:     loop,
		emitter:  emitter,
		idleQuit: idleQuit,
		ctx:      ctx,
		state:    ServiceUnknown,
		quit:     make(chan struct{}),
	}
}

// Bind attaches the controller. It must be called before Activate.
func (s *Service) Bind(sessions Sessions) {
	s.sessions = sessions
}

// Activate puts the plugin in the init state and arms the idle timer.
func (s *Service) Activate() {
	s.setState(ServiceInit)
	s.armIdle()
}

// Quit is closed when the plugin wants the process to exit.
func (s *Service) Quit() <-chan struct{} {
	return s.quit
}

// State returns the current service state.
func (s *Service) State() ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Shutdown announces the shutdown state and stops the idle timer.
func (s *Service) Shutdown() {
	s.disarmIdle()
	s.setState(ServiceShutdown)
}

// connect handles the Connect and ConnectInteractive methods.
func (s *Service) connect(settings Settings) *dbus.Error {
	params, err := ParseSettings(settings)
	if err != nil {
		common.LogWarn("Plugin: connect rejected: %v", err)
		return dbusError(err)
	}

	s.disarmIdle()
	err = s.loop.Do(s.ctx, func() error {
		return s.sessions.Connect(params)
	})
	if err != nil {
		common.LogWarn("Plugin: connect failed: %v", err)
		// A rejected connect makes no state transition that would re-arm
		// the idle timer.
		if !s.State().Active() {
			s.armIdle()
		}
		return dbusError(err)
	}
	return nil
}

// disconnect handles the Disconnect method.
func (s *Service) disconnect() *dbus.Error {
	err := s.loop.Do(s.ctx, s.sessions.Disconnect)
	if err != nil {
		common.LogWarn("Plugin: disconnect: %v", err)
		return dbusError(err)
	}
	return nil
}

// StateChanged implements vpn.Host.
func (s *Service) StateChanged(state vpn.State) {
	switch state {
	case vpn.StateStarting:
		s.disarmIdle()
		s.setState(ServiceStarting)
	case vpn.StateRunning:
		// Started is announced once the IPv4 configuration is delivered.
	case vpn.StateStopping:
		s.setState(ServiceStopping)
	case vpn.StateIdle, vpn.StateTerminated:
		s.setState(ServiceStopped)
		s.armIdle()
	}
}

// SetConfig implements vpn.Host.
func (s *Service) SetConfig(general map[string]dbus.Variant) error {
	return s.emit("Config", general)
}

// SetIP4Config implements vpn.Host.
func (s *Service) SetIP4Config(ip4 map[string]dbus.Variant) error {
	if err := s.emit("Ip4Config", ip4); err != nil {
		return err
	}
	s.setState(ServiceStarted)
	return nil
}

// Failure implements vpn.Host.
func (s *Service) Failure(reason vpn.FailureReason) error {
	return s.emit("Failure", uint32(reason))
}

func (s *Service) emit(signal string, values ...interface{}) error {
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Emit(PluginPath, PluginInterface+"."+signal, values...)
}

func (s *Service) setState(state ServiceState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	props := s.props
	s.mu.Unlock()

	common.LogDebug("Plugin: state %s", state)
	if props != nil {
		props.SetMust(PluginInterface, "State", uint32(state))
	}
	if err := s.emit("StateChanged", uint32(state)); err != nil {
		common.LogWarn("Plugin: failed to emit StateChanged: %v", err)
	}
}

func (s *Service) armIdle() {
	if s.idleQuit <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleQuit, s.idleExpired)
}

func (s *Service) disarmIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func (s *Service) idleExpired() {
	if s.State().Active() {
		return
	}
	common.LogInfo("Plugin: idle for %s, quitting", s.idleQuit)
	s.quitOnce.Do(func() { close(s.quit) })
}
