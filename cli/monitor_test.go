package cli

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/seaside-nm/vpn"
)

func update(t *testing.T, m monitorModel, msg tea.Msg) (monitorModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(monitorModel)
	require.True(t, ok)
	return model, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestMonitor_ShowsStateAndConfig(t *testing.T) {
	m := newMonitorModel("office", newStyles(false), func() error { return nil })
	assert.NotNil(t, m.Init())

	m, _ = update(t, m, stateMsg{state: vpn.StateStarting})
	assert.Contains(t, m.View(), "Starting")

	m, _ = update(t, m, stateMsg{state: vpn.StateRunning})
	m, cmd := update(t, m, configMsg{section: configSection{
		title: "IPv4 configuration",
		lines: []string{"address: 10.0.0.2", "prefix: 24"},
	}})
	assert.Nil(t, cmd)

	view := m.View()
	assert.Contains(t, view, "office")
	assert.Contains(t, view, "Running")
	assert.Contains(t, view, "IPv4 configuration")
	assert.Contains(t, view, "  address: 10.0.0.2")
	assert.Contains(t, view, "q: disconnect")
}

func TestMonitor_KeyRequestsSingleDisconnect(t *testing.T) {
	calls := 0
	m := newMonitorModel("office", newStyles(false), func() error {
		calls++
		return nil
	})
	m, _ = update(t, m, stateMsg{state: vpn.StateRunning})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, stoppedMsg{}, cmd())
	assert.Equal(t, 1, calls)

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd)
	m, cmd = update(t, m, disconnectMsg{})
	assert.Nil(t, cmd)
	assert.NotContains(t, m.View(), "q: disconnect")

	// A clean stop waits for the terminated state.
	m, cmd = update(t, m, stoppedMsg{})
	assert.Nil(t, cmd)
	_, cmd = update(t, m, stateMsg{state: vpn.StateTerminated})
	assert.True(t, isQuit(cmd))
}

func TestMonitor_StopErrorQuits(t *testing.T) {
	m := newMonitorModel("office", newStyles(false), func() error { return nil })
	m, cmd := update(t, m, stoppedMsg{err: errors.New("stop failed")})
	assert.True(t, isQuit(cmd))
	assert.Contains(t, m.View(), "stop failed")
}

func TestMonitor_FailureShown(t *testing.T) {
	m := newMonitorModel("office", newStyles(false), func() error { return nil })
	m, _ = update(t, m, stateMsg{state: vpn.StateRunning})
	m, _ = update(t, m, failureMsg{reason: vpn.FailureConnectFailed})
	m, cmd := update(t, m, stateMsg{state: vpn.StateTerminated})

	assert.True(t, isQuit(cmd))
	assert.Contains(t, m.View(), "engine failure (reason 1)")
	assert.Contains(t, m.View(), "Terminated")
}

func TestTerminalHost_SendsToMonitor(t *testing.T) {
	var out []tea.Msg
	host := newTerminalHost(nil, newStyles(false))
	host.send = func(msg tea.Msg) { out = append(out, msg) }

	host.StateChanged(vpn.StateRunning)
	require.NoError(t, host.Failure(vpn.FailureConnectFailed))
	host.StateChanged(vpn.StateTerminated)

	require.Len(t, out, 3)
	assert.Equal(t, stateMsg{state: vpn.StateRunning}, out[0])
	assert.Equal(t, failureMsg{reason: vpn.FailureConnectFailed}, out[1])
	assert.Equal(t, stateMsg{state: vpn.StateTerminated}, out[2])

	select {
	case <-host.Done():
	default:
		t.Fatal("host not done after termination")
	}
}
