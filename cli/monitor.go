// Package cli provides the operator command line client.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/seaside-nm/vpn"
)

// Messages the terminal host sends to the monitor. Senders only call
// tea.Program.Send and never touch model state.
type (
	stateMsg      struct{ state vpn.State }
	configMsg     struct{ section configSection }
	failureMsg    struct{ reason vpn.FailureReason }
	disconnectMsg struct{}
	stoppedMsg    struct{ err error }
)

type configSection struct {
	title string
	lines []string
}

// monitorModel shows a running session until it terminates.
type monitorModel struct {
	profile    string
	st         styles
	spinner    spinner.Model
	state      vpn.State
	sections   []configSection
	failure    string
	stopping   bool
	stopErr    error
	disconnect func() error
}

func newMonitorModel(profile string, st styles, disconnect func() error) monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = st.dim
	return monitorModel{
		profile:    profile,
		st:         st,
		spinner:    s,
		state:      vpn.StateIdle,
		disconnect: disconnect,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m.requestStop()
		}
	case disconnectMsg:
		return m.requestStop()
	case stoppedMsg:
		m.stopErr = msg.err
		if msg.err != nil {
			return m, tea.Quit
		}
	case stateMsg:
		m.state = msg.state
		if msg.state == vpn.StateTerminated {
			return m, tea.Quit
		}
	case configMsg:
		m.sections = append(m.sections, msg.section)
	case failureMsg:
		m.failure = fmt.Sprintf("engine failure (reason %d)", msg.reason)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m monitorModel) requestStop() (tea.Model, tea.Cmd) {
	if m.stopping {
		return m, nil
	}
	m.stopping = true
	disconnect := m.disconnect
	return m, func() tea.Msg {
		return stoppedMsg{err: disconnect()}
	}
}

func (m monitorModel) View() string {
	var b strings.Builder

	status := m.state.String()
	switch {
	case m.state == vpn.StateRunning && !m.stopping:
		status = m.st.ok.Render(status)
	case m.state == vpn.StateTerminated:
		status = m.st.dim.Render(status)
	default:
		status = m.spinner.View() + " " + status
	}
	fmt.Fprintf(&b, "%s %s\n", m.st.title.Render(m.profile), status)

	for _, section := range m.sections {
		b.WriteString(m.st.key.Render(section.title) + "\n")
		for _, line := range section.lines {
			b.WriteString("  " + line + "\n")
		}
	}
	if m.failure != "" {
		b.WriteString(m.st.fail.Render("✗ "+m.failure) + "\n")
	}
	if m.stopErr != nil {
		b.WriteString(m.st.fail.Render("✗ "+m.stopErr.Error()) + "\n")
	}
	if !m.stopping && m.state != vpn.StateTerminated {
		b.WriteString(m.st.dim.Render("q: disconnect") + "\n")
	}
	return b.String()
}
