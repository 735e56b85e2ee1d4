// Package cli is the operator command line client. It drives the same
// session controller as the NetworkManager plugin, in-process, and prints
// the configuration the engine delivers.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/yllada/seaside-nm/common"
	"github.com/yllada/seaside-nm/config"
	"github.com/yllada/seaside-nm/engine"
	"github.com/yllada/seaside-nm/events"
	"github.com/yllada/seaside-nm/journal"
	"github.com/yllada/seaside-nm/keyring"
	"github.com/yllada/seaside-nm/nmplugin"
	"github.com/yllada/seaside-nm/vpn"
)

// historyLimit is the number of sessions History shows.
const historyLimit = 20

// Secrets stores certificates for keyring profiles.
type Secrets interface {
	Put(profileID, certificate string) error
	Get(profileID string) (string, error)
}

// CLI represents the command-line interface.
type CLI struct {
	cfg      *config.Config
	profiles *vpn.ProfileManager
	secrets  Secrets
	in       io.Reader
	out      io.Writer
	st       styles
	// interactive runs foreground sessions under the terminal monitor.
	interactive bool
}

// New creates a CLI using the user's profile store and keyring.
func New(cfg *config.Config) (*CLI, error) {
	profiles, err := vpn.NewProfileManager()
	if err != nil {
		return nil, fmt.Errorf("failed to open profiles: %w", err)
	}
	secrets, err := keyring.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewWith(cfg, profiles, secrets, os.Stdin, os.Stdout), nil
}

// NewWith creates a CLI with explicit collaborators.
func NewWith(cfg *config.Config, profiles *vpn.ProfileManager, secrets Secrets, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		cfg:      cfg,
		profiles: profiles,
		secrets:  secrets,
		in:       in,
		out:      out,
		st:       newStyles(isTerminal(out)),

		interactive: isTerminal(in) && isTerminal(out),
	}
}

// ListProfiles lists all configured profiles.
func (c *CLI) ListProfiles() error {
	profiles := c.profiles.List()
	if len(profiles) == 0 {
		fmt.Fprintln(c.out, "No profiles configured.")
		fmt.Fprintln(c.out, "Add one with: seaside-nm -add NAME -protocol PROTOCOL -certificate VALUE")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPROTOCOL\tCERTIFICATE\tLAST USED")
	fmt.Fprintln(w, "--\t----\t--------\t-----------\t---------")
	for _, p := range profiles {
		shortID := p.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}
		lastUsed := "never"
		if !p.LastUsed.IsZero() {
			lastUsed = p.LastUsed.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID, p.Name, p.Protocol, certificateSource(p), lastUsed)
	}
	return w.Flush()
}

func certificateSource(p *vpn.Profile) string {
	switch {
	case p.Keyring:
		return "keyring"
	case p.CertificateFile:
		return p.Certificate
	default:
		return "embedded"
	}
}

// AddProfile creates a profile.
func (c *CLI) AddProfile(profile *vpn.Profile) error {
	if err := c.profiles.Add(profile); err != nil {
		return fmt.Errorf("failed to add profile: %w", err)
	}
	fmt.Fprintf(c.out, "%s Added profile %s\n", c.st.ok.Render("✓"), profile.Name)
	return nil
}

// RemoveProfile deletes a profile by name or ID.
func (c *CLI) RemoveProfile(ref string) error {
	profile, err := c.profiles.Lookup(ref)
	if err != nil {
		return fmt.Errorf("%w: %s", err, ref)
	}
	if err := c.profiles.Remove(profile.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s Removed profile %s\n", c.st.ok.Render("✓"), profile.Name)
	return nil
}

// StoreCertificate reads a base64 certificate from the input and moves the
// profile's certificate into the keyring. Terminal input is not echoed.
func (c *CLI) StoreCertificate(ref string) error {
	profile, err := c.profiles.Lookup(ref)
	if err != nil {
		return fmt.Errorf("%w: %s", err, ref)
	}

	certificate, err := c.readSecret(fmt.Sprintf("Certificate for %s (base64): ", profile.Name))
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}
	if certificate == "" {
		return fmt.Errorf("%w: empty certificate", common.ErrBadArguments)
	}

	if err := c.secrets.Put(profile.ID, certificate); err != nil {
		return fmt.Errorf("failed to store certificate: %w", err)
	}

	profile.Keyring = true
	profile.Certificate = ""
	profile.CertificateFile = false
	if err := c.profiles.Update(profile); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s Certificate for %s stored in keyring\n", c.st.ok.Render("✓"), profile.Name)
	return nil
}

func (c *CLI) readSecret(prompt string) (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.out, prompt)
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	data, err := io.ReadAll(bufio.NewReader(c.in))
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(string(data)), ""), nil
}

// Connect runs a session for a profile until ctx is cancelled or the
// engine fails.
func (c *CLI) Connect(ctx context.Context, ref string) error {
	return c.connect(ctx, ref, engine.NewModule(c.cfg.Engine.Module))
}

func (c *CLI) connect(ctx context.Context, ref string, loader engine.Loader) error {
	profile, err := c.profiles.Lookup(ref)
	if err != nil {
		return fmt.Errorf("%w: %s", err, ref)
	}

	certificate := ""
	if profile.Keyring {
		certificate, err = c.secrets.Get(profile.ID)
		if err != nil {
			return fmt.Errorf("no certificate in keyring for %s: %w", profile.Name, err)
		}
	}

	loop := events.NewLoop(c.cfg.Events.QueueSize, c.cfg.Events.HandoffTimeout)
	host := newTerminalHost(c.out, c.st)
	ctrl := vpn.NewController(loader, loop, host)
	if j := c.openJournal(); j != nil {
		defer j.Close()
		ctrl.SetJournal(j)
	}

	// The loop outlives ctx so the session can still be torn down.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go loop.Run(loopCtx)

	params := profile.Parameters(certificate)
	if c.interactive {
		return c.monitor(ctx, loopCtx, profile, loop, ctrl, host, params)
	}

	fmt.Fprintf(c.out, "Connecting to %s...\n", profile.Name)
	if err := loop.Do(loopCtx, func() error { return ctrl.Connect(params) }); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	if err := c.profiles.MarkUsed(profile.ID); err != nil {
		common.LogWarn("CLI: failed to mark profile used: %v", err)
	}
	fmt.Fprintf(c.out, "%s Connected to %s, press Ctrl+C to disconnect\n", c.st.ok.Render("✓"), profile.Name)

	select {
	case <-ctx.Done():
		fmt.Fprintf(c.out, "Disconnecting from %s...\n", profile.Name)
		if err := loop.Do(loopCtx, ctrl.Disconnect); err != nil {
			return fmt.Errorf("failed to disconnect: %w", err)
		}
	case <-host.Done():
	}

	status := ctrl.Status()
	if status.Outcome == vpn.OutcomeFailed {
		return fmt.Errorf("session failed: %s", status.LastError)
	}
	fmt.Fprintf(c.out, "%s Disconnected from %s\n", c.st.ok.Render("✓"), profile.Name)
	return nil
}

// monitor runs a session under the terminal monitor. Host callbacks and
// ctx cancellation reach the model through tea.Program.Send.
func (c *CLI) monitor(ctx, loopCtx context.Context, profile *vpn.Profile, loop *events.Loop, ctrl *vpn.Controller, host *terminalHost, params vpn.Parameters) error {
	// Stderr lines would tear the monitor's view.
	restore := common.GetLogger().Redirect(io.Discard)
	defer restore()

	disconnect := func() error { return loop.Do(loopCtx, ctrl.Disconnect) }
	model := newMonitorModel(profile.Name, c.st, disconnect)
	p := tea.NewProgram(model, tea.WithInput(c.in), tea.WithOutput(c.out))
	host.send = p.Send

	type outcome struct {
		model tea.Model
		err   error
	}
	result := make(chan outcome, 1)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		final, err := p.Run()
		result <- outcome{final, err}
	}()
	go func() {
		select {
		case <-ctx.Done():
			p.Send(disconnectMsg{})
		case <-host.Done():
		case <-exited:
		}
	}()

	if err := loop.Do(loopCtx, func() error { return ctrl.Connect(params) }); err != nil {
		p.Quit()
		<-result
		return fmt.Errorf("connection failed: %w", err)
	}
	if err := c.profiles.MarkUsed(profile.ID); err != nil {
		common.LogWarn("CLI: failed to mark profile used: %v", err)
	}

	run := <-result
	// The monitor may exit without a disconnect, e.g. when its input closes.
	if err := disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	if final, ok := run.model.(monitorModel); ok && final.stopErr != nil {
		return fmt.Errorf("failed to disconnect: %w", final.stopErr)
	}
	if run.err != nil {
		return fmt.Errorf("session monitor: %w", run.err)
	}

	status := ctrl.Status()
	if status.Outcome == vpn.OutcomeFailed {
		return fmt.Errorf("session failed: %s", status.LastError)
	}
	fmt.Fprintf(c.out, "%s Disconnected from %s\n", c.st.ok.Render("✓"), profile.Name)
	return nil
}

func (c *CLI) openJournal() *journal.Journal {
	if c.cfg.Journal.Path == "" {
		return nil
	}
	j, err := journal.Open(c.cfg.Journal.Path)
	if err != nil {
		common.LogWarn("CLI: session journal unavailable: %v", err)
		return nil
	}
	return j
}

// History prints recent sessions from the journal.
func (c *CLI) History() error {
	if c.cfg.Journal.Path == "" {
		fmt.Fprintln(c.out, "Session journal is disabled (journal.path is empty).")
		return nil
	}
	j, err := journal.Open(c.cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	sessions, err := j.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tPROTOCOL\tDEVICE\tADDRESS\tDURATION\tOUTCOME")
	fmt.Fprintln(w, "-------\t--------\t------\t-------\t--------\t-------")
	for _, s := range sessions {
		duration, outcome := "-", "running"
		if !s.Running() {
			duration = formatDuration(s.Duration())
			outcome = s.Outcome
			if s.Message != "" {
				outcome += ": " + s.Message
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.StartedAt.Format("2006-01-02 15:04:05"), dash(s.Protocol), dash(s.Device), dash(s.Address), duration, outcome)
	}
	return w.Flush()
}

// Status prints the state of the plugin service and the last session.
func (c *CLI) Status() error {
	state, err := queryServiceState(c.cfg.DBus.Bus, c.cfg.DBus.ServiceName)

	var last *journal.Session
	if j := c.openJournal(); j != nil {
		defer j.Close()
		if sessions, err := j.Recent(1); err == nil && len(sessions) > 0 {
			last = &sessions[0]
		}
	}

	c.renderStatus(state, err, last, time.Now())
	return nil
}

func (c *CLI) renderStatus(state nmplugin.ServiceState, queryErr error, last *journal.Session, now time.Time) {
	fmt.Fprintln(c.out, c.st.title.Render("Plugin service"))
	if queryErr != nil {
		fmt.Fprintf(c.out, "  %s %s\n", c.st.key.Render("state:"), c.st.dim.Render("not running"))
		common.LogDebug("CLI: service query: %v", queryErr)
	} else {
		style := c.st.dim
		if state == nmplugin.ServiceStarted {
			style = c.st.ok
		}
		fmt.Fprintf(c.out, "  %s %s\n", c.st.key.Render("state:"), style.Render(state.String()))
	}

	if last == nil {
		return
	}
	fmt.Fprintln(c.out, c.st.title.Render("Last session"))
	fmt.Fprintf(c.out, "  %s %s\n", c.st.key.Render("started:"), last.StartedAt.Format("2006-01-02 15:04:05"))
	if last.Address != "" {
		fmt.Fprintf(c.out, "  %s %s %s\n", c.st.key.Render("tunnel:"), dash(last.Device), last.Address)
	}
	if last.Running() {
		fmt.Fprintf(c.out, "  %s %s\n", c.st.key.Render("uptime:"), formatDuration(now.Sub(last.StartedAt)))
		return
	}
	outcome := c.st.ok
	if last.Outcome != vpn.OutcomeClean.String() {
		outcome = c.st.fail
	}
	line := last.Outcome
	if last.Message != "" {
		line += ": " + last.Message
	}
	fmt.Fprintf(c.out, "  %s %s\n", c.st.key.Render("outcome:"), outcome.Render(line))
}

// queryServiceState reads the State property of the running plugin.
func queryServiceState(bus, name string) (nmplugin.ServiceState, error) {
	conn, err := nmplugin.ConnectBus(bus)
	if err != nil {
		return nmplugin.ServiceUnknown, err
	}
	defer conn.Close()

	v, err := conn.Object(name, nmplugin.PluginPath).GetProperty(nmplugin.PluginInterface + ".State")
	if err != nil {
		return nmplugin.ServiceUnknown, err
	}
	state, ok := v.Value().(uint32)
	if !ok {
		return nmplugin.ServiceUnknown, errors.New("unexpected State type " + v.Signature().String())
	}
	return nmplugin.ServiceState(state), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Println(`seaside-nm - SeasideVPN NetworkManager plugin

Usage:
  seaside-nm [OPTIONS]

Without options the NetworkManager plugin service is started.

Options:
  -config PATH                 Configuration file
  -version                     Show version and exit
  -verbose                     Enable debug logging
  -list                        List profiles
  -add NAME                    Add a profile (with -protocol, -certificate, -certifile)
  -remove NAME                 Remove a profile
  -store-certificate NAME      Read a certificate from stdin into the keyring
  -connect NAME                Run a session in the foreground until Ctrl+C
  -history                     Show recent sessions
  -status                      Show plugin service status
  -help                        Show this help message

Examples:
  seaside-nm -add office -protocol typhoon -certificate "$(base64 -w0 office.sea)"
  seaside-nm -add lab -protocol port -certificate /etc/seaside/lab.sea -certifile
  seaside-nm -connect office`)
}
