// Package vpn provides the seaside session controller and operator profiles.
package vpn

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yllada/seaside-nm/common"
	"github.com/yllada/seaside-nm/engine"
	"github.com/yllada/seaside-nm/events"
	"github.com/yllada/seaside-nm/netconfig"
)

// launchFailed is the journal outcome of a session the engine refused.
const launchFailed = "LaunchFailed"

// Controller runs the session state machine of one plugin instance.
// At most one session exists at a time.
type Controller struct {
	loader  engine.Loader
	loop    *events.Loop
	bridge  *events.Bridge
	host    Host
	journal Journal
	log     common.Logger
	newID   func() string
	now     func() time.Time

	mu       sync.RWMutex
	state    State
	outcome  Outcome
	since    time.Time
	session  string
	protocol string
	lastErr  string

	// Owned by the loop goroutine.
	entry  engine.EntryPoints
	handle engine.Handle
	live   bool
}

// NewController creates a controller that loads the engine through loader,
// processes deferred work on loop and reports to host.
func NewController(loader engine.Loader, loop *events.Loop, host Host) *Controller {
	c := &Controller{
		loader: loader,
		loop:   loop,
		host:   host,
		log:    common.GetLogger(),
		newID:  uuid.NewString,
		now:    time.Now,
		state:  StateIdle,
	}
	c.since = c.now()
	c.bridge = events.NewBridge(loop, c)
	return c
}

// SetJournal attaches a session journal. Nil disables recording.
func (c *Controller) SetJournal(j Journal) {
	c.journal = j
}

// SetLogger routes the controller's fatal session reports to l. Nil restores
// the default logger.
func (c *Controller) SetLogger(l common.Logger) {
	c.log = common.LoggerOrDefault(l)
}

// Bridge returns the bridge engine reports travel through.
func (c *Controller) Bridge() *events.Bridge {
	return c.bridge
}

// Status returns a snapshot of the controller. Safe from any goroutine.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		State:     c.state,
		Outcome:   c.outcome,
		Session:   c.session,
		Protocol:  c.protocol,
		Since:     c.since,
		LastError: c.lastErr,
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connect starts a session. Validation errors wrap common.ErrBadArguments
// and engine failures wrap common.ErrLaunchFailed; in both cases the
// controller returns to StateIdle. On success the session is Running and
// its configuration is delivered to the host on a later loop iteration.
func (c *Controller) Connect(params Parameters) error {
	common.LogDebug("Session: connect requested (protocol=%q, file=%t)", params.Protocol, params.CertificateIsFile)

	if err := params.Validate(); err != nil {
		common.LogWarn("Session: %v", err)
		return err
	}

	if current := c.State(); current.Active() {
		return fmt.Errorf("%w: state %s", common.ErrAlreadyStarted, current)
	}

	entry, err := c.loader.Load()
	if err != nil {
		common.LogError("Session: failed to load engine: %v", err)
		return fmt.Errorf("%w: %w", common.ErrLaunchFailed, err)
	}

	material, length := params.Material()
	session := c.newID()
	c.transition(StateStarting, func() {
		c.session = session
		c.protocol = params.Protocol
		c.outcome = OutcomeNone
		c.lastErr = ""
	})

	c.record(func(j Journal) error {
		return j.SessionStarted(session, params.Protocol, c.now())
	})

	common.LogInfo("Session %s: starting engine (protocol %s)", session, params.Protocol)
	cfg, handle, err := entry.Start(material, length, params.Protocol, c.bridge.Sink(session))
	if err != nil {
		common.LogError("Session %s: engine start failed: %v", session, err)
		c.transition(StateIdle, nil)
		c.record(func(j Journal) error {
			return j.SessionFinished(session, launchFailed, err.Error(), c.now())
		})
		return fmt.Errorf("%w: %w", common.ErrLaunchFailed, err)
	}

	c.entry = entry
	c.handle = handle
	c.live = true
	c.transition(StateRunning, nil)

	var record engine.Config
	if cfg != nil {
		record = *cfg
	}
	// Never delivered from inside Connect; a closed loop means shutdown.
	deliver := func() { c.deliverConfig(session, record) }
	if err := c.loop.Submit(deliver, nil); err != nil {
		common.LogWarn("Session %s: configuration not delivered: %v", session, err)
	}

	common.LogInfo("Session %s: engine started", session)
	return nil
}

// Disconnect stops the active session. Without one it is a logged no-op.
// A stop failure still tears the session down and is returned wrapping
// common.ErrStopFailed.
func (c *Controller) Disconnect() error {
	if !c.live {
		common.LogInfo("Session: disconnect requested with no engine running")
		return nil
	}

	err := c.teardown(OutcomeClean, "")
	if err != nil {
		if !errors.Is(err, common.ErrStopFailed) {
			err = fmt.Errorf("%w: %w", common.ErrStopFailed, err)
		}
		return err
	}
	return nil
}

// HandleEngineReport processes an engine report on the loop goroutine.
// The first failure of the current session tears it down; later reports
// and reports of previous sessions are ignored.
func (c *Controller) HandleEngineReport(session string, report *engine.Report) {
	if !report.HasMessage {
		common.LogDebug("Session %s: engine exited cleanly", session)
		return
	}

	c.mu.RLock()
	current := c.session == session && c.state == StateRunning && c.live
	c.mu.RUnlock()
	if !current {
		common.LogDebug("Session %s: ignoring engine report %q, session not running", session, report.Message)
		return
	}

	c.mu.Lock()
	c.lastErr = report.Message
	c.mu.Unlock()

	if err := c.host.Failure(FailureConnectFailed); err != nil {
		common.LogWarn("Session %s: failed to report failure to host: %v", session, err)
	}
	if err := c.teardown(OutcomeFailed, report.Message); err != nil {
		common.LogWarn("Session %s: %v", session, err)
	}
	c.log.Fatal("Session %s: engine failed: %s", session, report.Message)
}

// teardown stops the engine at most once per session and moves to
// StateTerminated with the given outcome.
func (c *Controller) teardown(outcome Outcome, message string) error {
	if !c.live {
		return nil
	}
	entry, handle := c.entry, c.handle
	c.live = false
	c.handle = 0

	session := c.Status().Session
	c.transition(StateStopping, nil)

	common.LogDebug("Session %s: stopping engine", session)
	err := entry.Stop(handle)
	if err != nil {
		common.LogWarn("Session %s: error stopping engine: %v", session, err)
	}

	c.transition(StateTerminated, func() {
		c.outcome = outcome
		if message != "" {
			c.lastErr = message
		}
	})

	detail := message
	if detail == "" && err != nil {
		detail = err.Error()
	}
	c.record(func(j Journal) error {
		return j.SessionFinished(session, outcome.String(), detail, c.now())
	})

	common.LogInfo("Session %s: terminated (%s)", session, outcome)
	return err
}

// deliverConfig translates and delivers the engine configuration if the
// session is still running.
func (c *Controller) deliverConfig(session string, record engine.Config) {
	status := c.Status()
	if status.Session != session || status.State != StateRunning {
		common.LogDebug("Session %s: dropping configuration, session is %s", session, status)
		return
	}

	cfg := netconfig.Translate(record)
	cfg.LogSummary(session)

	if err := c.host.SetConfig(cfg.General()); err != nil {
		common.LogError("Session %s: failed to deliver general configuration: %v", session, err)
	}
	if err := c.host.SetIP4Config(cfg.IP4()); err != nil {
		common.LogError("Session %s: failed to deliver IPv4 configuration: %v", session, err)
	}

	address := ""
	if cfg.Address.IsValid() {
		address = cfg.Address.String()
		if cfg.Prefix > 0 && cfg.Prefix <= 32 {
			address = netip.PrefixFrom(cfg.Address, int(cfg.Prefix)).String()
		}
	}
	c.record(func(j Journal) error {
		return j.SessionConfigured(session, cfg.TunnelDevice, address, c.now())
	})
	common.LogInfo("Session %s: configuration delivered", session)
}

// transition sets the state, applies update under the lock and notifies
// the host.
func (c *Controller) transition(state State, update func()) {
	c.mu.Lock()
	c.state = state
	c.since = c.now()
	if update != nil {
		update()
	}
	c.mu.Unlock()

	c.host.StateChanged(state)
}

func (c *Controller) record(fn func(Journal) error) {
	if c.journal == nil {
		return
	}
	if err := fn(c.journal); err != nil {
		common.LogWarn("Journal: %v", err)
	}
}
