package vpn

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/seaside-nm/engine"
)

type startCall struct {
	certificate []byte
	length      int
	protocol    string
}

type fakeEngine struct {
	mu       sync.Mutex
	starts   []startCall
	stops    []engine.Handle
	sink     engine.ErrorSink
	config   *engine.Config
	handle   engine.Handle
	startErr error
	stopErr  error
}

func (f *fakeEngine) Start(certificate []byte, length int, protocol string, sink engine.ErrorSink) (*engine.Config, engine.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, startCall{append([]byte(nil), certificate...), length, protocol})
	if f.startErr != nil {
		return nil, 0, f.startErr
	}
	f.sink = sink
	cfg := f.config
	if cfg == nil {
		cfg = &engine.Config{}
	}
	return cfg, f.handle, nil
}

func (f *fakeEngine) Stop(handle engine.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, handle)
	return f.stopErr
}

type fakeLoader struct {
	entry engine.EntryPoints
	err   error
	loads int
}

func (l *fakeLoader) Load() (engine.EntryPoints, error) {
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	return l.entry, nil
}

type fakeHost struct {
	states   []State
	general  []map[string]dbus.Variant
	ip4      []map[string]dbus.Variant
	failures []FailureReason
}

func (h *fakeHost) StateChanged(state State) {
	h.states = append(h.states, state)
}

func (h *fakeHost) SetConfig(general map[string]dbus.Variant) error {
	h.general = append(h.general, general)
	return nil
}

func (h *fakeHost) SetIP4Config(ip4 map[string]dbus.Variant) error {
	h.ip4 = append(h.ip4, ip4)
	return nil
}

func (h *fakeHost) Failure(reason FailureReason) error {
	h.failures = append(h.failures, reason)
	return nil
}

type journalEntry struct {
	kind    string
	session string
	detail  string
}

type fakeJournal struct {
	entries []journalEntry
	err     error
}

func (j *fakeJournal) SessionStarted(session, protocol string, _ time.Time) error {
	j.entries = append(j.entries, journalEntry{"started", session, protocol})
	return j.err
}

func (j *fakeJournal) SessionConfigured(session, device, address string, _ time.Time) error {
	j.entries = append(j.entries, journalEntry{"configured", session, device + " " + address})
	return j.err
}

func (j *fakeJournal) SessionFinished(session, outcome, message string, _ time.Time) error {
	j.entries = append(j.entries, journalEntry{"finished", session, outcome + ": " + message})
	return j.err
}

var errJournal = errors.New("journal unavailable")

// fatalLog records Fatal calls and discards everything else.
type fatalLog struct {
	fatals []string
}

func (l *fatalLog) Debug(string, ...interface{}) {}
func (l *fatalLog) Info(string, ...interface{})  {}
func (l *fatalLog) Warn(string, ...interface{})  {}
func (l *fatalLog) Error(string, ...interface{}) {}

func (l *fatalLog) Fatal(msg string, args ...interface{}) {
	l.fatals = append(l.fatals, fmt.Sprintf(msg, args...))
}
