package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/seaside-nm/common"
	"github.com/yllada/seaside-nm/config"
	"github.com/yllada/seaside-nm/engine"
	"github.com/yllada/seaside-nm/journal"
	"github.com/yllada/seaside-nm/netconfig"
	"github.com/yllada/seaside-nm/nmplugin"
	"github.com/yllada/seaside-nm/vpn"
)

type memorySecrets map[string]string

func (m memorySecrets) Put(id, certificate string) error {
	m[id] = certificate
	return nil
}

func (m memorySecrets) Get(id string) (string, error) {
	c, ok := m[id]
	if !ok {
		return "", errors.New("not found")
	}
	return c, nil
}

type scriptedEngine struct {
	started  []string
	stops    int
	failWith string
}

func (e *scriptedEngine) Start(certificate []byte, _ int, protocol string, sink engine.ErrorSink) (*engine.Config, engine.Handle, error) {
	e.started = append(e.started, string(certificate)+"|"+protocol)
	if e.failWith != "" {
		sink(engine.NewReport(e.failWith, nil))
	}
	return &engine.Config{
		TunnelName:    "seatun0",
		RemoteAddress: 0xC0A80101,
		TunnelAddress: 0x0A000002,
		TunnelPrefix:  24,
		DNSAddress:    0x01010101,
	}, 1, nil
}

func (e *scriptedEngine) Stop(engine.Handle) error {
	e.stops++
	return nil
}

type loaderFunc func() (engine.EntryPoints, error)

func (f loaderFunc) Load() (engine.EntryPoints, error) { return f() }

func newTestCLI(t *testing.T, in string) (*CLI, *bytes.Buffer, memorySecrets) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Journal.Path = filepath.Join(dir, "sessions.db")

	profiles, err := vpn.NewProfileManagerAt(filepath.Join(dir, "profiles.yaml"))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	secrets := memorySecrets{}
	return NewWith(cfg, profiles, secrets, strings.NewReader(in), out), out, secrets
}

func TestListProfiles(t *testing.T) {
	c, out, _ := newTestCLI(t, "")

	require.NoError(t, c.ListProfiles())
	assert.Contains(t, out.String(), "No profiles configured.")

	out.Reset()
	require.NoError(t, c.AddProfile(&vpn.Profile{Name: "office", Certificate: "Y2VydA==", Protocol: "typhoon"}))
	require.NoError(t, c.ListProfiles())
	assert.Contains(t, out.String(), "office")
	assert.Contains(t, out.String(), "typhoon")
	assert.Contains(t, out.String(), "embedded")
	assert.Contains(t, out.String(), "never")
}

func TestRemoveProfile(t *testing.T) {
	c, _, _ := newTestCLI(t, "")
	require.NoError(t, c.AddProfile(&vpn.Profile{Name: "office", Certificate: "Y2VydA==", Protocol: "typhoon"}))

	require.NoError(t, c.RemoveProfile("office"))
	assert.ErrorIs(t, c.RemoveProfile("office"), common.ErrProfileNotFound)
}

func TestStoreCertificate(t *testing.T) {
	c, _, secrets := newTestCLI(t, "Y2Vy\ndA==\n")
	profile := &vpn.Profile{Name: "office", Certificate: "b2xk", Protocol: "typhoon"}
	require.NoError(t, c.AddProfile(profile))

	require.NoError(t, c.StoreCertificate("office"))
	assert.Equal(t, "Y2VydA==", secrets[profile.ID])
	assert.True(t, profile.Keyring)
	assert.Empty(t, profile.Certificate)
}

func TestStoreCertificate_Empty(t *testing.T) {
	c, _, _ := newTestCLI(t, "  \n")
	require.NoError(t, c.AddProfile(&vpn.Profile{Name: "office", Certificate: "b2xk", Protocol: "typhoon"}))

	assert.ErrorIs(t, c.StoreCertificate("office"), common.ErrBadArguments)
}

func TestConnect_UntilCancelled(t *testing.T) {
	c, out, secrets := newTestCLI(t, "")
	profile := &vpn.Profile{Name: "office", Keyring: true, Protocol: "typhoon"}
	require.NoError(t, c.AddProfile(profile))
	secrets[profile.ID] = "Y2VydA=="

	eng := &scriptedEngine{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.connect(ctx, "office", loaderFunc(func() (engine.EntryPoints, error) { return eng, nil })))

	assert.Equal(t, []string{"cert|typhoon"}, eng.started)
	assert.Equal(t, 1, eng.stops)

	text := out.String()
	assert.Contains(t, text, "gateway: 192.168.1.1")
	assert.Contains(t, text, "address: 10.0.0.2")
	assert.Contains(t, text, "dns: 1.1.1.1")
	assert.Contains(t, text, "tundev: seatun0")
	assert.Contains(t, text, "Disconnected from office")

	j, err := journal.Open(c.cfg.Journal.Path)
	require.NoError(t, err)
	defer j.Close()
	sessions, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Clean", sessions[0].Outcome)
	assert.Equal(t, "10.0.0.2/24", sessions[0].Address)
}

func TestConnect_EngineFailure(t *testing.T) {
	c, _, _ := newTestCLI(t, "")
	require.NoError(t, c.AddProfile(&vpn.Profile{Name: "office", Certificate: "Y2VydA==", Protocol: "typhoon"}))

	eng := &scriptedEngine{failWith: "handshake rejected"}
	err := c.connect(context.Background(), "office", loaderFunc(func() (engine.EntryPoints, error) { return eng, nil }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake rejected")
	assert.Equal(t, 1, eng.stops)
}

func TestConnect_LoadFailure(t *testing.T) {
	c, _, _ := newTestCLI(t, "")
	require.NoError(t, c.AddProfile(&vpn.Profile{Name: "office", Certificate: "Y2VydA==", Protocol: "typhoon"}))

	err := c.connect(context.Background(), "office", loaderFunc(func() (engine.EntryPoints, error) {
		return nil, &engine.LoadError{Kind: engine.ModuleNotFound, Module: "libseaside.so"}
	}))
	assert.ErrorIs(t, err, common.ErrLaunchFailed)
	assert.ErrorIs(t, err, common.ErrModuleNotFound)
}

func TestConnect_UnknownProfile(t *testing.T) {
	c, _, _ := newTestCLI(t, "")
	err := c.connect(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, common.ErrProfileNotFound)
}

func TestHistory(t *testing.T) {
	c, out, _ := newTestCLI(t, "")
	require.NoError(t, c.History())
	assert.Contains(t, out.String(), "No sessions recorded.")

	j, err := journal.Open(c.cfg.Journal.Path)
	require.NoError(t, err)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	require.NoError(t, j.SessionStarted("s1", "typhoon", start))
	require.NoError(t, j.SessionFinished("s1", "Failed", "peer gone", start.Add(90*time.Second)))
	require.NoError(t, j.Close())

	out.Reset()
	require.NoError(t, c.History())
	assert.Contains(t, out.String(), "2026-03-01 09:00:00")
	assert.Contains(t, out.String(), "1m 30s")
	assert.Contains(t, out.String(), "Failed: peer gone")

	c.cfg.Journal.Path = ""
	out.Reset()
	require.NoError(t, c.History())
	assert.Contains(t, out.String(), "disabled")
}

func TestRenderStatus(t *testing.T) {
	c, out, _ := newTestCLI(t, "")
	now := time.Now()

	c.renderStatus(nmplugin.ServiceUnknown, errors.New("no bus"), nil, now)
	assert.Contains(t, out.String(), "not running")

	out.Reset()
	last := &journal.Session{StartedAt: now.Add(-2 * time.Minute), Device: "seatun0", Address: "10.0.0.2/24"}
	c.renderStatus(nmplugin.ServiceStarted, nil, last, now)
	assert.Contains(t, out.String(), "started")
	assert.Contains(t, out.String(), "seatun0 10.0.0.2/24")
	assert.Contains(t, out.String(), "uptime: 2m 0s")
}

func TestFormatValue(t *testing.T) {
	wire := netconfig.HostToNetwork(0x0A000001)
	assert.Equal(t, "10.0.0.1", formatValue(netconfig.KeyAddress, dbus.MakeVariant(wire)))
	assert.Equal(t, "1400", formatValue(netconfig.KeyMTU, dbus.MakeVariant(uint32(1400))))
	assert.Equal(t, "8.8.8.8, 1.1.1.1", formatValue(netconfig.KeyDNS, dbus.MakeVariant([]uint32{
		netconfig.HostToNetwork(0x08080808), netconfig.HostToNetwork(0x01010101),
	})))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "2m 3s", formatDuration(123*time.Second))
	assert.Equal(t, "1h 0m 1s", formatDuration(time.Hour+time.Second))
}
