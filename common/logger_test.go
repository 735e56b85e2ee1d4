package common

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelFatal, "FATAL"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level LogLevel
		ok    bool
	}{
		{"debug", LevelDebug, true},
		{" INFO ", LevelInfo, true},
		{"", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			level, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestAppLogger_LogFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	assert.Zero(t, buf.Len(), "debug/info must be filtered at WARN")

	logger.Warn("warn message")
	assert.Contains(t, buf.String(), "[WARN]")

	buf.Reset()
	logger.Error("error message")
	assert.Contains(t, buf.String(), "[ERROR]")

	buf.Reset()
	logger.Fatal("fatal message")
	assert.Contains(t, buf.String(), "[FATAL]")
}

func TestAppLogger_LogFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelDebug)

	logger.Info("Test message with %s", "formatting")

	output := buf.String()
	assert.Contains(t, output, time.Now().Format("2006/01/02"))
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "logger_test.go:")
	assert.Contains(t, output, "Test message with formatting")
}

func TestAppLogger_SetLevel(t *testing.T) {
	logger := NewLogger(&bytes.Buffer{}, LevelInfo)
	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.Level())
}

func TestLoggerOrDefault(t *testing.T) {
	assert.Same(t, GetLogger(), LoggerOrDefault(nil))

	custom := NewLogger(&bytes.Buffer{}, LevelDebug)
	assert.Same(t, custom, LoggerOrDefault(custom))
}

func TestWrapError(t *testing.T) {
	wrapped := WrapError(ErrLaunchFailed, "additional context")
	require.Error(t, wrapped)
	assert.Contains(t, wrapped.Error(), "additional context")
	assert.True(t, errors.Is(wrapped, ErrLaunchFailed))

	assert.Nil(t, WrapError(nil, "context"))
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "present")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Dir(path)), "directories are not files")
	assert.False(t, FileExists("/nonexistent/path/to/file"))
}

func TestDirsFor(t *testing.T) {
	failing := func() (string, error) { return "", errors.New("no home") }
	home := func() (string, error) { return "/home/alice", nil }
	userConfig := func() (string, error) { return "/home/alice/.config", nil }

	dir, err := configDirFor(0, failing)
	require.NoError(t, err)
	assert.Equal(t, "/etc/seaside-nm", dir)

	dir, err = configDirFor(1000, userConfig)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.config/seaside-nm", dir)

	_, err = configDirFor(1000, failing)
	assert.Error(t, err)

	dir, err = dataDirFor(0, "/xdg", home)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/seaside-nm", dir)

	dir, err = dataDirFor(1000, "/xdg", home)
	require.NoError(t, err)
	assert.Equal(t, "/xdg/seaside-nm", dir)

	dir, err = dataDirFor(1000, "relative", home)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.local/share/seaside-nm", dir)
}

func TestEnableFileLogging(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", LogFileName)
	logger := NewLogger(&bytes.Buffer{}, LevelInfo)

	require.NoError(t, logger.EnableFileLogging(logPath))
	logger.Info("to file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestAppLogger_JournalPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelDebug)
	logger.SetJournal(true)

	logger.Warn("link down")
	logger.Fatal("engine failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "<4>[WARN] "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "<2>[FATAL] "), lines[1])
	assert.NotContains(t, buf.String(), time.Now().Format("2006/01/02"))
}

func TestEnableFileLogging_FileKeepsTimestamps(t *testing.T) {
	var buf bytes.Buffer
	logPath := filepath.Join(t.TempDir(), LogFileName)
	logger := NewLogger(&buf, LevelInfo)
	logger.SetJournal(true)

	require.NoError(t, logger.EnableFileLogging(logPath))
	logger.Info("session started")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), time.Now().Format("2006/01/02")))
	assert.True(t, strings.HasPrefix(buf.String(), "<6>"))
}

func TestRotatingFile_RotatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	r, err := openRotatingFile(path, 64, 2)
	require.NoError(t, err)
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time {
		stamp = stamp.Add(time.Second)
		return stamp
	}

	line := []byte(strings.Repeat("x", 40) + "\n")
	for i := 0; i < 5; i++ {
		_, err := r.Write(line)
		require.NoError(t, err)
	}
	require.NoError(t, r.Close())

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, line, current, "each write past the limit starts a new file")

	backups, _ := filepath.Glob(path + ".*.gz")
	assert.Len(t, backups, 2, "old backups are pruned")
}

func TestRotatingFile_RotatesOversizedFileOnOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 1024)), 0600))

	r, err := openRotatingFile(path, 512, 2)
	require.NoError(t, err)
	defer r.Close()

	assert.Zero(t, r.size)
	backups, _ := filepath.Glob(path + ".*")
	assert.Len(t, backups, 1)
}

func TestAppLogger_Redirect(t *testing.T) {
	var primary, silenced bytes.Buffer
	logger := NewLogger(&primary, LevelInfo)

	restore := logger.Redirect(&silenced)
	logger.Info("hidden")
	restore()
	logger.Info("visible")

	assert.Contains(t, silenced.String(), "hidden")
	assert.NotContains(t, primary.String(), "hidden")
	assert.Contains(t, primary.String(), "visible")
}
