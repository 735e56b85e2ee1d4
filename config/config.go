// Package config loads the plugin configuration.
// Settings come from a YAML file, then an optional env file and SEASIDE_*
// environment variables override them.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yllada/seaside-nm/common"
)

// Environment variables overriding file values.
const (
	EnvLogLevel     = "SEASIDE_LOG_LEVEL"
	EnvEngineModule = "SEASIDE_ENGINE_MODULE"
	EnvBus          = "SEASIDE_BUS"
	EnvJournal      = "SEASIDE_JOURNAL"
)

// Config represents the plugin configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Engine  EngineConfig  `yaml:"engine"`
	Events  EventsConfig  `yaml:"events"`
	DBus    DBusConfig    `yaml:"dbus"`
	Journal JournalConfig `yaml:"journal"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// File enables file logging when set.
	File string `yaml:"file"`
	// MaxFileSize is the rotation threshold in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
	// MaxBackups is the number of rotated files kept.
	MaxBackups int `yaml:"max_backups"`
}

// EngineConfig selects the engine module.
type EngineConfig struct {
	// Module is a module name resolved through the loader search path.
	Module string `yaml:"module"`
}

// EventsConfig sizes the host event loop.
type EventsConfig struct {
	QueueSize      int           `yaml:"queue_size"`
	HandoffTimeout time.Duration `yaml:"handoff_timeout"`
}

// DBusConfig configures the plugin service.
type DBusConfig struct {
	// Bus is "system" or "session".
	Bus         string        `yaml:"bus"`
	ServiceName string        `yaml:"service_name"`
	IdleQuit    time.Duration `yaml:"idle_quit"`
}

// JournalConfig configures the session journal.
type JournalConfig struct {
	// Path of the SQLite database; empty disables the journal.
	Path string `yaml:"path"`
	// Retention is how long finished sessions are kept; 0 keeps them all.
	Retention time.Duration `yaml:"retention"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	journal := ""
	if dir, err := common.GetDataDir(); err == nil {
		journal = filepath.Join(dir, common.JournalFileName)
	}
	return &Config{
		Log: LogConfig{
			Level:       "info",
			MaxFileSize: 5 * 1024 * 1024,
			MaxBackups:  5,
		},
		Engine: EngineConfig{Module: common.DefaultModuleName},
		Events: EventsConfig{
			QueueSize:      common.DefaultQueueSize,
			HandoffTimeout: common.DefaultHandoffTimeout,
		},
		DBus: DBusConfig{
			Bus:         "system",
			ServiceName: common.DefaultServiceName,
			IdleQuit:    common.DefaultIdleQuit,
		},
		Journal: JournalConfig{Path: journal, Retention: common.DefaultJournalRetention},
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}

// Load reads the configuration at path, or the default location when path
// is empty. A missing file yields defaults. The env file next to it and
// the process environment are applied on top.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrConfigLoad, err)
		}
		path = p
	}

	cfg := DefaultConfig()
	if err := cfg.readFile(path); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfigLoad, err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), common.EnvFileName)); err != nil {
		return nil, fmt.Errorf("%w: env file: %w", common.ErrConfigLoad, err)
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.validate()
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error opening configuration: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("error parsing configuration: %w", err)
	}
	return nil
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvEngineModule); ok && v != "" {
		c.Engine.Module = v
	}
	if v, ok := lookup(EnvBus); ok && v != "" {
		c.DBus.Bus = v
	}
	if v, ok := lookup(EnvJournal); ok {
		c.Journal.Path = v
	}
}

// validate replaces invalid values with defaults.
func (c *Config) validate() {
	defaults := DefaultConfig()

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if _, ok := common.ParseLevel(c.Log.Level); !ok {
		common.LogWarn("Config: unknown log level %q, using %s", c.Log.Level, defaults.Log.Level)
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.MaxFileSize <= 0 {
		c.Log.MaxFileSize = defaults.Log.MaxFileSize
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = defaults.Log.MaxBackups
	}

	if c.Engine.Module == "" || strings.ContainsRune(c.Engine.Module, '/') {
		if c.Engine.Module != "" {
			common.LogWarn("Config: engine module must be a name, not a path: %q", c.Engine.Module)
		}
		c.Engine.Module = defaults.Engine.Module
	}

	if c.Events.QueueSize <= 0 {
		c.Events.QueueSize = defaults.Events.QueueSize
	}
	if c.Events.HandoffTimeout <= 0 {
		c.Events.HandoffTimeout = defaults.Events.HandoffTimeout
	}

	switch c.DBus.Bus {
	case "system", "session":
	default:
		common.LogWarn("Config: unknown bus %q, using system", c.DBus.Bus)
		c.DBus.Bus = defaults.DBus.Bus
	}
	if c.DBus.ServiceName == "" {
		c.DBus.ServiceName = defaults.DBus.ServiceName
	}
	if c.DBus.IdleQuit < 0 {
		c.DBus.IdleQuit = 0
	}
	if c.Journal.Retention < 0 {
		c.Journal.Retention = 0
	}
}

// LoggerConfig converts the log section for common.InitLogger.
func (c *Config) LoggerConfig() common.LogConfig {
	level, _ := common.ParseLevel(c.Log.Level)
	return common.LogConfig{
		Level:       level,
		FilePath:    c.Log.File,
		MaxFileSize: c.Log.MaxFileSize,
		MaxBackups:  c.Log.MaxBackups,
	}
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}
	return nil
}
