// Package common provides shared constants, types, and utilities
// used across the seaside NetworkManager plugin.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the plugin.
	AppName = "SeasideVPN NetworkManager plugin"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "seaside-nm"
	// DefaultServiceName is the D-Bus name NetworkManager expects the plugin to own.
	DefaultServiceName = "org.freedesktop.NetworkManager.seasidevpn"
	// DefaultModuleName is the engine module name resolved through the loader search path.
	DefaultModuleName = "libseaside.so"
)

// File names used by the application.
const (
	ConfigFileName   = "config.yaml"
	EnvFileName      = "seaside.env"
	ProfilesFileName = "profiles.yaml"
	JournalFileName  = "sessions.db"
	LogFileName      = "seaside-nm.log"
)

// Connection setting keys read from the NetworkManager "vpn" setting.
const (
	KeyCertificate = "certificate"
	KeyCertifile   = "certifile"
	KeyProtocol    = "protocol"
)

// Default queue and timer values.
const (
	// DefaultQueueSize is the capacity of the host event queue.
	DefaultQueueSize = 64
	// DefaultHandoffTimeout bounds how long an engine thread may wait to enqueue.
	DefaultHandoffTimeout = 250 * time.Millisecond
	// DefaultIdleQuit is how long the service lingers without a session.
	DefaultIdleQuit = 180 * time.Second
	// DefaultJournalRetention is how long finished sessions stay in the journal.
	DefaultJournalRetention = 30 * 24 * time.Hour
)
