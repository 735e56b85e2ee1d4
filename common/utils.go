// Package common provides shared constants, types, and utilities
// used across the seaside NetworkManager plugin.
package common

import (
	"os"
	"path/filepath"
)

// System locations used when the plugin runs as root, which is how
// NetworkManager starts it.
const (
	systemConfigDir = "/etc/seaside-nm"
	systemDataDir   = "/var/lib/seaside-nm"
)

// GetConfigDir returns the configuration directory, creating it if needed:
// /etc/seaside-nm for root, the user config directory otherwise.
func GetConfigDir() (string, error) {
	dir, err := configDirFor(os.Geteuid(), os.UserConfigDir)
	if err != nil {
		return "", err
	}
	return ensureDir(dir, "config")
}

// GetDataDir returns the data directory, creating it if needed:
// /var/lib/seaside-nm for root, $XDG_DATA_HOME/seaside-nm or
// ~/.local/share/seaside-nm otherwise.
func GetDataDir() (string, error) {
	dir, err := dataDirFor(os.Geteuid(), os.Getenv("XDG_DATA_HOME"), os.UserHomeDir)
	if err != nil {
		return "", err
	}
	return ensureDir(dir, "data")
}

func configDirFor(euid int, userConfigDir func() (string, error)) (string, error) {
	if euid == 0 {
		return systemConfigDir, nil
	}
	base, err := userConfigDir()
	if err != nil {
		return "", WrapError(err, "failed to get config directory")
	}
	return filepath.Join(base, ConfigDirName), nil
}

func dataDirFor(euid int, xdgDataHome string, homeDir func() (string, error)) (string, error) {
	if euid == 0 {
		return systemDataDir, nil
	}
	if filepath.IsAbs(xdgDataHome) {
		return filepath.Join(xdgDataHome, ConfigDirName), nil
	}
	home, err := homeDir()
	if err != nil {
		return "", WrapError(err, "failed to get home directory")
	}
	return filepath.Join(home, ".local", "share", ConfigDirName), nil
}

func ensureDir(dir, kind string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", WrapError(err, "failed to create "+kind+" directory")
	}
	return dir, nil
}

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// isSymlink reports whether path is a symbolic link.
// A missing path is not a symlink.
func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}
