// Package xdg provides XDG Base Directory support for slurmslim.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "slurmslim"

// ConfigHome returns the XDG config home directory.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// ConfigDir returns the slurmslim config directory: ConfigHome()/slurmslim.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), appName)
}
