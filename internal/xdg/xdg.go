// Package xdg resolves XDG Base Directory paths for keyward.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "keyward"

// ConfigDir returns the keyward config directory. Checks XDG_CONFIG_HOME
// first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default configuration file path, consulted when
// no explicit --config flag is given.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "keyward.yaml")
}
