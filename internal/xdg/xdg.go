// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

// Package xdg resolves tripdesk's XDG base directories.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "tripdesk"

// ConfigDir returns $XDG_CONFIG_HOME/tripdesk, falling back to
// ~/.config/tripdesk.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// MailTransportFile returns the default SMTP transport file path.
func MailTransportFile() string {
	return filepath.Join(ConfigDir(), "smtp.yaml")
}
