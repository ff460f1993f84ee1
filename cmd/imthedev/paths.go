package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved imthedev state file locations.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home       string // ~/.imthedev or IMTHEDEV_HOME
	ConfigPath string // config.toml or IMTHEDEV_CONFIG_PATH
}

// ResolvePaths returns the base paths, respecting env var overrides.
// Environment variables:
//   - IMTHEDEV_HOME: base directory for all state (default: ~/.imthedev)
//   - IMTHEDEV_CONFIG_PATH: config file (default: $IMTHEDEV_HOME/config.toml)
//
// Database and state file locations come from the loaded config, which
// has its own IMTHEDEV_* overrides.
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	return &Paths{
		Home:       home,
		ConfigPath: resolvePathWithEnv("IMTHEDEV_CONFIG_PATH", home, "config.toml"),
	}, nil
}

// resolveHome returns the imthedev home directory from IMTHEDEV_HOME or
// ~/.imthedev.
func resolveHome() (string, error) {
	if v := os.Getenv("IMTHEDEV_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".imthedev"), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
