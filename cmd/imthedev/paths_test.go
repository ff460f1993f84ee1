package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_Defaults(t *testing.T) {
	// Clear all env overrides.
	t.Setenv("IMTHEDEV_HOME", "")
	t.Setenv("IMTHEDEV_CONFIG_PATH", "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("get home dir: %v", err)
	}

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths() error: %v", err)
	}

	expectedBase := filepath.Join(home, ".imthedev")
	if paths.Home != expectedBase {
		t.Errorf("Home = %q, want %q", paths.Home, expectedBase)
	}
	if paths.ConfigPath != filepath.Join(expectedBase, "config.toml") {
		t.Errorf("ConfigPath = %q, want %q", paths.ConfigPath, filepath.Join(expectedBase, "config.toml"))
	}
}

func TestResolvePaths_HomeOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("IMTHEDEV_HOME", tmpDir)
	t.Setenv("IMTHEDEV_CONFIG_PATH", "")

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths() error: %v", err)
	}
	if paths.Home != tmpDir {
		t.Errorf("Home = %q, want %q", paths.Home, tmpDir)
	}
	if paths.ConfigPath != filepath.Join(tmpDir, "config.toml") {
		t.Errorf("ConfigPath = %q, want under IMTHEDEV_HOME", paths.ConfigPath)
	}
}

func TestResolvePaths_SpecificOverrideWins(t *testing.T) {
	tmpDir := t.TempDir()
	custom := filepath.Join(tmpDir, "custom.toml")
	t.Setenv("IMTHEDEV_HOME", filepath.Join(tmpDir, "home"))
	t.Setenv("IMTHEDEV_CONFIG_PATH", custom)

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths() error: %v", err)
	}
	if paths.ConfigPath != custom {
		t.Errorf("ConfigPath = %q, want %q", paths.ConfigPath, custom)
	}
}
