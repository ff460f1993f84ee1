package config //nolint:testpackage // white-box tests need access to unexported fields

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("/home/probe/.imthedev")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !strings.HasPrefix(cfg.Database.Path, "/home/probe/.imthedev") {
		t.Fatalf("database path = %q, not rooted under home", cfg.Database.Path)
	}
	if !cfg.Security.RequireApproval {
		t.Fatal("approval gate disabled by default")
	}
	if len(cfg.Security.DangerousCommands) == 0 {
		t.Fatal("no dangerous command patterns by default")
	}
}

func TestDefaultRootEnvOverride(t *testing.T) {
	t.Setenv("IMTHEDEV_HOME", "/srv/imthedev")
	if got := DefaultRoot(); got != "/srv/imthedev" {
		t.Fatalf("DefaultRoot = %q", got)
	}
	cfg := Default("")
	if !strings.HasPrefix(cfg.Storage.StateFile, "/srv/imthedev") {
		t.Fatalf("state file = %q, not under IMTHEDEV_HOME", cfg.Storage.StateFile)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.DefaultModel != "claude" {
		t.Fatalf("model = %q", cfg.AI.DefaultModel)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
debug = true

[ui]
theme = "light"

[ai]
default_model = "gemini"

[security]
dangerous_commands = ["shutdown"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug || cfg.UI.Theme != "light" || cfg.AI.DefaultModel != "gemini" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.Security.DangerousCommands) != 1 || cfg.Security.DangerousCommands[0] != "shutdown" {
		t.Fatalf("dangerous commands = %v", cfg.Security.DangerousCommands)
	}
	// Untouched sections keep their defaults.
	if cfg.Database.TimeoutSeconds != 30 {
		t.Fatalf("database timeout = %d", cfg.Database.TimeoutSeconds)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"light\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IMTHEDEV_UI_THEME", "auto")
	t.Setenv("IMTHEDEV_DATABASE_TIMEOUT", "60")
	t.Setenv("IMTHEDEV_UI_AUTOPILOT_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UI.Theme != "auto" {
		t.Fatalf("theme = %q, env override lost", cfg.UI.Theme)
	}
	if cfg.Database.TimeoutSeconds != 60 {
		t.Fatalf("timeout = %d", cfg.Database.TimeoutSeconds)
	}
	if !cfg.UI.AutopilotEnabled {
		t.Fatal("autopilot env override lost")
	}
}

func TestProviderKeyAliases(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.ClaudeAPIKey != "sk-ant-test" {
		t.Fatalf("claude key = %q", cfg.AI.ClaudeAPIKey)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("invalid theme accepted")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ui\ntheme ="), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed TOML accepted")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default("")
	cfg.UI.Theme = "neon"
	cfg.AI.DefaultModel = ""
	cfg.Database.TimeoutSeconds = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	msg := err.Error()
	for _, want := range []string{"theme", "default model", "timeout"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after WriteDefault: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("written defaults invalid: %v", err)
	}

	if err := WriteDefault(path); err == nil {
		t.Fatal("WriteDefault clobbered existing file")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"dark\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 4)
	go func() {
		_ = Watch(ctx, path, func(c Config) { reloaded <- c }, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"light\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.UI.Theme != "light" {
			t.Fatalf("reloaded theme = %q", cfg.UI.Theme)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}
}

func TestWatchReportsInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"dark\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 4)
	go func() {
		_ = Watch(ctx, path,
			func(Config) { t.Error("invalid config reloaded") },
			func(err error) { errs <- err })
	}()

	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("nil error reported")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no error after invalid config change")
	}
}
