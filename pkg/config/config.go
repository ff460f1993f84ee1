// Package config loads application settings from a TOML file with
// environment variable overrides. Precedence, highest first: process
// environment, config file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the complete application configuration, organized by domain.
type Config struct {
	Database Database `toml:"database"`
	Storage  Storage  `toml:"storage"`
	AI       AI       `toml:"ai"`
	UI       UI       `toml:"ui"`
	Security Security `toml:"security"`

	Debug bool `toml:"debug"`
}

type Database struct {
	// Path to the SQLite database file.
	Path string `toml:"path"`
	// TimeoutSeconds is the connection busy timeout.
	TimeoutSeconds int `toml:"timeout"`
}

type Storage struct {
	StateFile string `toml:"state_file"`
}

type AI struct {
	DefaultModel   string  `toml:"default_model"`
	ClaudeAPIKey   string  `toml:"claude_api_key"`
	OpenAIAPIKey   string  `toml:"openai_api_key"`
	TimeoutSeconds int     `toml:"request_timeout"`
	MaxRetries     int     `toml:"max_retries"`
	RetryDelaySecs float64 `toml:"retry_delay"`
}

type UI struct {
	Theme               string `toml:"theme"`
	AutopilotEnabled    bool   `toml:"autopilot_enabled"`
	ShowAIReasoning     bool   `toml:"show_ai_reasoning"`
	CommandConfirmation bool   `toml:"command_confirmation"`
	MaxLogLines         int    `toml:"max_log_lines"`
}

type Security struct {
	RequireApproval    bool     `toml:"require_approval"`
	DangerousCommands  []string `toml:"dangerous_commands"`
	AllowedDirectories []string `toml:"allowed_directories"`
	BlockedDirectories []string `toml:"blocked_directories"`
}

// Default returns the built-in configuration rooted under root. When
// root is empty it falls back to IMTHEDEV_HOME, then ~/.imthedev.
func Default(root string) Config {
	if root == "" {
		root = DefaultRoot()
	}
	return Config{
		Database: Database{
			Path:           filepath.Join(root, "imthedev.db"),
			TimeoutSeconds: 30,
		},
		Storage: Storage{
			StateFile: filepath.Join(root, "state.json"),
		},
		AI: AI{
			DefaultModel:   "claude",
			TimeoutSeconds: 30,
			MaxRetries:     3,
			RetryDelaySecs: 1.0,
		},
		UI: UI{
			Theme:               "dark",
			ShowAIReasoning:     true,
			CommandConfirmation: true,
			MaxLogLines:         1000,
		},
		Security: Security{
			RequireApproval: true,
			DangerousCommands: []string{
				"rm", "rmdir", "del", "format", "fdisk", "mkfs", "dd",
				"chmod 777", "chown", "sudo rm", "sudo chmod",
			},
			BlockedDirectories: []string{"/etc", "/boot", "/sys", "/proc", "/dev"},
		},
	}
}

// DefaultRoot resolves the state directory: IMTHEDEV_HOME if set,
// otherwise ~/.imthedev.
func DefaultRoot() string {
	if v := os.Getenv("IMTHEDEV_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".imthedev"
	}
	return filepath.Join(home, ".imthedev")
}

var validThemes = map[string]bool{"dark": true, "light": true, "auto": true}

// Validate reports every problem with the configuration, joined into a
// single error. A nil return means the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if !validThemes[c.UI.Theme] {
		errs = append(errs, fmt.Errorf("invalid ui theme %q", c.UI.Theme))
	}
	if c.Database.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("database timeout must be positive"))
	}
	if c.AI.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("ai request timeout must be positive"))
	}
	if c.AI.MaxRetries < 0 {
		errs = append(errs, errors.New("ai max retries must be non-negative"))
	}
	if c.AI.DefaultModel == "" {
		errs = append(errs, errors.New("ai default model must be set"))
	}
	return errors.Join(errs...)
}
