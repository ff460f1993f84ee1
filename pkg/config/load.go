package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return filepath.Join(DefaultRoot(), "config.toml")
}

// Load builds the effective configuration: defaults, then the TOML file
// at path if it exists, then environment overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Default("")
	if err := mergeFile(&cfg, path); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays IMTHEDEV_* environment variables onto cfg. The
// common provider key names are honored as aliases.
func applyEnv(cfg *Config) {
	setStr := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(name); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setStr("IMTHEDEV_DATABASE_PATH", &cfg.Database.Path)
	setInt("IMTHEDEV_DATABASE_TIMEOUT", &cfg.Database.TimeoutSeconds)

	setStr("IMTHEDEV_STORAGE_STATE_FILE", &cfg.Storage.StateFile)

	setStr("IMTHEDEV_AI_DEFAULT_MODEL", &cfg.AI.DefaultModel)
	setStr("IMTHEDEV_AI_CLAUDE_API_KEY", &cfg.AI.ClaudeAPIKey)
	setStr("IMTHEDEV_AI_OPENAI_API_KEY", &cfg.AI.OpenAIAPIKey)
	setInt("IMTHEDEV_AI_REQUEST_TIMEOUT", &cfg.AI.TimeoutSeconds)
	setInt("IMTHEDEV_AI_MAX_RETRIES", &cfg.AI.MaxRetries)
	setStr("ANTHROPIC_API_KEY", &cfg.AI.ClaudeAPIKey)
	setStr("CLAUDE_API_KEY", &cfg.AI.ClaudeAPIKey)
	setStr("OPENAI_API_KEY", &cfg.AI.OpenAIAPIKey)

	setStr("IMTHEDEV_UI_THEME", &cfg.UI.Theme)
	setBool("IMTHEDEV_UI_AUTOPILOT_ENABLED", &cfg.UI.AutopilotEnabled)
	setBool("IMTHEDEV_UI_SHOW_AI_REASONING", &cfg.UI.ShowAIReasoning)

	setBool("IMTHEDEV_SECURITY_REQUIRE_APPROVAL", &cfg.Security.RequireApproval)

	setBool("IMTHEDEV_DEBUG", &cfg.Debug)
}

// WriteDefault creates a config file with the default settings at path,
// refusing to clobber an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(Default(""))
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
