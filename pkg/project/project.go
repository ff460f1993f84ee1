// Package project manages the registry of projects the application can
// delegate commands into. Projects live in a SQLite database; a project
// directory may additionally carry a YAML manifest with per-project
// settings that override the stored ones.
package project

import (
	"time"

	"github.com/google/uuid"
)

// Project is one registered working directory.
type Project struct {
	ID        uuid.UUID
	Name      string
	Path      string
	CreatedAt time.Time
	Settings  Settings
	IsCurrent bool
}

// Settings are per-project overrides for command execution.
type Settings struct {
	AutoApprove    bool              `json:"auto_approve" yaml:"auto_approve"`
	DefaultModel   string            `json:"default_ai_model" yaml:"default_ai_model"`
	CommandTimeout int               `json:"command_timeout" yaml:"command_timeout"`
	Environment    map[string]string `json:"environment_vars" yaml:"environment_vars"`
}

// DefaultSettings mirror a project created without overrides.
func DefaultSettings() Settings {
	return Settings{
		DefaultModel:   "claude",
		CommandTimeout: 300,
	}
}
