package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestName is the per-project settings file, relative to the
// project root.
const ManifestName = ".imthedev/project.yaml"

// Manifest is the checked-in per-project settings file. Fields left
// empty in the file keep their stored values.
type Manifest struct {
	Name     string   `yaml:"name,omitempty"`
	Settings Settings `yaml:"settings"`
}

// LoadManifest reads the manifest under root, returning (nil, nil)
// when the project has none.
func LoadManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, ManifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse project manifest: %w", err)
	}
	return &m, nil
}

// WriteManifest writes m under root, creating the .imthedev directory
// if needed.
func WriteManifest(root string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode project manifest: %w", err)
	}
	path := filepath.Join(root, ManifestName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write project manifest: %w", err)
	}
	return nil
}

// Apply overlays the manifest's non-zero settings onto base and returns
// the result. Boolean overrides always apply.
func (m *Manifest) Apply(base Settings) Settings {
	out := base
	out.AutoApprove = m.Settings.AutoApprove
	if m.Settings.DefaultModel != "" {
		out.DefaultModel = m.Settings.DefaultModel
	}
	if m.Settings.CommandTimeout > 0 {
		out.CommandTimeout = m.Settings.CommandTimeout
	}
	if len(m.Settings.Environment) > 0 {
		if out.Environment == nil {
			out.Environment = make(map[string]string, len(m.Settings.Environment))
		} else {
			merged := make(map[string]string, len(out.Environment)+len(m.Settings.Environment))
			for k, v := range out.Environment {
				merged[k] = v
			}
			out.Environment = merged
		}
		for k, v := range m.Settings.Environment {
			out.Environment[k] = v
		}
	}
	return out
}
