// Package state owns the process-wide application state record. A single
// Manager instance is the sole writer; every other component reads
// snapshots. Each successful mutation is persisted before it becomes
// visible, so in-memory and on-disk state never diverge silently.
package state

import "github.com/google/uuid"

// ApplicationState is the durable, process-wide configuration record.
// Values returned by the Manager are snapshots; mutating one has no
// effect on the live state.
type ApplicationState struct {
	CurrentProjectID *uuid.UUID     `json:"current_project_id,omitempty"`
	AutopilotEnabled bool           `json:"autopilot_enabled"`
	SelectedModel    string         `json:"selected_model"`
	UIPreferences    map[string]any `json:"ui_preferences,omitempty"`
}

// DefaultState is the state of a fresh installation with no persisted file.
func DefaultState() ApplicationState {
	return ApplicationState{
		SelectedModel: "claude",
	}
}

// Clone returns a deep copy. The UIPreferences map is copied one level
// deep; preference values are treated as opaque and shared.
func (s ApplicationState) Clone() ApplicationState {
	out := s
	if s.CurrentProjectID != nil {
		id := *s.CurrentProjectID
		out.CurrentProjectID = &id
	}
	if s.UIPreferences != nil {
		out.UIPreferences = make(map[string]any, len(s.UIPreferences))
		for k, v := range s.UIPreferences {
			out.UIPreferences[k] = v
		}
	}
	return out
}

// ChangedPayload accompanies the StateChanged event, carrying both
// snapshots so consumers can react to transitions without re-reading.
type ChangedPayload struct {
	Old ApplicationState `json:"old_state"`
	New ApplicationState `json:"new_state"`
}
