package state

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"imthedev/pkg/events"

	"github.com/google/uuid"
)

// Manager is the sole writer of ApplicationState. Reads are lock-free
// snapshots; mutations serialize through an internal lock, persist
// before becoming visible, and publish StateChanged on success.
type Manager struct {
	bus   *events.Bus
	store Store

	mu  sync.Mutex // serializes Update; guards the store
	cur atomic.Pointer[ApplicationState]
}

// NewManager loads the persisted state, falling back to defaults when
// no state file exists yet.
func NewManager(bus *events.Bus, store Store) (*Manager, error) {
	loaded, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	initial := DefaultState()
	if loaded != nil {
		initial = *loaded
	}
	m := &Manager{bus: bus, store: store}
	m.cur.Store(&initial)
	return m, nil
}

// Get returns the current snapshot. It never blocks on I/O or on a
// concurrent Update.
func (m *Manager) Get() ApplicationState {
	return m.cur.Load().Clone()
}

// AutopilotEnabled reports whether the approval gate may be skipped.
func (m *Manager) AutopilotEnabled() bool {
	return m.cur.Load().AutopilotEnabled
}

// Update applies mutate to a copy of the current state, persists the
// result, then swaps it in and publishes StateChanged. If persistence
// fails the in-memory state is left untouched and the error is
// returned; no event is published.
func (m *Manager) Update(ctx context.Context, mutate func(*ApplicationState)) error {
	old, next, err := m.apply(mutate)
	if err != nil {
		return err
	}

	// Published outside the lock so handlers may call back into the
	// manager. Under concurrent updates the events can arrive out of
	// application order; each payload carries its own Old/New pair.
	m.bus.Publish(ctx, events.New(events.StateChanged, ChangedPayload{
		Old: old,
		New: next,
	}))
	return nil
}

// apply runs one mutation under the lock. The deferred unlock keeps the
// manager usable even when mutate panics.
func (m *Manager) apply(mutate func(*ApplicationState)) (ApplicationState, ApplicationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.cur.Load().Clone()
	next := old.Clone()
	mutate(&next)
	if err := m.store.Save(next); err != nil {
		return ApplicationState{}, ApplicationState{}, fmt.Errorf("persist state: %w", err)
	}
	stored := next.Clone()
	m.cur.Store(&stored)
	return old, next, nil
}

// ToggleAutopilot flips the autopilot flag and returns the new value.
func (m *Manager) ToggleAutopilot(ctx context.Context) (bool, error) {
	var enabled bool
	err := m.Update(ctx, func(s *ApplicationState) {
		s.AutopilotEnabled = !s.AutopilotEnabled
		enabled = s.AutopilotEnabled
	})
	return enabled, err
}

// SetSelectedModel records the active AI backend identifier. The value
// is opaque to the manager.
func (m *Manager) SetSelectedModel(ctx context.Context, model string) error {
	return m.Update(ctx, func(s *ApplicationState) {
		s.SelectedModel = model
	})
}

// SetCurrentProject switches the active project. A nil id clears it.
func (m *Manager) SetCurrentProject(ctx context.Context, id *uuid.UUID) error {
	return m.Update(ctx, func(s *ApplicationState) {
		if id == nil {
			s.CurrentProjectID = nil
			return
		}
		v := *id
		s.CurrentProjectID = &v
	})
}

// SetUIPreference stores one opaque preference value.
func (m *Manager) SetUIPreference(ctx context.Context, key string, value any) error {
	return m.Update(ctx, func(s *ApplicationState) {
		if s.UIPreferences == nil {
			s.UIPreferences = make(map[string]any)
		}
		s.UIPreferences[key] = value
	})
}

// SubscribeToChanges registers a synchronous handler for StateChanged.
func (m *Manager) SubscribeToChanges(h events.Handler) events.Subscription {
	return m.bus.Subscribe(events.StateChanged, h)
}

// Close performs the shutdown flush so the on-disk state reflects the
// final in-memory value.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(*m.cur.Load()); err != nil {
		return fmt.Errorf("final state flush: %w", err)
	}
	return nil
}
