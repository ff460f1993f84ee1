// Package eventlog persists the application's event trail to SQLite.
// The Recorder subscribes to every bus event and appends one row per
// event; the Reader queries the trail for display and audit.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"imthedev/pkg/events"
)

// timeLayout is fixed-width so lexical comparison in SQL matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id   TEXT NOT NULL,
    type       TEXT NOT NULL,
    command_id TEXT NOT NULL DEFAULT '',
    project_id TEXT NOT NULL DEFAULT '',
    payload    TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_command ON events(command_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// Recorder appends bus events to the trail. It registers as a
// synchronous wildcard handler so a recorded event is durable before
// Publish returns.
type Recorder struct {
	db  *sql.DB
	sub events.Subscription
	bus *events.Bus
}

// NewRecorder ensures the schema exists and subscribes to the bus.
func NewRecorder(ctx context.Context, db *sql.DB, bus *events.Bus) (*Recorder, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create events schema: %w", err)
	}
	r := &Recorder{db: db, bus: bus}
	r.sub = bus.SubscribeAll(r.record)
	return r, nil
}

// Close detaches the recorder from the bus. The database is owned by
// the caller and left open.
func (r *Recorder) Close() {
	r.bus.Unsubscribe(r.sub)
}

// payloadIDs are the correlation fields shared by command lifecycle
// payloads. Payloads without them record empty strings.
type payloadIDs struct {
	CommandID string `json:"command_id"`
	ProjectID string `json:"project_id"`
}

func (r *Recorder) record(ctx context.Context, ev events.Event) error {
	blob, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", ev.Type, err)
	}
	var ids payloadIDs
	// Payloads are plain structs; round-tripping through JSON picks out
	// the correlation fields without importing the producer packages.
	_ = json.Unmarshal(blob, &ids)

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO events (event_id, type, command_id, project_id, payload, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), string(ev.Type), ids.CommandID, ids.ProjectID,
		string(blob), ev.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.Type, err)
	}
	return nil
}
