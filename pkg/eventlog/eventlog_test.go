package eventlog //nolint:testpackage // white-box tests need access to unexported fields

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imthedev/pkg/events"

	_ "modernc.org/sqlite"
)

// lifecyclePayload mimics the command lifecycle payload shape.
type lifecyclePayload struct {
	CommandID string `json:"command_id"`
	ProjectID string `json:"project_id"`
	Text      string `json:"command_text,omitempty"`
}

func newTestLog(t *testing.T) (*sql.DB, *events.Bus, *Recorder) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus()
	rec, err := NewRecorder(context.Background(), db, bus)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	t.Cleanup(rec.Close)
	return db, bus, rec
}

func TestRecorderCapturesPublishedEvents(t *testing.T) {
	db, bus, _ := newTestLog(t)
	ctx := context.Background()

	bus.Publish(ctx, events.New(events.CommandProposed, lifecyclePayload{
		CommandID: "cmd-1", ProjectID: "proj-1", Text: "ls -la",
	}))
	bus.Publish(ctx, events.New(events.CommandApproved, lifecyclePayload{
		CommandID: "cmd-1", ProjectID: "proj-1",
	}))

	entries, err := NewReader(db).Query(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Type != string(events.CommandApproved) || entries[1].Type != string(events.CommandProposed) {
		t.Fatalf("order = [%s %s]", entries[0].Type, entries[1].Type)
	}
	if entries[1].CommandID != "cmd-1" || entries[1].ProjectID != "proj-1" {
		t.Fatalf("correlation ids = %q/%q", entries[1].CommandID, entries[1].ProjectID)
	}
	if !strings.Contains(entries[1].Payload, `"ls -la"`) {
		t.Fatalf("payload = %s", entries[1].Payload)
	}
	if entries[1].EventID == "" {
		t.Fatal("event id missing")
	}
}

func TestRecorderHandlesPayloadWithoutIDs(t *testing.T) {
	db, bus, _ := newTestLog(t)
	ctx := context.Background()

	bus.Publish(ctx, events.New(events.StateChanged, map[string]any{"autopilot": true}))

	entries, err := NewReader(db).Query(ctx, QueryOpts{Type: string(events.StateChanged)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].CommandID != "" || entries[0].ProjectID != "" {
		t.Fatalf("ids = %q/%q, want empty", entries[0].CommandID, entries[0].ProjectID)
	}
}

func TestQueryFilters(t *testing.T) {
	db, bus, _ := newTestLog(t)
	ctx := context.Background()

	for _, p := range []lifecyclePayload{
		{CommandID: "a", ProjectID: "p1"},
		{CommandID: "b", ProjectID: "p1"},
		{CommandID: "c", ProjectID: "p2"},
	} {
		bus.Publish(ctx, events.New(events.CommandProposed, p))
	}
	bus.Publish(ctx, events.New(events.CommandApproved, lifecyclePayload{CommandID: "a", ProjectID: "p1"}))

	reader := NewReader(db)

	byCommand, err := reader.Query(ctx, QueryOpts{CommandID: "a"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byCommand) != 2 {
		t.Fatalf("command filter: %d entries, want 2", len(byCommand))
	}

	byProject, err := reader.Query(ctx, QueryOpts{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byProject) != 3 {
		t.Fatalf("project filter: %d entries, want 3", len(byProject))
	}

	byType, err := reader.Query(ctx, QueryOpts{Type: string(events.CommandApproved)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byType) != 1 {
		t.Fatalf("type filter: %d entries, want 1", len(byType))
	}

	limited, err := reader.Query(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit: %d entries, want 2", len(limited))
	}
}

func TestQueryTimeRange(t *testing.T) {
	db, bus, _ := newTestLog(t)
	ctx := context.Background()

	bus.Publish(ctx, events.New(events.CommandProposed, lifecyclePayload{CommandID: "old"}))

	cutoff := time.Now().UTC()
	time.Sleep(10 * time.Millisecond)
	bus.Publish(ctx, events.New(events.CommandProposed, lifecyclePayload{CommandID: "new"}))

	entries, err := NewReader(db).Query(ctx, QueryOpts{After: &cutoff})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].CommandID != "new" {
		t.Fatalf("entries = %+v, want only the later event", entries)
	}

	entries, err = NewReader(db).Query(ctx, QueryOpts{Before: &cutoff})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].CommandID != "old" {
		t.Fatalf("entries = %+v, want only the earlier event", entries)
	}
}

func TestRecorderDetachesOnClose(t *testing.T) {
	db, bus, rec := newTestLog(t)
	ctx := context.Background()

	bus.Publish(ctx, events.New(events.CommandProposed, lifecyclePayload{CommandID: "x"}))
	rec.Close()
	bus.Publish(ctx, events.New(events.CommandProposed, lifecyclePayload{CommandID: "y"}))

	entries, err := NewReader(db).Query(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 after detach", len(entries))
	}
}
