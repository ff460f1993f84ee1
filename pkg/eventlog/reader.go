package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Entry is one recorded event.
type Entry struct {
	ID        int64
	EventID   string
	Type      string
	CommandID string
	ProjectID string
	Payload   string
	CreatedAt time.Time
}

// QueryOpts specifies filter criteria for querying the trail.
type QueryOpts struct {
	// CommandID filters to one command's lifecycle.
	CommandID string

	// ProjectID filters to events of one project.
	ProjectID string

	// Type filters to a specific event type (e.g. "command.proposed").
	Type string

	// After filters events created at or after this time.
	After *time.Time

	// Before filters events created at or before this time.
	Before *time.Time

	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// Reader provides read-only access to the event trail.
type Reader struct {
	db *sql.DB
}

// NewReader wraps an open database. The schema must already exist.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Query retrieves entries matching opts, newest first. Returns an
// empty slice if nothing matches.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]Entry, error) {
	query, args := buildQuery(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.EventID, &e.Type, &e.CommandID, &e.ProjectID, &e.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := "SELECT id, event_id, type, command_id, project_id, payload, created_at FROM events WHERE 1=1"

	if opts.CommandID != "" {
		conditions = append(conditions, "command_id = ?")
		args = append(args, opts.CommandID)
	}
	if opts.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, opts.ProjectID)
	}
	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.Type)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format(timeLayout))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.UTC().Format(timeLayout))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}
