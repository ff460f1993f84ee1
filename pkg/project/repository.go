package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("project not found")
	ErrPathExists = errors.New("project already registered at path")
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    path       TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    settings   TEXT NOT NULL DEFAULT '{}',
    is_current INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_projects_path ON projects(path);
CREATE INDEX IF NOT EXISTS idx_projects_current ON projects(is_current) WHERE is_current = 1;
`

// Repository stores projects in SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps db and ensures the schema exists.
func NewRepository(ctx context.Context, db *sql.DB) (*Repository, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create projects schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Create registers a new project rooted at path. The path must be an
// existing directory and not already registered.
func (r *Repository) Create(ctx context.Context, name, path string, settings Settings) (Project, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Project{}, fmt.Errorf("project path: %w", err)
	}
	if !info.IsDir() {
		return Project{}, fmt.Errorf("project path %s is not a directory", path)
	}

	p := Project{
		ID:        uuid.New(),
		Name:      name,
		Path:      path,
		CreatedAt: time.Now().UTC(),
		Settings:  settings,
	}
	blob, err := json.Marshal(p.Settings)
	if err != nil {
		return Project{}, fmt.Errorf("encode settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO projects (id, name, path, created_at, settings, is_current)
        VALUES (?, ?, ?, ?, ?, 0)`,
		p.ID.String(), p.Name, p.Path, p.CreatedAt.Format(time.RFC3339Nano), string(blob))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return Project{}, fmt.Errorf("%w: %s", ErrPathExists, path)
		}
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// Get returns the project with the given id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Project, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, name, path, created_at, settings, is_current
        FROM projects WHERE id = ?`, id.String())
	return scanProject(row)
}

// GetByPath returns the project registered at path.
func (r *Repository) GetByPath(ctx context.Context, path string) (Project, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, name, path, created_at, settings, is_current
        FROM projects WHERE path = ?`, path)
	return scanProject(row)
}

// List returns all projects in registration order.
func (r *Repository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, name, path, created_at, settings, is_current
        FROM projects ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateSettings replaces the stored settings for a project.
func (r *Repository) UpdateSettings(ctx context.Context, id uuid.UUID, settings Settings) error {
	blob, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET settings = ? WHERE id = ?`, string(blob), id.String())
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return requireAffected(res, id)
}

// Delete removes a project record. Files on disk are untouched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireAffected(res, id)
}

// SetCurrent marks id as the active project, clearing any previous one.
func (r *Repository) SetCurrent(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET is_current = 0`); err != nil {
		return fmt.Errorf("clear current project: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE projects SET is_current = 1 WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("set current project: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Current returns the active project, or ErrNotFound when none is set.
func (r *Repository) Current(ctx context.Context) (Project, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, name, path, created_at, settings, is_current
        FROM projects WHERE is_current = 1`)
	return scanProject(row)
}

func requireAffected(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var (
		p         Project
		idStr     string
		createdAt string
		settings  string
		current   int
	)
	err := row.Scan(&idStr, &p.Name, &p.Path, &createdAt, &settings, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("scan project: %w", err)
	}
	if p.ID, err = uuid.Parse(idStr); err != nil {
		return Project{}, fmt.Errorf("parse project id %q: %w", idStr, err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Project{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return Project{}, fmt.Errorf("parse settings: %w", err)
	}
	p.IsCurrent = current == 1
	return p, nil
}
