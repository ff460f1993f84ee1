package project //nolint:testpackage // white-box tests need access to unexported fields

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "projects.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(context.Background(), db)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	return repo
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	dir := t.TempDir()

	created, err := repo.Create(ctx, "demo", dir, DefaultSettings())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("project id not assigned")
	}

	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "demo" || got.Path != dir {
		t.Fatalf("got = %+v", got)
	}
	if got.Settings.DefaultModel != "claude" || got.Settings.CommandTimeout != 300 {
		t.Fatalf("settings = %+v", got.Settings)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at changed across round trip: %v vs %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestCreateRejectsMissingPath(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Create(context.Background(), "x", "/does/not/exist", Settings{}); err == nil {
		t.Fatal("missing path accepted")
	}
}

func TestCreateRejectsFilePath(t *testing.T) {
	repo := newTestRepo(t)
	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Create(context.Background(), "x", file, Settings{}); err == nil {
		t.Fatal("file path accepted as project root")
	}
}

func TestCreateDuplicatePath(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	dir := t.TempDir()

	if _, err := repo.Create(ctx, "first", dir, Settings{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := repo.Create(ctx, "second", dir, Settings{})
	if !errors.Is(err, ErrPathExists) {
		t.Fatalf("err = %v, want ErrPathExists", err)
	}
}

func TestGetUnknown(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListOrdersByCreation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	names := []string{"alpha", "beta", "gamma"}
	for _, name := range names {
		if _, err := repo.Create(ctx, name, t.TempDir(), Settings{}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != len(names) {
		t.Fatalf("len = %d, want %d", len(got), len(names))
	}
	for i, name := range names {
		if got[i].Name != name {
			t.Fatalf("got[%d] = %s, want %s", i, got[i].Name, name)
		}
	}
}

func TestUpdateSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.Create(ctx, "demo", t.TempDir(), DefaultSettings())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	s := p.Settings
	s.AutoApprove = true
	s.Environment = map[string]string{"CI": "1"}
	if err := repo.UpdateSettings(ctx, p.ID, s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	got, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Settings.AutoApprove || got.Settings.Environment["CI"] != "1" {
		t.Fatalf("settings = %+v", got.Settings)
	}

	if err := repo.UpdateSettings(ctx, uuid.New(), s); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.Create(ctx, "demo", t.TempDir(), Settings{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted project still readable: %v", err)
	}
	if err := repo.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestSetCurrentIsExclusive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.Create(ctx, "a", t.TempDir(), Settings{})
	b, _ := repo.Create(ctx, "b", t.TempDir(), Settings{})

	if _, err := repo.Current(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Current before set: err = %v, want ErrNotFound", err)
	}

	if err := repo.SetCurrent(ctx, a.ID); err != nil {
		t.Fatalf("SetCurrent a: %v", err)
	}
	if err := repo.SetCurrent(ctx, b.ID); err != nil {
		t.Fatalf("SetCurrent b: %v", err)
	}

	cur, err := repo.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.ID != b.ID {
		t.Fatalf("current = %s, want %s", cur.ID, b.ID)
	}

	got, _ := repo.Get(ctx, a.ID)
	if got.IsCurrent {
		t.Fatal("previous current not cleared")
	}
}

func TestSetCurrentUnknown(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a, _ := repo.Create(ctx, "a", t.TempDir(), Settings{})
	if err := repo.SetCurrent(ctx, a.ID); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}

	if err := repo.SetCurrent(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// The failed call must not have cleared the existing current flag.
	cur, err := repo.Current(ctx)
	if err != nil || cur.ID != a.ID {
		t.Fatalf("current after failed set = (%v, %v)", cur.ID, err)
	}
}
