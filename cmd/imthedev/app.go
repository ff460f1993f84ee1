package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"imthedev/pkg/ai"
	"imthedev/pkg/config"
	"imthedev/pkg/engine"
	"imthedev/pkg/eventlog"
	"imthedev/pkg/events"
	"imthedev/pkg/project"
	"imthedev/pkg/security"
	"imthedev/pkg/state"
)

// app wires the core components for one CLI invocation.
type app struct {
	cfg      config.Config
	bus      *events.Bus
	db       *sql.DB
	state    *state.Manager
	engine   *engine.Engine
	projects *project.Repository
	recorder *eventlog.Recorder
	proposer ai.Proposer
	checker  *security.Checker
}

// buildApp loads configuration and constructs the component graph.
// Callers must Close the returned app.
func buildApp(ctx context.Context) (*app, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	cfg, err := config.Load(paths.ConfigPath)
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg.Database.Path, cfg.Database.TimeoutSeconds)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	drainBusErrors(os.Stderr, bus)

	recorder, err := eventlog.NewRecorder(ctx, db, bus)
	if err != nil {
		db.Close()
		return nil, err
	}

	mgr, err := state.NewManager(bus, state.NewFileStore(cfg.Storage.StateFile))
	if err != nil {
		recorder.Close()
		db.Close()
		return nil, err
	}

	repo, err := project.NewRepository(ctx, db)
	if err != nil {
		recorder.Close()
		db.Close()
		return nil, err
	}

	checker := security.NewChecker(cfg.Security)
	eng := engine.New(bus,
		engine.WithStateReader(mgr),
		engine.WithChecker(checker),
	)

	return &app{
		cfg:      cfg,
		bus:      bus,
		db:       db,
		state:    mgr,
		engine:   eng,
		projects: repo,
		recorder: recorder,
		proposer: ai.NewClient(effectiveAI(cfg.AI, mgr.Get())),
		checker:  checker,
	}, nil
}

// effectiveAI overlays the persisted model selection onto the AI config,
// so "imthedev state model" switches the backend for subsequent runs
// without editing config.toml.
func effectiveAI(cfg config.AI, s state.ApplicationState) config.AI {
	if s.SelectedModel != "" {
		cfg.DefaultModel = s.SelectedModel
	}
	return cfg
}

// drainBusErrors surfaces contained handler failures on w. Without a
// consumer the diagnostic channel fills up and later reports are
// silently dropped.
func drainBusErrors(w io.Writer, bus *events.Bus) {
	go func() {
		for he := range bus.Errors() {
			fmt.Fprintf(w, "event handler: %v\n", he)
		}
	}()
}

// Close flushes state and releases the database.
func (a *app) Close() error {
	err := a.state.Close()
	a.recorder.Close()
	if cerr := a.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// currentProject resolves the project commands should run in: the
// state manager's current project id when set, the repository's
// current flag otherwise.
func (a *app) currentProject(ctx context.Context) (project.Project, error) {
	if id := a.state.Get().CurrentProjectID; id != nil {
		return a.projects.Get(ctx, *id)
	}
	return a.projects.Current(ctx)
}
