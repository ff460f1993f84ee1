package main

import (
	"context"
	"fmt"
	"os"

	"imthedev/pkg/config"
	"imthedev/pkg/eventlog"
	"imthedev/pkg/events"
	"imthedev/pkg/project"
	"imthedev/pkg/state"

	"github.com/spf13/cobra"
)

// newInitCmd creates the "imthedev init" subcommand.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file, database, and state file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), newStdoutStepLog())
		},
	}
}

func runInit(ctx context.Context, log *stepLog) error {
	paths, err := ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	if err := os.MkdirAll(paths.Home, 0o755); err != nil {
		return fmt.Errorf("create home dir: %w", err)
	}
	log.Step(fmt.Sprintf("home directory %s", paths.Home))

	if _, err := os.Stat(paths.ConfigPath); err == nil {
		log.Warn(fmt.Sprintf("config already exists at %s, keeping it", paths.ConfigPath))
	} else {
		if err := config.WriteDefault(paths.ConfigPath); err != nil {
			return err
		}
		log.Step(fmt.Sprintf("wrote default config %s", paths.ConfigPath))
	}

	cfg, err := config.Load(paths.ConfigPath)
	if err != nil {
		return err
	}

	db, err := openDB(cfg.Database.Path, cfg.Database.TimeoutSeconds)
	if err != nil {
		return err
	}
	defer db.Close()

	// Constructing the stores creates their schemas.
	bus := events.NewBus()
	rec, err := eventlog.NewRecorder(ctx, db, bus)
	if err != nil {
		return err
	}
	rec.Close()
	if _, err := project.NewRepository(ctx, db); err != nil {
		return err
	}
	log.Step(fmt.Sprintf("database %s", cfg.Database.Path))

	mgr, err := state.NewManager(bus, state.NewFileStore(cfg.Storage.StateFile))
	if err != nil {
		return err
	}
	if err := mgr.Close(); err != nil {
		return err
	}
	log.Step(fmt.Sprintf("state file %s", cfg.Storage.StateFile))

	return nil
}
