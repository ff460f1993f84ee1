package main

import (
	"fmt"
	"time"

	"imthedev/pkg/eventlog"

	"github.com/spf13/cobra"
)

// logConfig holds configuration for the log command.
type logConfig struct {
	tail      int
	commandID string
	projectID string
	eventType string
	since     time.Duration
	raw       bool
}

// newLogCmd creates the "imthedev log" subcommand.
func newLogCmd() *cobra.Command {
	var cfg logConfig

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Query the event trail",
		Long:  "Displays recorded events, newest first. Filters combine with AND.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			opts := eventlog.QueryOpts{
				CommandID: cfg.commandID,
				ProjectID: cfg.projectID,
				Type:      cfg.eventType,
				Limit:     cfg.tail,
			}
			if cfg.since > 0 {
				after := time.Now().Add(-cfg.since)
				opts.After = &after
			}

			entries, err := eventlog.NewReader(a.db).Query(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no events")
				return nil
			}
			for _, e := range entries {
				if cfg.raw {
					fmt.Fprintf(out, "%s %-22s %s\n", e.CreatedAt.Local().Format(time.RFC3339), e.Type, e.Payload)
					continue
				}
				line := fmt.Sprintf("%s  %-22s", e.CreatedAt.Local().Format("15:04:05"), e.Type)
				if e.CommandID != "" {
					line += "  cmd=" + shortID(e.CommandID)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 20, "number of recent events to show")
	cmd.Flags().StringVar(&cfg.commandID, "command", "", "filter by command id")
	cmd.Flags().StringVar(&cfg.projectID, "project", "", "filter by project id")
	cmd.Flags().StringVar(&cfg.eventType, "type", "", "filter by event type (e.g. command.proposed)")
	cmd.Flags().DurationVar(&cfg.since, "since", 0, "only events newer than this duration (e.g. 1h)")
	cmd.Flags().BoolVar(&cfg.raw, "raw", false, "include full payloads")

	return cmd
}

// shortID abbreviates a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
