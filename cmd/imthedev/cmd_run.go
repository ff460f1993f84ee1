package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"imthedev/pkg/ai"
	"imthedev/pkg/engine"
	"imthedev/pkg/eventlog"
	"imthedev/pkg/events"
	"imthedev/pkg/project"

	"github.com/spf13/cobra"
)

// runConfig holds configuration for the run command.
type runConfig struct {
	projectName string
	command     string
	yes         bool
	analyze     bool
}

// newRunCmd creates the "imthedev run" subcommand.
func newRunCmd() *cobra.Command {
	var cfg runConfig

	cmd := &cobra.Command{
		Use:   "run [objective]",
		Short: "Propose, approve, and execute a command for an objective",
		Long:  "Asks the AI backend for a command that advances the objective,\nshows it with the model's reasoning, and executes it after approval.\nWith --command the AI is skipped and the given command is proposed\ndirectly.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var objective string
			if len(args) == 1 {
				objective = args[0]
			}
			if objective == "" && cfg.command == "" {
				return errors.New("an objective argument or --command is required")
			}
			return runRun(cmd.Context(), cmd, cfg, objective)
		},
	}

	cmd.Flags().StringVar(&cfg.projectName, "project", "", "project name or path (default: current project)")
	cmd.Flags().StringVar(&cfg.command, "command", "", "skip the AI and propose this exact command")
	cmd.Flags().BoolVarP(&cfg.yes, "yes", "y", false, "approve without prompting")
	cmd.Flags().BoolVar(&cfg.analyze, "analyze", false, "ask the AI to summarize the result")

	return cmd
}

func runRun(ctx context.Context, cmd *cobra.Command, cfg runConfig, objective string) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	proj, err := resolveProject(ctx, a, cfg.projectName)
	if err != nil {
		return err
	}
	if !a.checker.DirAllowed(proj.Path) {
		return fmt.Errorf("project path %s is in a blocked directory", proj.Path)
	}

	out := cmd.OutOrStdout()

	text, reasoning := cfg.command, "provided by the user"
	if text == "" {
		proposal, err := a.proposer.ProposeCommand(ctx, ai.Request{
			Objective:   objective,
			ProjectPath: proj.Path,
			History:     recentCommands(ctx, a, proj.ID.String()),
		})
		if err != nil {
			return err
		}
		text, reasoning = proposal.Command, proposal.Reasoning
	}

	record, err := a.engine.Propose(ctx, proj.ID, text, reasoning)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "command:   %s\n", record.Text)
	fmt.Fprintf(out, "reasoning: %s\n", record.Reasoning)

	if record.Status == engine.StatusProposed {
		skipPrompt := cfg.yes || proj.Settings.AutoApprove || !a.checker.RequireApproval()
		approved, err := decideApproval(cmd, skipPrompt, record.Text, a.checker.Dangerous(record.Text))
		if err != nil {
			return err
		}
		if !approved {
			if err := a.engine.Reject(ctx, record.ID, "declined by user"); err != nil {
				return err
			}
			fmt.Fprintln(out, "rejected")
			return nil
		}
		if err := a.engine.Approve(ctx, record.ID); err != nil {
			return err
		}
	}

	// Relay output as it is produced.
	sub := a.bus.Subscribe(events.OutputChunk, func(_ context.Context, ev events.Event) error {
		p, ok := ev.Payload.(engine.OutputPayload)
		if !ok || p.CommandID != record.ID {
			return nil
		}
		if p.Stream == engine.StreamStderr {
			fmt.Fprintln(os.Stderr, p.Data)
		} else {
			fmt.Fprintln(out, p.Data)
		}
		return nil
	})
	defer a.bus.Unsubscribe(sub)

	if err := a.engine.ExecuteWith(ctx, record.ID, execOptions(proj)); err != nil {
		return err
	}
	final, err := a.engine.Wait(ctx, record.ID)
	if err != nil {
		return err
	}

	switch final.Status {
	case engine.StatusCompleted:
		fmt.Fprintf(out, "completed (exit %d)\n", final.ExitCode)
	case engine.StatusCancelled:
		fmt.Fprintln(out, "cancelled")
	default:
		fmt.Fprintf(out, "failed (exit %d)", final.ExitCode)
		if final.FailureCause != "" {
			fmt.Fprintf(out, ": %s", final.FailureCause)
		}
		fmt.Fprintln(out)
	}

	if cfg.analyze {
		summary, err := a.proposer.AnalyzeResult(ctx, ai.Result{
			Command:  final.Text,
			ExitCode: final.ExitCode,
			Stdout:   final.Stdout,
			Stderr:   final.Stderr,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "analysis unavailable: %v\n", err)
		} else {
			fmt.Fprintf(out, "\n%s\n", summary)
		}
	}

	if final.Status != engine.StatusCompleted {
		return fmt.Errorf("command %s", final.Status)
	}
	return nil
}

// execOptions derives the subprocess options from the resolved
// project: commands run in the project directory with its configured
// environment and timeout.
func execOptions(proj project.Project) engine.ExecOptions {
	opts := engine.ExecOptions{Dir: proj.Path}
	if proj.Settings.CommandTimeout > 0 {
		opts.Timeout = time.Duration(proj.Settings.CommandTimeout) * time.Second
	}
	for k, v := range proj.Settings.Environment {
		opts.Env = append(opts.Env, k+"="+v)
	}
	return opts
}

// resolveProject picks the target project: an explicit name or path
// wins, then the current project.
func resolveProject(ctx context.Context, a *app, nameOrPath string) (project.Project, error) {
	if nameOrPath == "" {
		proj, err := a.currentProject(ctx)
		if errors.Is(err, project.ErrNotFound) {
			return project.Project{}, errors.New("no current project; run 'imthedev projects use' or pass --project")
		}
		return proj, err
	}

	if proj, err := a.projects.GetByPath(ctx, nameOrPath); err == nil {
		return proj, nil
	}
	all, err := a.projects.List(ctx)
	if err != nil {
		return project.Project{}, err
	}
	for _, p := range all {
		if p.Name == nameOrPath {
			return p, nil
		}
	}
	return project.Project{}, fmt.Errorf("%w: %s", project.ErrNotFound, nameOrPath)
}

// decideApproval asks the user unless --yes was given. Dangerous
// commands always prompt.
func decideApproval(cmd *cobra.Command, yes bool, text string, dangerous bool) (bool, error) {
	out := cmd.OutOrStdout()
	if dangerous {
		fmt.Fprintf(out, "warning: %q matches a dangerous pattern\n", text)
	} else if yes {
		return true, nil
	}
	fmt.Fprint(out, "approve? [y/N] ")
	return readApproval(cmd.InOrStdin())
}

func readApproval(r io.Reader) (bool, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read approval: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// recentCommands pulls the project's latest proposed command texts from
// the event trail, oldest first.
func recentCommands(ctx context.Context, a *app, projectID string) []string {
	entries, err := eventlog.NewReader(a.db).Query(ctx, eventlog.QueryOpts{
		ProjectID: projectID,
		Type:      string(events.CommandProposed),
		Limit:     5,
	})
	if err != nil {
		return nil
	}
	var texts []string
	for i := len(entries) - 1; i >= 0; i-- {
		var p struct {
			Text string `json:"command_text"`
		}
		if json.Unmarshal([]byte(entries[i].Payload), &p) == nil && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return texts
}
