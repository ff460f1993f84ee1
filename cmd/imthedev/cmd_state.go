package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStateCmd creates the "imthedev state" subcommand tree.
func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show and change the application state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.state.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "autopilot: %v\n", s.AutopilotEnabled)
			fmt.Fprintf(out, "model:     %s\n", s.SelectedModel)
			if s.CurrentProjectID != nil {
				fmt.Fprintf(out, "project:   %s\n", s.CurrentProjectID)
			} else {
				fmt.Fprintln(out, "project:   (none)")
			}
			return nil
		},
	}

	cmd.AddCommand(newStateAutopilotCmd(), newStateModelCmd())
	return cmd
}

func newStateAutopilotCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "autopilot {on|off|toggle}",
		Short:     "Control autopilot mode",
		Long:      "With autopilot on, proposed commands that pass the danger check\nare approved automatically.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			enabled := a.state.AutopilotEnabled()
			switch args[0] {
			case "on":
				if !enabled {
					enabled, err = a.state.ToggleAutopilot(ctx)
				}
			case "off":
				if enabled {
					enabled, err = a.state.ToggleAutopilot(ctx)
				}
			case "toggle":
				enabled, err = a.state.ToggleAutopilot(ctx)
			default:
				return fmt.Errorf("unknown argument %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "autopilot: %v\n", enabled)
			return nil
		},
	}
}

func newStateModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model [name]",
		Short: "Show or set the active AI model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), a.state.Get().SelectedModel)
				return nil
			}
			if err := a.state.SetSelectedModel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model: %s\n", args[0])
			return nil
		},
	}
}
