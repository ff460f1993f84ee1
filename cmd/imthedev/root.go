package main

import (
	"fmt"

	"imthedev/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root imthedev command with all subcommands
// attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "imthedev",
		Short:         "AI command delegation for development projects",
		Long:          "imthedev proposes shell commands through an AI backend,\ngates them behind explicit approval, and executes them with a\nfull event trail.",
		Version:       fmt.Sprintf("imthedev %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newRunCmd(),
		newStateCmd(),
		newProjectsCmd(),
		newLogCmd(),
	)

	return cmd
}
