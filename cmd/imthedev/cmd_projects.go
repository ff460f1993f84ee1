package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"imthedev/pkg/project"

	"github.com/spf13/cobra"
)

// newProjectsCmd creates the "imthedev projects" subcommand tree.
func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProjectsList(cmd)
		},
	}

	cmd.AddCommand(
		newProjectsAddCmd(),
		newProjectsRemoveCmd(),
		newProjectsUseCmd(),
	)
	return cmd
}

func runProjectsList(cmd *cobra.Command) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	all, err := a.projects.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no projects registered; use 'imthedev projects add'")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPATH\tID")
	for _, p := range all {
		marker := ""
		if p.IsCurrent {
			marker = "* "
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\n", marker, p.Name, p.Path, p.ID)
	}
	return w.Flush()
}

func newProjectsAddCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add [path]",
		Short: "Register a project directory",
		Long:  "Registers path as a project. Settings from a .imthedev/project.yaml\nmanifest inside the directory are applied on top of the defaults.\nWith no path the current directory is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}

			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			settings := project.DefaultSettings()
			projName := name
			if manifest, err := project.LoadManifest(abs); err != nil {
				return err
			} else if manifest != nil {
				settings = manifest.Apply(settings)
				if projName == "" {
					projName = manifest.Name
				}
			}
			if projName == "" {
				projName = filepath.Base(abs)
			}

			p, err := a.projects.Create(cmd.Context(), projName, abs, settings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name (default: manifest name or directory name)")
	return cmd
}

func newProjectsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [name]",
		Short: "Unregister a project (files are untouched)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			p, err := resolveProject(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.projects.Delete(ctx, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", p.Name)
			return nil
		},
	}
}

func newProjectsUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use [name]",
		Short: "Make a project the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			p, err := resolveProject(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.projects.SetCurrent(ctx, p.ID); err != nil {
				return err
			}
			id := p.ID
			if err := a.state.SetCurrentProject(ctx, &id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current project: %s (%s)\n", p.Name, p.Path)
			return nil
		},
	}
}
