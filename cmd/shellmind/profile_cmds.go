package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shellmind/cli/internal/config"
	"github.com/shellmind/cli/internal/contextmgr"
)

func profileManager() (*contextmgr.Manager, error) {
	dir, err := config.ProfilesDir()
	if err != nil {
		return nil, err
	}
	return contextmgr.NewManager(dir, contextmgr.DefaultProfileName)
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage context profiles",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List profiles",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := profileManager()
				if err != nil {
					return err
				}
				names, err := m.ListProfiles()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a profile",
			Args:  exactArgsUsage(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := profileManager()
				if err != nil {
					return err
				}
				return m.CreateProfile(args[0])
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a profile",
			Args:  exactArgsUsage(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := profileManager()
				if err != nil {
					return err
				}
				return m.DeleteProfile(args[0])
			},
		},
		&cobra.Command{
			Use:   "set <name>",
			Short: "Make a profile active for new chat sessions",
			Args:  exactArgsUsage(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := profileManager()
				if err != nil {
					return err
				}
				return m.SetActive(args[0])
			},
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "Rename a profile",
			Args:  exactArgsUsage(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := profileManager()
				if err != nil {
					return err
				}
				return m.RenameProfile(args[0], args[1])
			},
		},
	)
	return cmd
}

// exactArgsUsage is cobra.ExactArgs with the usage exit code.
func exactArgsUsage(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s expects %d argument(s)", errUsage, cmd.Name(), n)
		}
		return nil
	}
}
