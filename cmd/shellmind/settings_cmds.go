package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shellmind/cli/internal/config"
)

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings [key [value]]",
		Short: "Show or change settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			switch len(args) {
			case 0:
				keys, err := settings.Keys()
				if err != nil {
					return err
				}
				sort.Strings(keys)
				for _, k := range keys {
					v, _ := settings.Get(k)
					fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, v)
				}
				return nil
			case 1:
				v, err := settings.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			case 2:
				updated, err := settings.Set(args[0], args[1])
				if err != nil {
					return err
				}
				return updated.Save()
			default:
				return fmt.Errorf("%w: settings takes at most a key and a value", errUsage)
			}
		},
	}
}
