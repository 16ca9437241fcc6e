package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shellmind/cli/internal/chatengine"
	"github.com/shellmind/cli/internal/config"
)

func newTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate natural language into a shell command",
		Long:  "Translate a natural-language request into a single shell command. Text comes from arguments or stdin; the command is printed on stdout. Exits non-zero when no completion is produced.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimSpace(string(data))
			}
			if text == "" {
				return fmt.Errorf("%w: translate needs text on the command line or stdin", errUsage)
			}

			settings, err := config.Load()
			if err != nil {
				return err
			}
			client, err := buildClient(settings, newLogger())
			if err != nil {
				return err
			}
			command, err := chatengine.Translate(cmd.Context(), client, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), command)
			return nil
		},
	}
}
