// Package main is the shellmind CLI: an interactive terminal assistant
// with OAuth device-code/PKCE login, a streaming chat REPL with local
// tool execution, a one-shot natural-language-to-shell translator, and
// the pty multiplexer that powers inline completions in third-party
// terminals.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes: 0 success, 1 generic failure, 2 usage error.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks failures that should exit 2.
var errUsage = errors.New("usage error")

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			return exitUsage
		}
		fmt.Fprintf(os.Stderr, "shellmind: %v\n", err)
		return exitError
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shellmind",
		Short: "Terminal AI assistant",
		Long:  "shellmind is a terminal assistant: chat with a model, run tools on its behalf, and get inline completions in your own shell.",
		// Bare `shellmind` enters the chat REPL.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintf(os.Stderr, "shellmind: %v\n", err)
		return errUsage
	})

	root.AddCommand(
		newChatCmd(),
		newTranslateCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newProfileCmd(),
		newSettingsCmd(),
		newIntegrationsCmd(),
		newDoctorCmd(),
		newIssueCmd(),
		newInternalCmd(),
	)
	return root
}
