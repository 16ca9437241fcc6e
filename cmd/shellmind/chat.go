package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shellmind/cli/internal/chatengine"
	"github.com/shellmind/cli/internal/config"
	"github.com/shellmind/cli/internal/contextmgr"
	"github.com/shellmind/cli/internal/fsshim"
	"github.com/shellmind/cli/internal/tools"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Enter the interactive chat REPL",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger()

	client, err := buildClient(settings, logger)
	if err != nil {
		return err
	}

	profilesDir, err := config.ProfilesDir()
	if err != nil {
		return err
	}
	ctxMgr, err := contextmgr.NewManager(profilesDir, contextmgr.DefaultProfileName)
	if err != nil {
		return err
	}
	defer ctxMgr.Close()

	var history *chatengine.HistoryStore
	if settings.Chat.SaveHistory {
		if path, err := config.HistoryPath(); err == nil {
			if h, err := chatengine.OpenHistoryStore(path); err == nil {
				history = h
				defer h.Close()
			} else {
				logger.Warn("input history disabled", "error", err)
			}
		}
	}

	registry := tools.NewBuiltinRegistry(fsshim.NewOS())
	registry.Register(&tools.ExecuteBash{Stream: cmd.OutOrStdout()})

	engine := chatengine.New(chatengine.Options{
		Client:        client,
		Registry:      registry,
		Permissions:   tools.NewPermissions(),
		ContextMgr:    ctxMgr,
		Input:         cmd.InOrStdin(),
		Output:        cmd.OutOrStdout(),
		TerminalWidth: terminalWidth(settings),
		Logger:        logger,
		History:       history,
	})

	// Ctrl-C aborts the in-flight turn, not the REPL.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT)
	defer stop()

	return engine.Run(ctx, strings.Join(args, " "))
}
