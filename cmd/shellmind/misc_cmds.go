package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shellmind/cli/internal/auth"
	"github.com/shellmind/cli/internal/config"
	"github.com/shellmind/cli/internal/fsshim"
	"github.com/shellmind/cli/internal/ptymux"
	"github.com/shellmind/cli/internal/tools"
)

// integrationTargets are the shells the integrations command knows about.
var integrationTargets = map[string]bool{"bash": true, "zsh": true, "fish": true}

func newIntegrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "Manage shell integrations",
	}
	for _, action := range []string{"install", "uninstall", "status"} {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   action + " <target>",
			Short: strings.ToUpper(action[:1]) + action[1:] + " a shell integration",
			Args:  exactArgsUsage(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				target := args[0]
				if !integrationTargets[target] {
					return fmt.Errorf("%w: unknown integration target %q (bash, zsh, fish)", errUsage, target)
				}
				// Dotfile editing ships with the platform installers;
				// this build only reports what it would manage.
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: managed by the platform installer in this build\n", action, target)
				return nil
			},
		})
	}
	return cmd
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ok := func(label string) { fmt.Fprintf(out, "  ok    %s\n", label) }
			warn := func(label string, err error) { fmt.Fprintf(out, "  warn  %s: %v\n", label, err) }

			fmt.Fprintln(out, "shellmind doctor")

			if shell := os.Getenv("SHELL"); shell != "" {
				ok("shell: " + shell)
			} else {
				warn("shell", fmt.Errorf("$SHELL is not set"))
			}
			if term := os.Getenv("TERM"); term != "" {
				label := "terminal: " + term
				if os.Getenv("COLORTERM") != "" {
					label += " (" + os.Getenv("COLORTERM") + ")"
				}
				ok(label)
			} else {
				warn("terminal", fmt.Errorf("$TERM is not set"))
			}
			if os.Getenv("APPIMAGE") != "" {
				ok("layout: AppImage")
			}

			if dir, err := config.Dir(); err == nil {
				ok("config dir: " + dir)
			} else {
				warn("config dir", err)
			}

			if path, err := ptymux.RemoteSocketPath(); err == nil {
				if _, statErr := os.Stat(path); statErr == nil {
					ok("multiplexer socket: " + path)
				} else {
					warn("multiplexer socket", fmt.Errorf("%s not present (inline completions inactive)", path))
				}
			} else {
				warn("multiplexer socket", err)
			}

			if auth.SigV4Mode() {
				if info, err := auth.InspectBearer(os.Getenv(auth.SigV4ModeEnv)); err == nil {
					ok(fmt.Sprintf("auth mode: sigv4 bearer (subject %s)", info.Subject))
				} else {
					ok("auth mode: sigv4 (ambient credentials)")
				}
				return nil
			}

			store, err := buildSecretStore()
			if err != nil {
				warn("secret store", err)
				return nil
			}
			token, err := auth.NewManager(store, newLogger()).LoadToken(cmd.Context())
			switch {
			case err != nil:
				warn("login", fmt.Errorf("no stored token; run `shellmind login`"))
			case token.Expired(time.Now()):
				warn("login", fmt.Errorf("token expired; run `shellmind login`"))
			default:
				ok(fmt.Sprintf("login: %s until %s", token.Type(), token.ExpiresAt.Local().Format(time.RFC1123)))
			}
			return nil
		},
	}
}

func newIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue [text...]",
		Short: "Open a pre-filled issue report",
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			if title == "" {
				title = "Issue reported from the shellmind CLI"
			}
			input, err := json.Marshal(map[string]string{"title": title})
			if err != nil {
				return err
			}
			reg := tools.NewBuiltinRegistry(fsshim.NewOS())
			out, err := reg.Execute(context.Background(), "report_issue", input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Text)
			return nil
		},
	}
}
