package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shellmind/cli/internal/auth"
	"github.com/shellmind/cli/internal/config"
)

func newLoginCmd() *cobra.Command {
	var usePKCE bool
	var region, startURL string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			store, err := buildSecretStore()
			if err != nil {
				return err
			}
			mgr := auth.NewManager(store, newLogger())

			opts := auth.LoginOptions{
				Region:   firstNonEmpty(region, settings.Auth.Region),
				StartURL: firstNonEmpty(startURL, settings.Auth.StartURL),
				UsePKCE:  usePKCE || settings.Auth.UsePKCE,
				OnVerify: func(r auth.DeviceFlowResult) {
					fmt.Fprintf(cmd.OutOrStdout(), "Open %s and enter the code %s\n", r.VerificationURI, r.UserCode)
					if r.VerificationURIComplete != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "Or open %s directly.\n", r.VerificationURIComplete)
					}
				},
				OnURL: func(url string) {
					fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser to continue:\n%s\n", url)
				},
			}
			token, err := mgr.Login(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in (%s). Token valid until %s.\n",
				token.Type(), token.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
	cmd.Flags().BoolVar(&usePKCE, "pkce", false, "use the browser PKCE flow instead of a device code")
	cmd.Flags().StringVar(&region, "region", "", "identity provider region")
	cmd.Flags().StringVar(&startURL, "start-url", "", "identity center start URL")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := buildSecretStore()
			if err != nil {
				return err
			}
			if err := auth.NewManager(store, newLogger()).Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := buildSecretStore()
			if err != nil {
				return err
			}
			token, err := auth.NewManager(store, newLogger()).Whoami(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity: %s\nRegion:   %s\nStart URL: %s\nExpires:  %s\n",
				token.Type(), token.Region, token.StartURL, token.ExpiresAt.Local().Format(time.RFC1123))
			if token.Expired(time.Now()) {
				fmt.Fprintln(cmd.OutOrStdout(), "The token is expired; run `shellmind login`.")
			}
			return nil
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
