package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in to the workout server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			fmt.Fprint(os.Stderr, "Password: ")
			reader := bufio.NewReader(os.Stdin)
			password, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(password, "\r\n")

			if err := a.API.Login(cmd.Context(), args[0], password); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			profile, err := a.API.Me(cmd.Context())
			if err != nil {
				// Signed in; the profile fetch is cosmetic.
				fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", profile.Email)
			return nil
		},
	}
}

func newLogoutCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and discard stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app().API.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
