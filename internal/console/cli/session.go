package cli

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Manager().Logout(ctx); err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Signed out")
			return nil
		},
	}
}

func newRefreshCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		Long: `Exchange the stored refresh token for a new access token. If the
platform rejects it the stored session is cleared and you must log in again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Manager().Refresh(ctx); err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Session refreshed")
			return nil
		},
	}
}
