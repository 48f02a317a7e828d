package cli

import (
	"fmt"

	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newCanCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "can <section> <action>",
		Short: "Check whether the signed-in operator holds a permission",
		Long: `Check whether the signed-in operator may perform action (create, read,
update or delete) on section. Exits with status 1 when the permission is not
held, including when nobody is signed in.`,
		Example: "  examadmin can Exams update",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			section := args[0]

			action, ok := authsdk.ParseAction(args[1])
			if !ok {
				return fmt.Errorf("unknown action %q, expected create, read, update or delete", args[1])
			}

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			m := a.Manager()

			if m.Session.AccessToken() != "" && m.Session.User() == nil {
				if _, err := m.LoadProfile(ctx); err != nil {
					e.logger.Warn("profile unavailable, denying", "err", err)
				}
			}

			if !m.HasPermission(section, action) {
				pterm.Error.WithWriter(out).Printfln("denied: %s %s", action, section)
				return ErrDenied
			}
			pterm.Success.WithWriter(out).Printfln("allowed: %s %s", action, section)
			return nil
		},
	}
}
