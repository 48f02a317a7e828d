package cli

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in, run `examadmin login`")

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Display the signed-in operator and their permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			m := a.Manager()

			if m.Session.State() != authsdk.StateAuthenticated {
				return errNotSignedIn
			}

			user, err := m.LoadProfile(ctx)
			if err != nil {
				return err
			}
			snap := m.Session.Snapshot()

			pterm.DefaultSection.WithWriter(out).Println("Authentication Status")
			pterm.Info.WithWriter(out).Printfln("Signed in as %s <%s>", displayName(user), user.Email)
			pterm.Info.WithWriter(out).Printfln("Role: %s", user.Role.Name)
			if !snap.Expiry.IsZero() {
				pterm.Info.WithWriter(out).Printfln("Access token expires: %s", snap.Expiry.Local().Format(time.RFC1123))
			}
			if updated, err := a.SessionUpdatedAt(ctx); err == nil && !updated.IsZero() {
				pterm.Info.WithWriter(out).Printfln("Session stored: %s", updated.Local().Format(time.RFC1123))
			}

			pterm.DefaultSection.WithWriter(out).Println("Permissions")
			if len(user.Role.Permissions) == 0 {
				pterm.Warning.WithWriter(out).Println("No sections granted")
				return nil
			}
			return pterm.DefaultTable.
				WithHasHeader().
				WithData(permissionTable(user)).
				WithWriter(out).
				Render()
		},
	}
}

func permissionTable(user *authsdk.UserProfile) [][]string {
	data := [][]string{{"SECTION", "CREATE", "READ", "UPDATE", "DELETE"}}
	for _, g := range user.Role.Permissions {
		data = append(data, []string{g.SectionName, mark(g.CanCreate), mark(g.CanRead), mark(g.CanUpdate), mark(g.CanDelete)})
	}
	return data
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
