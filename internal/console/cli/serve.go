package cli

import (
	"github.com/aussiebroadwan/examadmin/internal/console/app"
	"github.com/pquerna/otp/totp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newServeCmd(e *env) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console gateway",
		Long: `Run the console gateway. Requests to /api/{section} are checked against
the signed-in operator's permissions and forwarded to the platform with the
operator's token, refreshing it once when the platform answers 401.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				e.cfg.ListenPort = port
			}

			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return a.ServeGateway(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Listen port (overrides EXAMADMIN_LISTEN_PORT)")
	return cmd
}

func newDevServerCmd(e *env) *cobra.Command {
	var (
		port       int
		secret     string
		totpSecret string
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory identity server for local development",
		Long: `Run an in-memory stand-in for the platform's identity endpoints, seeded
with an administrator and a two-factor proctor. Only available in dev mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !e.cfg.DevMode {
				return app.ErrDevModeDisabled
			}
			if cmd.Flags().Changed("port") {
				e.cfg.DevListenPort = port
			}

			otpURL := ""
			if totpSecret == "" {
				key, err := totp.Generate(totp.GenerateOpts{
					Issuer:      "examadmin-devserver",
					AccountName: "proctor@example.com",
				})
				if err != nil {
					return err
				}
				totpSecret = key.Secret()
				otpURL = key.URL()
			}

			srv, err := app.NewDevServer(e.cfg, e.logger, app.DevServerOptions{Secret: secret, TOTPSecret: totpSecret})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			pterm.DefaultSection.WithWriter(out).Println("Demo operators")
			if err := pterm.DefaultTable.WithHasHeader().WithData([][]string{
				{"EMAIL", "ROLE", "TWO-FACTOR"},
				{"admin@example.com", "admin", "-"},
				{"proctor@example.com", "proctor", "TOTP " + totpSecret},
			}).WithWriter(out).Render(); err != nil {
				return err
			}
			if otpURL != "" {
				pterm.Info.WithWriter(out).Println("Proctor authenticator URL: " + otpURL)
			}

			return app.RunDevServer(cmd.Context(), e.cfg, e.logger, srv)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8081, "Listen port (overrides EXAMADMIN_DEV_LISTEN_PORT)")
	cmd.Flags().StringVar(&secret, "secret", "examadmin-dev", "Secret for the demo operators")
	cmd.Flags().StringVar(&totpSecret, "totp-secret", "", "Base32 TOTP secret for the proctor (generated when empty)")
	return cmd
}
