// Package cli implements the examadmin command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/examadmin/internal/console/app"
	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/aussiebroadwan/examadmin/pkg/slogx"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ErrDenied is returned by `can` when the permission is not held. It maps
// to exit code 1 without an error message.
var ErrDenied = errors.New("permission denied")

// env is shared by every command of one invocation.
type env struct {
	prompter Prompter

	apiURL         string
	devMode        bool
	nonInteractive bool
	logLevel       string

	cfg    app.Config
	logger *slog.Logger
}

// open loads the application for commands that need the session.
func (e *env) open(ctx context.Context) (*app.Application, error) {
	return app.New(ctx, e.cfg, e.logger)
}

// interactive reports whether prompts may be shown.
func (e *env) interactive() bool {
	return !e.nonInteractive && e.prompter != nil
}

// NewRootCmd builds the command tree. A nil prompter disables prompts.
func NewRootCmd(prompter Prompter) *cobra.Command {
	e := &env{prompter: prompter}

	root := &cobra.Command{
		Use:   "examadmin",
		Short: "Exam platform admin console",
		Long: `examadmin signs operators in to the exam platform, keeps their session
and answers permission questions for the admin console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("api-url") {
				cfg.APIURL = e.apiURL
			}
			if flags.Changed("dev") {
				cfg.DevMode = e.devMode
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = e.logLevel
			}
			if os.Getenv("EXAMADMIN_NON_INTERACTIVE") == "1" {
				e.nonInteractive = true
			}

			e.cfg = cfg
			e.logger = slogx.New(slogx.Config{
				Service: "examadmin",
				Version: app.BuildVersion,
				Env:     cfg.Env,
				Level:   cfg.LogLevel,
				Format:  cfg.LogFormat,
				Output:  cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&e.apiURL, "api-url", "", "Platform API base URL (overrides EXAMADMIN_API_URL)")
	pf.BoolVar(&e.devMode, "dev", false, "Enable dev mode (overrides EXAMADMIN_DEV_MODE)")
	pf.BoolVar(&e.nonInteractive, "non-interactive", false, "Disable interactive prompts (also set via EXAMADMIN_NON_INTERACTIVE=1)")
	pf.StringVar(&e.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(
		newLoginCmd(e),
		newLogoutCmd(e),
		newRefreshCmd(e),
		newStatusCmd(e),
		newCanCmd(e),
		newServeCmd(e),
		newDevServerCmd(e),
	)

	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, prompter Prompter) int {
	root := NewRootCmd(prompter)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrDenied):
		return 1
	default:
		printError(root.ErrOrStderr(), err)
		return 1
	}
}

// printError prefers the user-facing message of an AuthError.
func printError(w io.Writer, err error) {
	var authErr *authsdk.AuthError
	if errors.As(err, &authErr) {
		pterm.Error.WithWriter(w).Println(authErr.UserMessage())
		return
	}
	pterm.Error.WithWriter(w).Println(err.Error())
}
