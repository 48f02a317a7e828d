package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// maxOTPAttempts bounds interactive code retries before giving up.
const maxOTPAttempts = 3

func newLoginCmd(e *env) *cobra.Command {
	var identifier, secret, otp string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the exam platform",
		Long: `Sign in with an email or username and secret. When two-factor
verification is required the one-time code is requested in the same run,
because pending challenges are never persisted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			id, err := e.resolve(identifier, "identifier", func() (string, error) {
				return e.prompter.Input(ctx, "Email or username", "operator@example.com")
			})
			if err != nil {
				return err
			}
			pw, err := e.resolve(secret, "secret", func() (string, error) {
				return e.prompter.Secret(ctx, "Secret")
			})
			if err != nil {
				return err
			}

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			m := a.Manager()

			outcome, err := m.Login(ctx, id, pw)
			if err != nil {
				return err
			}

			user := outcome.User
			if outcome.RequiresTwoFactor() {
				pterm.Info.WithWriter(out).Printfln("%s (%s)", orDefault(outcome.Message, "Verification code sent"), outcome.DestinationMasked)

				verified, err := e.verify(ctx, out, m, otp)
				if err != nil {
					return err
				}
				user = verified.User
			}

			if user == nil {
				if user, err = m.LoadProfile(ctx); err != nil {
					pterm.Warning.WithWriter(out).Println("Signed in, but the profile could not be loaded: " + err.Error())
					return nil
				}
			}

			pterm.Success.WithWriter(out).Printfln("Signed in as %s (%s)", displayName(user), user.Role.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Email or username")
	cmd.Flags().StringVar(&secret, "secret", "", "Secret (prompted when omitted)")
	cmd.Flags().StringVar(&otp, "otp", "", "One-time code for two-factor verification")

	return cmd
}

// verify completes the pending challenge. A code given by flag gets one
// attempt; prompted codes may be retried while the server keeps the
// challenge open.
func (e *env) verify(ctx context.Context, out io.Writer, m *authsdk.Manager, code string) (*authsdk.VerifyOutcome, error) {
	if code != "" {
		return m.VerifyOTP(ctx, code)
	}
	if !e.interactive() {
		return nil, errors.New("--otp is required in non-interactive mode")
	}

	var lastErr error
	for range maxOTPAttempts {
		code, err := e.prompter.Input(ctx, "Verification code", "123456")
		if err != nil {
			return nil, err
		}

		outcome, err := m.VerifyOTP(ctx, code)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, authsdk.ErrCredentials) {
			return nil, err
		}
		lastErr = err

		var authErr *authsdk.AuthError
		if errors.As(err, &authErr) {
			pterm.Warning.WithWriter(out).Println(authErr.UserMessage())
		}
	}
	return nil, lastErr
}

// resolve returns value, prompting for it when empty and prompts are allowed.
func (e *env) resolve(value, flag string, prompt func() (string, error)) (string, error) {
	if value != "" {
		return value, nil
	}
	if !e.interactive() {
		return "", fmt.Errorf("--%s is required in non-interactive mode", flag)
	}
	return prompt()
}

func displayName(u *authsdk.UserProfile) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
