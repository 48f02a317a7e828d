package authsdk

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/cryptox"
)

// Authenticator runs the credential login and logout flows against one
// SessionStore.
type Authenticator struct {
	client  *SDKClient
	session *SessionStore
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(client *SDKClient, session *SessionStore) *Authenticator {
	return &Authenticator{client: client, session: session}
}

// Login submits the identifier and secret.
//
// When the server asks for a second factor no token is stored; a challenge
// is held in memory and the outcome carries the masked destination. When the
// server returns a token it is persisted and the outcome is authenticated,
// with User set only if the response carried a profile.
func (a *Authenticator) Login(ctx context.Context, identifier, secret string) (*LoginOutcome, error) {
	outcome, err := a.login(ctx, strings.TrimSpace(identifier), secret)
	a.client.observer.ObserveAuth("login", err)
	return outcome, err
}

func (a *Authenticator) login(ctx context.Context, identifier, secret string) (*LoginOutcome, error) {
	req := LoginRequest{Identifier: identifier, Secret: secret}
	if err := validateInput(req); err != nil {
		return nil, err
	}

	// A new attempt always discards the previous challenge.
	a.session.ClearTwoFactor()

	if a.client.loginLimiter != nil {
		if err := a.client.loginLimiter.Wait(ctx); err != nil {
			return nil, networkError(err)
		}
	}

	log := a.client.logger.With("op", "login")

	resp, err := a.client.postJSON(ctx, a.client.Endpoints.Login, req, "")
	if err != nil {
		log.Warn("login request failed", "err", err)
		return nil, err
	}
	if !resp.ok() {
		log.Info("login rejected", "status", resp.StatusCode)
		return nil, classifyStatus(resp.StatusCode, ErrCredentials, resp.serverMessage())
	}

	var body LoginResponse
	if err := resp.decode(&body); err != nil {
		return nil, err
	}

	if body.RequiresTwoFactor {
		ch := &TwoFactorChallenge{
			Identifier:        identifier,
			DestinationMasked: body.destination(),
			Message:           body.Message,
			IssuedAt:          time.Now().UTC(),
		}
		if err := a.session.BeginTwoFactor(ctx, ch); err != nil {
			return nil, err
		}
		log.Info("login requires two-factor", "destination", ch.DestinationMasked)
		return &LoginOutcome{
			Status:            OutcomeRequiresTwoFactor,
			DestinationMasked: ch.DestinationMasked,
			Message:           ch.Message,
		}, nil
	}

	token := body.accessToken()
	if token == "" {
		return nil, malformed("token not found in response")
	}

	tokens := Tokens{AccessToken: token, RefreshToken: body.RefreshToken, ExpiresIn: body.ExpiresIn}
	if err := a.session.SetAuthenticated(ctx, tokens, body.User); err != nil {
		return nil, err
	}

	log.Info("login succeeded", "token_fp", cryptox.FingerprintToken(token))
	return &LoginOutcome{Status: OutcomeAuthenticated, User: body.User}, nil
}

// Logout tells the server to end the session and clears it locally. The
// server call is best-effort: its failure is logged and never blocks the
// local sign-out. Only a failure to remove the persisted keys is returned.
func (a *Authenticator) Logout(ctx context.Context) error {
	snap := a.session.Snapshot()
	log := a.client.logger.With("op", "logout")

	if snap.AccessToken != "" || snap.RefreshToken != "" {
		resp, err := a.client.postJSON(ctx, a.client.Endpoints.Logout, RefreshRequest{RefreshToken: snap.RefreshToken}, snap.AccessToken)
		switch {
		case err != nil:
			log.Warn("server logout failed, continuing with local sign-out", "err", err)
		case !resp.ok():
			log.Warn("server logout rejected, continuing with local sign-out", "status", resp.StatusCode)
		}
	}

	err := a.session.Clear(ctx)
	a.client.observer.ObserveAuth("logout", err)
	return err
}
