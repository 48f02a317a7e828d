package authsdk

import (
	"context"
	"strings"

	"github.com/aussiebroadwan/examadmin/pkg/cryptox"
)

// TwoFactorVerifier completes a pending two-factor challenge with a
// one-time code.
type TwoFactorVerifier struct {
	client  *SDKClient
	session *SessionStore
}

// NewTwoFactorVerifier creates a TwoFactorVerifier.
func NewTwoFactorVerifier(client *SDKClient, session *SessionStore) *TwoFactorVerifier {
	return &TwoFactorVerifier{client: client, session: session}
}

// VerifyOTP submits code for the pending challenge.
//
// Without a pending challenge it fails with ErrNoActiveChallenge before any
// network call. The response must carry both success and a token to count;
// on any failure the challenge is kept so the user can try again.
func (v *TwoFactorVerifier) VerifyOTP(ctx context.Context, code string) (*VerifyOutcome, error) {
	outcome, err := v.verify(ctx, strings.TrimSpace(code))
	v.client.observer.ObserveAuth("verify_otp", err)
	return outcome, err
}

func (v *TwoFactorVerifier) verify(ctx context.Context, code string) (*VerifyOutcome, error) {
	ch := v.session.PendingTwoFactor()
	if ch == nil {
		return nil, newAuthError(ErrNoActiveChallenge, 0, "", nil)
	}

	req := VerifyOTPRequest{Identifier: ch.Identifier, Code: code}
	if err := validateInput(req); err != nil {
		return nil, err
	}

	log := v.client.logger.With("op", "verify_otp")

	resp, err := v.client.postJSON(ctx, v.client.Endpoints.VerifyOTP, req, "")
	if err != nil {
		log.Warn("otp verification request failed", "err", err)
		return nil, err
	}
	if !resp.ok() {
		log.Info("otp rejected", "status", resp.StatusCode)
		return nil, classifyStatus(resp.StatusCode, ErrCredentials, resp.serverMessage())
	}

	var body VerifyOTPResponse
	if err := resp.decode(&body); err != nil {
		return nil, err
	}

	token := body.accessToken()
	switch {
	case !body.Success && token == "":
		// A plain refusal, the server's message explains it.
		return nil, newAuthError(ErrCredentials, resp.StatusCode, body.Message, nil)
	case !body.Success:
		return nil, malformed("token present without success flag")
	case token == "":
		return nil, malformed("success without token")
	}

	tokens := Tokens{AccessToken: token, RefreshToken: body.RefreshToken, ExpiresIn: body.ExpiresIn}
	if err := v.session.SetAuthenticated(ctx, tokens, body.User); err != nil {
		return nil, err
	}

	log.Info("two-factor verification succeeded", "token_fp", cryptox.FingerprintToken(token))
	return &VerifyOutcome{Status: OutcomeAuthenticated, User: body.User}, nil
}
