package authsdk

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/examadmin/pkg/cryptox"
)

// TokenRefresher exchanges the refresh token for a new access token. Refresh
// is all-or-nothing: a session that cannot refresh is cleared before the
// error is returned.
type TokenRefresher struct {
	client  *SDKClient
	session *SessionStore

	// mu serialises refreshes so concurrent 401s trigger a single exchange.
	mu sync.Mutex
}

// NewTokenRefresher creates a TokenRefresher.
func NewTokenRefresher(client *SDKClient, session *SessionStore) *TokenRefresher {
	return &TokenRefresher{client: client, session: session}
}

// Refresh exchanges the current refresh token. Without a refresh token it
// clears the session and fails with ErrSessionExpired, making no network
// call.
func (r *TokenRefresher) Refresh(ctx context.Context) (*LoginOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.refreshLocked(ctx)
}

// RefreshIfStale refreshes only if the session still holds staleToken, the
// token a caller saw rejected. If another goroutine already rotated it, the
// current token is returned without a network call.
func (r *TokenRefresher) RefreshIfStale(ctx context.Context, staleToken string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the lock (another goroutine may have refreshed)
	if current := r.session.AccessToken(); current != "" && current != staleToken {
		return current, nil
	}

	if _, err := r.refreshLocked(ctx); err != nil {
		return "", err
	}
	return r.session.AccessToken(), nil
}

func (r *TokenRefresher) refreshLocked(ctx context.Context) (*LoginOutcome, error) {
	outcome, err := r.exchange(ctx)
	if err != nil {
		if clearErr := r.session.Clear(ctx); clearErr != nil {
			r.client.logger.Error("failed to clear session after refresh failure", "err", clearErr)
		}
		r.client.logger.Warn("token refresh failed, session cleared", "err", err)
	}
	r.client.observer.ObserveAuth("refresh", err)
	return outcome, err
}

func (r *TokenRefresher) exchange(ctx context.Context) (*LoginOutcome, error) {
	snap := r.session.Snapshot()
	if snap.RefreshToken == "" {
		return nil, newAuthError(ErrSessionExpired, 0, "no refresh token available", nil)
	}

	resp, err := r.client.postJSON(ctx, r.client.Endpoints.Refresh, RefreshRequest{RefreshToken: snap.RefreshToken}, "")
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, classifyStatus(resp.StatusCode, ErrSessionExpired, resp.serverMessage())
	}

	var body RefreshResponse
	if err := resp.decode(&body); err != nil {
		return nil, err
	}

	token := body.accessToken()
	if token == "" {
		return nil, malformed("token not found in response")
	}

	// Servers that do not rotate refresh tokens omit it; keep the old one.
	refresh := body.RefreshToken
	if refresh == "" {
		refresh = snap.RefreshToken
	}

	tokens := Tokens{AccessToken: token, RefreshToken: refresh, ExpiresIn: body.ExpiresIn}
	if err := r.session.SetAuthenticated(ctx, tokens, snap.User); err != nil {
		return nil, err
	}

	r.client.logger.Debug("access token refreshed", "token_fp", cryptox.FingerprintToken(token))
	return &LoginOutcome{Status: OutcomeAuthenticated, User: snap.User}, nil
}
