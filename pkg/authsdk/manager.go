package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

// Manager wires the auth components around one SessionStore. The
// application root creates it and owns its lifecycle.
type Manager struct {
	Client        *SDKClient
	Session       *SessionStore
	Authenticator *Authenticator
	Verifier      *TwoFactorVerifier
	Refresher     *TokenRefresher
	Permissions   *PermissionEvaluator

	transport *Transport
}

// NewManager builds every component on top of client and session.
func NewManager(client *SDKClient, session *SessionStore) *Manager {
	refresher := NewTokenRefresher(client, session)
	return &Manager{
		Client:        client,
		Session:       session,
		Authenticator: NewAuthenticator(client, session),
		Verifier:      NewTwoFactorVerifier(client, session),
		Refresher:     refresher,
		Permissions:   NewPermissionEvaluator(session),
		transport: &Transport{
			Session:   session,
			Refresher: refresher,
			Logger:    client.logger,
		},
	}
}

// Login delegates to the Authenticator.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (*LoginOutcome, error) {
	return m.Authenticator.Login(ctx, identifier, secret)
}

// VerifyOTP delegates to the TwoFactorVerifier.
func (m *Manager) VerifyOTP(ctx context.Context, code string) (*VerifyOutcome, error) {
	return m.Verifier.VerifyOTP(ctx, code)
}

// Refresh delegates to the TokenRefresher.
func (m *Manager) Refresh(ctx context.Context) (*LoginOutcome, error) {
	return m.Refresher.Refresh(ctx)
}

// Logout delegates to the Authenticator.
func (m *Manager) Logout(ctx context.Context) error {
	return m.Authenticator.Logout(ctx)
}

// HasPermission delegates to the PermissionEvaluator.
func (m *Manager) HasPermission(section string, action Action) bool {
	return m.Permissions.HasPermission(section, action)
}

// Transport returns the gateway round tripper. base replaces the underlying
// transport when non-nil.
func (m *Manager) Transport(base http.RoundTripper) *Transport {
	t := *m.transport
	t.Base = base
	return &t
}

// HTTPClient returns a client whose requests carry the current bearer token
// and refresh once on 401.
func (m *Manager) HTTPClient() *http.Client {
	return &http.Client{
		Transport: m.Transport(nil),
		Timeout:   m.Client.HTTPClient.Timeout,
	}
}

// LoadProfile fetches the operator's profile through the gateway and stores
// it on the session. A session restored at start-up has no profile until
// this runs, so permission checks deny everything until then.
func (m *Manager) LoadProfile(ctx context.Context) (*UserProfile, error) {
	token := m.Session.AccessToken()
	if token == "" {
		return nil, newAuthError(ErrSessionExpired, 0, "not signed in", nil)
	}

	hc := m.HTTPClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Client.url(m.Client.Endpoints.Profile), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	api, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if !api.ok() {
		if resp.StatusCode == http.StatusUnauthorized {
			// Still rejected after the transport's refresh and retry.
			if err := m.Session.Clear(ctx); err != nil {
				m.Client.logger.Warn("failed to clear rejected session", "err", err)
			}
			return nil, newAuthError(ErrSessionExpired, resp.StatusCode, api.serverMessage(), nil)
		}
		return nil, classifyStatus(resp.StatusCode, ErrCredentials, api.serverMessage())
	}

	var user UserProfile
	if err := api.decode(&user); err != nil {
		return nil, err
	}
	if err := m.Session.SetUser(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
