package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("rejected credentials", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.respond("/auth/login", http.StatusUnauthorized, map[string]string{"message": "Invalid"})
		m, _ := newTestManager(t, f)

		outcome, err := m.Login(context.Background(), "a@x.com", "bad")
		require.Nil(t, outcome)
		require.ErrorIs(t, err, ErrCredentials)
		require.Contains(t, err.Error(), "credentials")

		var authErr *AuthError
		require.True(t, errors.As(err, &authErr))
		require.Equal(t, "Invalid", authErr.UserMessage())
		require.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
		require.Equal(t, StateAnonymous, m.Session.State())
	})

	t.Run("requires two-factor", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.respond("/auth/login", http.StatusOK, map[string]any{
			"requiresTwoFactor": true,
			"mobileNumber":      "+91*****10",
			"message":           "OTP sent",
		})
		m, persister := newTestManager(t, f)

		outcome, err := m.Login(context.Background(), "a@x.com", "secret")
		require.NoError(t, err)
		require.True(t, outcome.RequiresTwoFactor())
		require.Equal(t, "+91*****10", outcome.DestinationMasked)
		require.Equal(t, "OTP sent", outcome.Message)

		require.Empty(t, m.Session.AccessToken())
		require.Equal(t, StateTwoFactorPending, m.Session.State())
		require.Equal(t, "a@x.com", m.Session.PendingTwoFactor().Identifier)
		require.Zero(t, persister.Len(), "nothing is persisted while a challenge is pending")
	})

	t.Run("authenticated with profile", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.handle("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req LoginRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "a@x.com", req.Identifier)
			assert.Equal(t, "secret", req.Secret)
			assert.Empty(t, r.Header.Get("Authorization"))

			writeJSON(w, http.StatusOK, map[string]any{
				"accessToken":  "A1",
				"refreshToken": "R1",
				"expiresIn":    3600,
				"user":         dashboardUser(),
			})
		})
		m, persister := newTestManager(t, f)

		outcome, err := m.Login(context.Background(), "  a@x.com ", "secret")
		require.NoError(t, err)
		require.Equal(t, OutcomeAuthenticated, outcome.Status)
		require.NotNil(t, outcome.User)

		snap := m.Session.Snapshot()
		require.Equal(t, StateAuthenticated, snap.State())
		require.Equal(t, "A1", snap.AccessToken)
		require.Equal(t, "R1", snap.RefreshToken)
		require.False(t, snap.Expiry.IsZero())

		stored, ok, err := persister.Get(context.Background(), KeyAccessToken)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "A1", stored)

		raw, ok, err := persister.Get(context.Background(), KeyUserProfile)
		require.NoError(t, err)
		require.True(t, ok)
		var user UserProfile
		require.NoError(t, json.Unmarshal([]byte(raw), &user))
		require.Equal(t, "admin", user.Role.Name)
	})

	t.Run("legacy token field without profile", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.respond("/auth/login", http.StatusOK, map[string]any{"token": "T0"})
		m, _ := newTestManager(t, f)

		outcome, err := m.Login(context.Background(), "a@x.com", "secret")
		require.NoError(t, err)
		require.Nil(t, outcome.User)
		require.Equal(t, "T0", m.Session.AccessToken())
		require.False(t, m.HasPermission("Dashboard", ActionRead), "no profile means deny")
	})

	t.Run("success without token is malformed", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.respond("/auth/login", http.StatusOK, map[string]any{"message": "ok"})
		m, _ := newTestManager(t, f)

		_, err := m.Login(context.Background(), "a@x.com", "secret")
		require.ErrorIs(t, err, ErrMalformedResponse)
		require.Equal(t, StateAnonymous, m.Session.State())
	})

	t.Run("undecodable body is malformed", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.handle("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html>"))
		})
		m, _ := newTestManager(t, f)

		_, err := m.Login(context.Background(), "a@x.com", "secret")
		require.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("server unavailable is a network error", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.respond("/auth/login", http.StatusServiceUnavailable, nil)
		m, _ := newTestManager(t, f)

		_, err := m.Login(context.Background(), "a@x.com", "secret")
		require.ErrorIs(t, err, ErrNetwork)
		require.NotErrorIs(t, err, ErrCredentials)
	})

	t.Run("unreachable server is a network error", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		m, _ := newTestManager(t, f)
		f.srv.Close()

		_, err := m.Login(context.Background(), "a@x.com", "secret")
		require.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("empty input makes no call", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		m, _ := newTestManager(t, f)

		_, err := m.Login(context.Background(), " ", "secret")
		require.ErrorIs(t, err, ErrInvalidInput)
		require.Contains(t, err.Error(), "identifier is required")

		_, err = m.Login(context.Background(), "a@x.com", "")
		require.ErrorIs(t, err, ErrInvalidInput)
		require.Zero(t, f.totalCalls())
	})

	t.Run("new attempt discards previous challenge", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.respond("/auth/login", http.StatusOK, map[string]any{"requiresTwoFactor": true, "destinationMasked": "a***@x.com"})
		m, _ := newTestManager(t, f)

		_, err := m.Login(context.Background(), "a@x.com", "secret")
		require.NoError(t, err)
		require.Equal(t, StateTwoFactorPending, m.Session.State())

		f.respond("/auth/login", http.StatusUnauthorized, map[string]string{"message": "Invalid"})
		_, err = m.Login(context.Background(), "a@x.com", "wrong")
		require.ErrorIs(t, err, ErrCredentials)
		require.Nil(t, m.Session.PendingTwoFactor())
		require.Equal(t, StateAnonymous, m.Session.State())
	})

	t.Run("two-factor login drops an existing session", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.respond("/auth/login", http.StatusOK, map[string]any{"requiresTwoFactor": true})
		m, persister := newTestManager(t, f)
		require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "old", RefreshToken: "r"}, dashboardUser()))

		_, err := m.Login(context.Background(), "b@x.com", "secret")
		require.NoError(t, err)
		require.Empty(t, m.Session.AccessToken())
		require.Nil(t, m.Session.User())
		require.Zero(t, persister.Len())
	})
}

func TestLoginRateLimit(t *testing.T) {
	t.Parallel()

	f := newFakePlatform(t)
	f.respond("/auth/login", http.StatusUnauthorized, map[string]string{"message": "Invalid"})
	m, _ := newTestManager(t, f, WithLoginRateLimit(1))

	_, err := m.Login(context.Background(), "a@x.com", "bad")
	require.ErrorIs(t, err, ErrCredentials)

	// The next token is a minute away, far past this deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = m.Login(ctx, "a@x.com", "bad")
	require.ErrorIs(t, err, ErrNetwork)
	require.Equal(t, 1, f.callCount("/auth/login"))
}

func TestLogout(t *testing.T) {
	t.Parallel()

	t.Run("clears even when the server fails", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		f.handle("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
			var req RefreshRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "R1", req.RefreshToken)
			writeJSON(w, http.StatusInternalServerError, nil)
		})
		m, persister := newTestManager(t, f)
		require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A1", RefreshToken: "R1"}, dashboardUser()))

		require.NoError(t, m.Logout(context.Background()))
		require.Equal(t, 1, f.callCount("/auth/logout"))
		require.Equal(t, StateAnonymous, m.Session.State())
		require.Zero(t, persister.Len())
	})

	t.Run("clears when the server is unreachable", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		m, persister := newTestManager(t, f)
		require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A1"}, nil))
		f.srv.Close()

		require.NoError(t, m.Logout(context.Background()))
		require.Equal(t, StateAnonymous, m.Session.State())
		require.Zero(t, persister.Len())
	})

	t.Run("anonymous session makes no call", func(t *testing.T) {
		t.Parallel()
		f := newFakePlatform(t)
		m, _ := newTestManager(t, f)

		require.NoError(t, m.Logout(context.Background()))
		require.Zero(t, f.totalCalls())
	})
}

func TestObserverSeesOutcomes(t *testing.T) {
	t.Parallel()

	f := newFakePlatform(t)
	f.respond("/auth/login", http.StatusUnauthorized, nil)
	obs := &recordingObserver{}
	m, _ := newTestManager(t, f, WithObserver(obs))

	_, _ = m.Login(context.Background(), "a@x.com", "bad")
	_ = m.Logout(context.Background())

	require.Equal(t, []string{"login", "logout"}, obs.ops)
	require.ErrorIs(t, obs.errs[0], ErrCredentials)
	require.NoError(t, obs.errs[1])
}
