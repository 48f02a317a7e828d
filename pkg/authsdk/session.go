package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/jwtx"
)

// expiryBuffer refreshes a little before the server would reject the token.
const expiryBuffer = 30 * time.Second

// State is the session-level state machine position.
type State string

const (
	StateAnonymous        State = "anonymous"
	StateTwoFactorPending State = "two_factor_pending"
	StateAuthenticated    State = "authenticated"
)

// Session is a point-in-time copy of the session. Mutating it has no effect
// on the store.
type Session struct {
	AccessToken      string
	RefreshToken     string
	Expiry           time.Time // zero when unknown
	User             *UserProfile
	PendingTwoFactor *TwoFactorChallenge
}

// State derives the state machine position from the snapshot.
func (s Session) State() State {
	switch {
	case s.AccessToken != "":
		return StateAuthenticated
	case s.PendingTwoFactor != nil:
		return StateTwoFactorPending
	default:
		return StateAnonymous
	}
}

// SessionStore is the single source of truth for auth state. It is created
// by the application root and injected into every component that needs it.
type SessionStore struct {
	persist Persister
	logger  *slog.Logger
	now     func() time.Time

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiry       time.Time
	user         *UserProfile
	pending      *TwoFactorChallenge
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithSessionLogger sets the logger used for store events.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *SessionStore) { s.logger = logger }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates an empty (anonymous) store backed by p. Call
// Initialize to load a persisted session.
func NewSessionStore(p Persister, opts ...SessionOption) *SessionStore {
	if p == nil {
		p = NewMemoryPersister()
	}
	s := &SessionStore{
		persist: p,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the persisted access and refresh tokens. The user profile
// is deliberately left nil, so permission checks fail closed until the
// profile is loaded again.
func (s *SessionStore) Initialize(ctx context.Context) error {
	access, _, err := s.persist.Get(ctx, KeyAccessToken)
	if err != nil {
		return fmt.Errorf("failed to load access token: %w", err)
	}
	refresh, _, err := s.persist.Get(ctx, KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("failed to load refresh token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = access
	s.refreshToken = refresh
	s.expiry = tokenExpiry(access, 0, s.now())
	s.user = nil
	s.pending = nil

	if access != "" {
		s.logger.Debug("restored persisted session")
	}
	return nil
}

// SetAuthenticated overwrites the session with an authenticated one and
// persists it. A pending two-factor challenge is dropped.
func (s *SessionStore) SetAuthenticated(ctx context.Context, tokens Tokens, user *UserProfile) error {
	if tokens.AccessToken == "" {
		return errors.New("authsdk: access token is required")
	}

	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiry = tokenExpiry(tokens.AccessToken, tokens.ExpiresIn, s.now())
	s.user = user
	s.pending = nil
	s.mu.Unlock()

	if err := s.persist.Set(ctx, KeyAccessToken, tokens.AccessToken); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}
	if tokens.RefreshToken == "" {
		if err := s.persist.Delete(ctx, KeyRefreshToken); err != nil {
			return fmt.Errorf("failed to delete refresh token: %w", err)
		}
	} else if err := s.persist.Set(ctx, KeyRefreshToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("failed to persist refresh token: %w", err)
	}
	return s.persistUser(ctx, user)
}

// SetUser repopulates the profile of an authenticated session.
func (s *SessionStore) SetUser(ctx context.Context, user *UserProfile) error {
	s.mu.Lock()
	if s.accessToken == "" {
		s.mu.Unlock()
		return errors.New("authsdk: cannot set user on an unauthenticated session")
	}
	s.user = user
	s.mu.Unlock()

	return s.persistUser(ctx, user)
}

func (s *SessionStore) persistUser(ctx context.Context, user *UserProfile) error {
	if user == nil {
		return s.persist.Delete(ctx, KeyUserProfile)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user profile: %w", err)
	}
	if err := s.persist.Set(ctx, KeyUserProfile, string(data)); err != nil {
		return fmt.Errorf("failed to persist user profile: %w", err)
	}
	return nil
}

// BeginTwoFactor records a pending challenge. Any previous session, in
// memory and persisted, is dropped so a pending challenge never coexists with
// a token.
func (s *SessionStore) BeginTwoFactor(ctx context.Context, ch *TwoFactorChallenge) error {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiry = time.Time{}
	s.user = nil
	s.pending = ch
	s.mu.Unlock()

	if err := s.persist.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUserProfile); err != nil {
		return fmt.Errorf("failed to delete persisted session: %w", err)
	}
	return nil
}

// ClearTwoFactor drops the pending challenge, if any.
func (s *SessionStore) ClearTwoFactor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

// Clear wipes the session. Memory is always wiped; the returned error only
// reports a failure to remove the persisted keys.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiry = time.Time{}
	s.user = nil
	s.pending = nil
	s.mu.Unlock()

	if err := s.persist.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUserProfile); err != nil {
		return fmt.Errorf("failed to delete persisted session: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current session.
func (s *SessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Session{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		Expiry:       s.expiry,
	}
	if s.user != nil {
		u := *s.user
		u.Role.Permissions = append([]PermissionGrant(nil), s.user.Role.Permissions...)
		snap.User = &u
	}
	if s.pending != nil {
		ch := *s.pending
		snap.PendingTwoFactor = &ch
	}
	return snap
}

// State returns the state machine position.
func (s *SessionStore) State() State {
	return s.Snapshot().State()
}

// AccessToken returns the current access token, empty when anonymous.
func (s *SessionStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *SessionStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// User returns the profile, nil until it has been loaded.
func (s *SessionStore) User() *UserProfile {
	return s.Snapshot().User
}

// PendingTwoFactor returns the pending challenge, nil when none.
func (s *SessionStore) PendingTwoFactor() *TwoFactorChallenge {
	return s.Snapshot().PendingTwoFactor
}

// Expired reports whether the access token is known to be past its expiry.
// Tokens with an unknown expiry are never considered expired here; the
// server's 401 is the authority for those.
func (s *SessionStore) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accessToken == "" || s.expiry.IsZero() {
		return false
	}
	return !s.now().Before(s.expiry)
}

// tokenExpiry prefers the server's expires_in, falling back to the JWT exp
// claim. Both get the refresh buffer subtracted.
func tokenExpiry(token string, expiresIn int, now time.Time) time.Time {
	if token == "" {
		return time.Time{}
	}
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn)*time.Second - expiryBuffer)
	}
	if exp, ok := jwtx.ExpiryOf(token); ok {
		return exp.Add(-expiryBuffer)
	}
	return time.Time{}
}
