package devserver

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/cryptox"
	"github.com/aussiebroadwan/examadmin/pkg/idx"
)

var (
	ErrInvalidRefresh = errors.New("devserver: invalid refresh token")
	ErrNoChallenge    = errors.New("devserver: no pending verification")
)

// challengeTTL is how long a one-time code request stays open.
const challengeTTL = 5 * time.Minute

type refreshRecord struct {
	userID    idx.ID
	amr       []string
	expiresAt time.Time
	revoked   bool
}

type challenge struct {
	userID    idx.ID
	expiresAt time.Time
}

// sessions tracks refresh tokens (by hash) and open two-factor challenges
// (by lower-cased identifier).
type sessions struct {
	mu         sync.Mutex
	refresh    map[string]*refreshRecord
	challenges map[string]challenge
}

func newSessions() *sessions {
	return &sessions{
		refresh:    make(map[string]*refreshRecord),
		challenges: make(map[string]challenge),
	}
}

// issueRefresh stores a new opaque refresh token and returns it.
func (s *sessions) issueRefresh(userID idx.ID, amr []string, expiresAt time.Time) (string, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[cryptox.HashToken(opaque)] = &refreshRecord{
		userID:    userID,
		amr:       amr,
		expiresAt: expiresAt,
	}
	return opaque, nil
}

// consumeRefresh revokes opaque and returns its record. Presenting an
// already revoked token revokes every token of that user.
func (s *sessions) consumeRefresh(opaque string, now time.Time) (refreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refresh[cryptox.HashToken(opaque)]
	if !ok || now.After(rec.expiresAt) {
		return refreshRecord{}, ErrInvalidRefresh
	}
	if rec.revoked {
		for _, r := range s.refresh {
			if r.userID == rec.userID {
				r.revoked = true
			}
		}
		return refreshRecord{}, ErrInvalidRefresh
	}

	rec.revoked = true
	return *rec, nil
}

// revokeRefresh revokes opaque if it exists.
func (s *sessions) revokeRefresh(opaque string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refresh[cryptox.HashToken(opaque)]
	if !ok || rec.revoked {
		return false
	}
	rec.revoked = true
	return true
}

func (s *sessions) openChallenge(identifier string, userID idx.ID, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[strings.ToLower(identifier)] = challenge{userID: userID, expiresAt: now.Add(challengeTTL)}
}

func (s *sessions) pendingChallenge(identifier string, now time.Time) (idx.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[strings.ToLower(identifier)]
	if !ok || now.After(ch.expiresAt) {
		return idx.Zero, ErrNoChallenge
	}
	return ch.userID, nil
}

func (s *sessions) closeChallenge(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, strings.ToLower(identifier))
}

// sweep drops expired refresh tokens and challenges, returning how many
// entries were removed.
func (s *sessions) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, r := range s.refresh {
		if now.After(r.expiresAt) {
			delete(s.refresh, k)
			removed++
		}
	}
	for k, ch := range s.challenges {
		if now.After(ch.expiresAt) {
			delete(s.challenges, k)
			removed++
		}
	}
	return removed
}
