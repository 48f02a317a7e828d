package authsdk

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bearerOnly answers 200 only for the given token.
func bearerOnly(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	}
}

func TestTransportAttachesCurrentToken(t *testing.T) {
	t.Parallel()

	f := newFakePlatform(t)
	var seen []string
	var mu sync.Mutex
	f.handle("/api/exams", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, nil)
	})
	m, _ := newTestManager(t, f)
	hc := m.HTTPClient()

	resp, err := hc.Get(f.srv.URL + "/api/exams")
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A1"}, nil))
	resp, err = hc.Get(f.srv.URL + "/api/exams")
	require.NoError(t, err)
	resp.Body.Close()

	// Rotation is visible to the very next request
	require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A2"}, nil))
	resp, err = hc.Get(f.srv.URL + "/api/exams")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, []string{"", "Bearer A1", "Bearer A2"}, seen)
}

func TestTransportRefreshesOnceOn401(t *testing.T) {
	t.Parallel()

	f := newFakePlatform(t)
	f.handle("/api/exams", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"title":"Physics"}`, string(body))
		bearerOnly("A2")(w, r)
	})
	f.respond("/auth/refresh-token", http.StatusOK, map[string]any{"accessToken": "A2", "refreshToken": "R2"})
	m, _ := newTestManager(t, f)
	require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A1", RefreshToken: "R1"}, nil))

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/exams", strings.NewReader(`{"title":"Physics"}`))
	require.NoError(t, err)
	resp, err := m.HTTPClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, f.callCount("/api/exams"))
	require.Equal(t, 1, f.callCount("/auth/refresh-token"))
	require.Equal(t, "A2", m.Session.AccessToken())
	require.Equal(t, "R2", m.Session.RefreshToken())
}

func TestTransportConcurrent401sShareOneRefresh(t *testing.T) {
	t.Parallel()

	f := newFakePlatform(t)
	f.handle("/api/exams", bearerOnly("A2"))
	f.handle("/auth/refresh-token", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(20 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]any{"accessToken": "A2"})
	})
	m, _ := newTestManager(t, f)
	require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A1", RefreshToken: "R1"}, nil))
	hc := m.HTTPClient()

	var ok atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := hc.Get(f.srv.URL + "/api/exams")
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(8), ok.Load())
	require.Equal(t, 1, f.callCount("/auth/refresh-token"))
}

func TestTransportFailedRefreshReturnsOriginal401(t *testing.T) {
	t.Parallel()

	f := newFakePlatform(t)
	f.handle("/api/exams", bearerOnly("never"))
	f.respond("/auth/refresh-token", http.StatusUnauthorized, nil)
	m, persister := newTestManager(t, f)
	require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A1", RefreshToken: "R1"}, nil))

	resp, err := m.HTTPClient().Get(f.srv.URL + "/api/exams")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "token expired")

	require.Equal(t, 1, f.callCount("/api/exams"), "no retry without a new token")
	require.Equal(t, StateAnonymous, m.Session.State())
	require.Zero(t, persister.Len())
}

func TestTransportDoesNotReplayOpaqueBody(t *testing.T) {
	t.Parallel()

	f := newFakePlatform(t)
	f.handle("/api/exams", bearerOnly("A2"))
	f.respond("/auth/refresh-token", http.StatusOK, map[string]any{"accessToken": "A2"})
	m, _ := newTestManager(t, f)
	require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A1", RefreshToken: "R1"}, nil))

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/exams", io.NopCloser(strings.NewReader("{}")))
	require.NoError(t, err)
	resp, err := m.HTTPClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, f.callCount("/auth/refresh-token"))
	require.Equal(t, "A1", m.Session.AccessToken())
}

func TestTransportRefreshesKnownExpiredToken(t *testing.T) {
	t.Parallel()

	f := newFakePlatform(t)
	f.handle("/api/exams", bearerOnly("A2"))
	f.respond("/auth/refresh-token", http.StatusOK, map[string]any{"accessToken": "A2", "expiresIn": 3600})

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}
	client := NewSDKClient(f.srv.URL, WithLogger(discardLogger()))
	session := NewSessionStore(NewMemoryPersister(), WithSessionLogger(discardLogger()), WithClock(clock))
	m := NewManager(client, session)

	require.NoError(t, session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A1", RefreshToken: "R1", ExpiresIn: 60}, nil))
	require.False(t, session.Expired())

	clockMu.Lock()
	now = now.Add(45 * time.Second)
	clockMu.Unlock()
	require.True(t, session.Expired())

	resp, err := m.HTTPClient().Get(f.srv.URL + "/api/exams")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, f.callCount("/api/exams"), "refreshed before sending, no 401 round trip")
	require.Equal(t, 1, f.callCount("/auth/refresh-token"))
}

// trackingBody records whether it was closed.
type trackingBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackingBody) Close() error {
	b.closed.Store(true)
	return nil
}

func TestTransportClosesReplayableBody(t *testing.T) {
	t.Parallel()

	f := newFakePlatform(t)
	f.handle("/api/exams", bearerOnly("A2"))
	f.respond("/auth/refresh-token", http.StatusOK, map[string]any{"accessToken": "A2"})
	m, _ := newTestManager(t, f)
	require.NoError(t, m.Session.SetAuthenticated(context.Background(), Tokens{AccessToken: "A1", RefreshToken: "R1"}, nil))

	body := &trackingBody{Reader: strings.NewReader(`{"title":"Physics"}`)}
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/exams", nil)
	require.NoError(t, err)
	req.Body = body
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(`{"title":"Physics"}`)), nil
	}

	resp, err := m.Transport(nil).RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, f.callCount("/api/exams"))
	require.True(t, body.closed.Load())
}
