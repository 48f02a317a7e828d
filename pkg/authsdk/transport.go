package authsdk

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/examadmin/pkg/idx"
	"golang.org/x/oauth2"
)

// Transport is the gateway for protected platform calls. It reads the access
// token at send time, so rotation is visible to the very next request, and
// on a 401 it refreshes once and retries once.
type Transport struct {
	// Base performs the actual round trip, http.DefaultTransport when nil.
	Base http.RoundTripper

	Session   *SessionStore
	Refresher *TokenRefresher
	Logger    *slog.Logger
}

// Ensure Transport implements http.RoundTripper at compile time.
var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if req.GetBody != nil && req.Body != nil && req.Body != http.NoBody {
		// Every attempt sends a copy from GetBody, so the original is ours to close.
		defer req.Body.Close()
	}

	if t.Session.Expired() && t.Session.RefreshToken() != "" && t.Refresher != nil {
		if _, err := t.Refresher.RefreshIfStale(ctx, t.Session.AccessToken()); err != nil {
			t.logger().Warn("proactive refresh failed", "err", err)
		}
	}

	token := t.Session.AccessToken()
	resp, err := t.send(req, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || token == "" || t.Refresher == nil {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// The body was consumed by the first attempt and cannot be replayed.
		return resp, nil
	}

	newToken, refreshErr := t.Refresher.RefreshIfStale(ctx, token)
	if refreshErr != nil {
		t.logger().Info("refresh after 401 failed, returning original response", "err", refreshErr)
		return resp, nil
	}

	// The first response is only discarded once a retry is certain.
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return t.send(req, newToken)
}

// send clones req, attaches the token and a request id, and performs the
// round trip.
func (t *Transport) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil && req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}

	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(out)
	} else {
		out.Header.Del("Authorization")
	}
	if out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", idx.New().String())
	}

	return t.base().RoundTrip(out)
}
