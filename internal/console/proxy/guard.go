package proxy

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/aussiebroadwan/examadmin/pkg/httpx"
	"github.com/aussiebroadwan/examadmin/pkg/slogx"
	"golang.org/x/time/rate"
)

// profileRetryInterval spaces out profile fetches while the session holds a
// token but no profile.
const profileRetryInterval = 5 * time.Second

// rejectAmbiguousPath answers 400 for paths an upstream could resolve to a
// different section than the one the guard checks: dot segments, empty
// segments, backslashes and encoded slashes.
func rejectAmbiguousPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !canonicalPath(r.URL.Path, r.URL.EscapedPath()) {
			slogx.FromContext(r.Context()).Info("rejecting ambiguous path", "path", r.URL.EscapedPath())
			httpx.WriteError(w, http.StatusBadRequest, "Invalid request path")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func canonicalPath(decoded, escaped string) bool {
	lower := strings.ToLower(escaped)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%5c") || strings.Contains(decoded, `\`) {
		return false
	}

	segments := strings.Split(strings.TrimPrefix(decoded, "/"), "/")
	for i, seg := range segments {
		switch seg {
		case ".", "..":
			return false
		case "":
			// Only a trailing slash may leave an empty segment.
			if i != len(segments)-1 {
				return false
			}
		}
	}
	return true
}

// loadProfile fetches the operator's profile when the session holds a token
// but no profile, as after a restart. Failed fetches are retried at most once
// per interval; until one succeeds the permission guard denies.
func loadProfile(m *authsdk.Manager, interval time.Duration) func(http.Handler) http.Handler {
	limiter := &rate.Sometimes{Interval: interval}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.Session.AccessToken() != "" && m.Session.User() == nil {
				limiter.Do(func() {
					if m.Session.User() != nil {
						return
					}
					if _, err := m.LoadProfile(r.Context()); err != nil {
						slogx.FromContext(r.Context()).Warn("profile unavailable", "err", err)
					}
				})
			}
			next.ServeHTTP(w, r)
		})
	}
}
