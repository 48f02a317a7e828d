package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/httpx"
	"github.com/aussiebroadwan/examadmin/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

// grants allows the listed "section:action" pairs.
type grants map[string]bool

func (g grants) Allowed(section, action string) bool {
	return g[strings.ToLower(section)+":"+action]
}

func sectionFromPath(r *http.Request) (string, string) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "api" {
		return "", ""
	}
	return parts[1], httpx.ActionForMethod(r.Method)
}

func TestRequireToken(t *testing.T) {
	t.Run("redirects without token", func(t *testing.T) {
		h := httpx.RequireToken(staticToken(""), "/login")(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exams", nil))

		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("passes with token", func(t *testing.T) {
		h := httpx.RequireToken(staticToken("A1"), "/login")(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exams", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	checker := grants{"dashboard:read": true, "exams:create": true}

	type decision struct {
		section, action string
		allowed         bool
	}
	var seen []decision
	hook := func(section, action string, allowed bool) {
		seen = append(seen, decision{section, action, allowed})
	}

	h := httpx.Chain(okHandler(),
		httpx.RequireToken(staticToken("A1"), "/login"),
		httpx.RequirePermission(checker, sectionFromPath, "/unauthorized", hook),
	)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/dashboard", http.StatusOK},
		{http.MethodDelete, "/api/dashboard/1", http.StatusSeeOther},
		{http.MethodPost, "/api/exams", http.StatusOK},
		{http.MethodPatch, "/api/exams/1", http.StatusSeeOther},
		{http.MethodOptions, "/api/dashboard", http.StatusSeeOther},
		{http.MethodGet, "/profile", http.StatusOK}, // no requirement
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusSeeOther {
				require.Equal(t, "/unauthorized", rec.Header().Get("Location"))
			}
		})
	}

	require.Len(t, seen, 5)
	require.Equal(t, decision{"dashboard", "read", true}, seen[0])
	require.Equal(t, decision{"dashboard", "delete", false}, seen[1])
}

func TestActionForMethod(t *testing.T) {
	require.Equal(t, "read", httpx.ActionForMethod(http.MethodGet))
	require.Equal(t, "read", httpx.ActionForMethod(http.MethodHead))
	require.Equal(t, "create", httpx.ActionForMethod(http.MethodPost))
	require.Equal(t, "update", httpx.ActionForMethod(http.MethodPut))
	require.Equal(t, "update", httpx.ActionForMethod("patch"))
	require.Equal(t, "delete", httpx.ActionForMethod(http.MethodDelete))
	require.Empty(t, httpx.ActionForMethod(http.MethodTrace))
}

func TestAuthnMiddleware(t *testing.T) {
	signer, err := jwtx.NewSignerHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	var subject string
	h := httpx.AuthnMiddleware(signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = httpx.SubjectFromContext(r.Context())
		claims, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "admin", claims.Role)
		w.WriteHeader(http.StatusOK)
	}))

	call := func(authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	valid, err := signer.Sign(jwtx.NewAccessClaims("u-1", "a@x.com", "admin", []string{"pwd"}, time.Minute, "test", time.Now()))
	require.NoError(t, err)
	expired, err := signer.Sign(jwtx.NewAccessClaims("u-1", "a@x.com", "admin", nil, time.Minute, "test", time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	rec := call("Bearer " + valid)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u-1", subject)

	for name, authz := range map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"garbage":    "Bearer not.a.jwt",
		"expired":    "Bearer " + expired,
	} {
		t.Run(name, func(t *testing.T) {
			rec := call(authz)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
		})
	}
}

func TestRateLimitBySubject(t *testing.T) {
	signer, err := jwtx.NewSignerHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	limit := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), httpx.AuthnMiddleware(signer), httpx.RateLimitBySubject(limit))

	call := func(sub string) int {
		token, err := signer.Sign(jwtx.NewAccessClaims(sub, sub+"@x.com", "admin", nil, time.Minute, "test", time.Now()))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/exams", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, call("u-1"))
	require.Equal(t, http.StatusTooManyRequests, call("u-1"))
	require.Equal(t, http.StatusOK, call("u-2"))
}
