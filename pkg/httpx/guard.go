package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/examadmin/pkg/slogx"
)

// TokenSource reports the access token currently held, "" when signed out.
type TokenSource interface {
	AccessToken() string
}

// PermissionChecker answers whether the current operator may perform action
// on section.
type PermissionChecker interface {
	Allowed(section, action string) bool
}

// RouteRequirement resolves the (section, action) pair a request needs. An
// empty section means the route only requires a token.
type RouteRequirement func(r *http.Request) (section, action string)

// DecisionHook observes every permission decision the guard makes.
type DecisionHook func(section, action string, allowed bool)

// RequireToken redirects to loginPath unless a token is held.
func RequireToken(tokens TokenSource, loginPath string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens.AccessToken() == "" {
				slogx.FromContext(r.Context()).Info("no session, redirecting to login")
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission lets a request through only if the checker allows the
// pair resolved by req, and redirects to deniedPath otherwise. Routes that
// resolve to an empty section are passed through untouched.
func RequirePermission(p PermissionChecker, req RouteRequirement, deniedPath string, hooks ...DecisionHook) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			section, action := req(r)
			if section == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := p.Allowed(section, action)
			for _, h := range hooks {
				h(section, action, allowed)
			}

			if !allowed {
				slogx.FromContext(r.Context()).Info("permission denied",
					"section", section,
					"action", action,
				)
				http.Redirect(w, r, deniedPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActionForMethod maps an HTTP method to the CRUD action it performs. Unknown
// methods map to "", which every checker denies.
func ActionForMethod(method string) string {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return ""
	}
}
