// Package proxy is the console gateway. It guards the platform's section
// APIs with the operator's session and permissions and forwards allowed
// requests upstream with the operator's bearer token attached.
package proxy

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/examadmin/internal/console/metrics"
	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/aussiebroadwan/examadmin/pkg/httpx"
	"github.com/aussiebroadwan/examadmin/pkg/slogx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
)

// Paths the guards redirect to.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Options configures the gateway.
type Options struct {
	// Upstream is the platform API base URL. Required.
	Upstream *url.URL

	// Manager supplies the session, the permission evaluator and the
	// refreshing transport. Required.
	Manager *authsdk.Manager

	// Metrics and Gatherer are optional; /metrics is mounted only when
	// Gatherer is set.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// Pinger reports persister health on /readyz when set.
	Pinger Pinger

	// UnrestrictedSections only require a signed-in operator.
	UnrestrictedSections []string

	// CORSOrigins lists browser origins allowed to call the gateway. CORS is
	// disabled when empty.
	CORSOrigins []string

	// Base replaces the transport under the authsdk gateway, for tests.
	Base http.RoundTripper

	Version string
	Logger  *slog.Logger
}

// New assembles the gateway router.
func New(opts Options) (http.Handler, error) {
	if opts.Upstream == nil {
		return nil, errors.New("proxy: upstream URL is required")
	}
	if opts.Manager == nil {
		return nil, errors.New("proxy: auth manager is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	unrestricted := make(map[string]struct{}, len(opts.UnrestrictedSections))
	for _, s := range opts.UnrestrictedSections {
		unrestricted[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogx.HTTPMiddleware(opts.Logger))
	r.Use(rejectAmbiguousPath)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(corsOptions(opts.CORSOrigins)))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	startTime := time.Now()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/livez", LivezHandler(startTime, opts.Version))
	r.Get("/readyz", ReadyzHandler(startTime, opts.Version, opts.Pinger))
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.HandlerFor(opts.Gatherer))
	}

	r.Get(LoginPath, func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusUnauthorized, "Not signed in, run `examadmin login`")
	})
	r.Get(UnauthorizedPath, func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusForbidden, "You do not have permission to access this section")
	})

	var hooks []httpx.DecisionHook
	if opts.Metrics != nil {
		hooks = append(hooks, opts.Metrics.GuardHook(opts.Manager.Permissions.HasSection))
	}

	requirement := func(r *http.Request) (string, string) {
		section := chi.URLParam(r, "section")
		if _, ok := unrestricted[strings.ToLower(section)]; ok {
			return "", ""
		}
		return section, httpx.ActionForMethod(r.Method)
	}

	forward := newForwarder(opts.Upstream, opts.Manager.Transport(opts.Base))

	r.Route("/api/{section}", func(r chi.Router) {
		r.Use(
			loadProfile(opts.Manager, profileRetryInterval),
			httpx.RequireToken(opts.Manager.Session, LoginPath),
			httpx.RequirePermission(opts.Manager.Permissions, requirement, UnauthorizedPath, hooks...),
			bufferBody(maxForwardBody),
		)
		r.Handle("/", forward)
		r.Handle("/*", forward)
	})

	return r, nil
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Content-Type", slogx.RequestIDHeader},
		ExposedHeaders:   []string{slogx.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
}
