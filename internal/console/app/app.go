package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/examadmin/internal/console/metrics"
	"github.com/aussiebroadwan/examadmin/internal/console/proxy"
	"github.com/aussiebroadwan/examadmin/internal/console/store/sqlite"
	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/aussiebroadwan/examadmin/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

// BuildVersion is overridden at build time via -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application owns the console's long-lived dependencies: the sealed
// session file, the auth manager built on it and the metrics registry.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store    *sqlite.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	manager  *authsdk.Manager
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "examadmin",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New opens the session file, applies migrations and restores any persisted
// session. logger may be nil, in which case one is built from cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}
	app := &Application{cfg: cfg, logger: logger}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.registry, app.metrics = metrics.NewRegistry()

	if err := app.initAuth(ctx); err != nil {
		_ = app.store.Close()
		return nil, err
	}

	return app, nil
}

// initStore opens the sealed SQLite session file and applies migrations.
func (app *Application) initStore() error {
	sealer, err := LoadStoreSealer(app.cfg, app.logger)
	if err != nil {
		return fmt.Errorf("failed to load store key: %w", err)
	}

	if dir := filepath.Dir(app.cfg.DatabaseFile); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	st, err := sqlite.NewStore(dsn, sealer)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.store = st

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Debug("session store ready", "path", app.cfg.DatabaseFile)
	return nil
}

// initAuth builds the auth manager and restores the persisted session.
func (app *Application) initAuth(ctx context.Context) error {
	client := authsdk.NewSDKClient(app.cfg.APIURL,
		authsdk.WithHTTPClient(&http.Client{Timeout: app.cfg.HTTPTimeout}),
		authsdk.WithLogger(app.logger),
		authsdk.WithObserver(app.metrics),
		authsdk.WithLoginRateLimit(app.cfg.LoginRate),
	)
	session := authsdk.NewSessionStore(app.store, authsdk.WithSessionLogger(app.logger))
	if err := session.Initialize(ctx); err != nil {
		// Usually a changed store key. The old session is unusable either way.
		app.logger.Warn("discarding unreadable session", "err", err)
		if err := session.Clear(ctx); err != nil {
			return fmt.Errorf("failed to reset session: %w", err)
		}
	}

	app.manager = authsdk.NewManager(client, session)
	return nil
}

func (app *Application) Config() Config            { return app.cfg }
func (app *Application) Logger() *slog.Logger      { return app.logger }
func (app *Application) Manager() *authsdk.Manager { return app.manager }

// SessionUpdatedAt reports when the access token was last written.
func (app *Application) SessionUpdatedAt(ctx context.Context) (time.Time, error) {
	return app.store.UpdatedAt(ctx, authsdk.KeyAccessToken)
}

// Gateway builds the console gateway handler.
func (app *Application) Gateway() (http.Handler, error) {
	upstream, err := url.Parse(app.cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	return proxy.New(proxy.Options{
		Upstream:             upstream,
		Manager:              app.manager,
		Metrics:              app.metrics,
		Gatherer:             app.registry,
		Pinger:               app.store,
		UnrestrictedSections: app.cfg.UnrestrictedSections,
		CORSOrigins:          app.cfg.CORSOrigins,
		Version:              BuildVersion,
		Logger:               app.logger,
	})
}

// restoreProfile loads the profile for a session restored from disk. On
// failure the gateway keeps retrying on incoming requests.
func (app *Application) restoreProfile(ctx context.Context) {
	m := app.manager
	if m.Session.AccessToken() == "" || m.Session.User() != nil {
		return
	}
	if _, err := m.LoadProfile(ctx); err != nil {
		app.logger.Warn("operator profile unavailable, permission checks deny until it loads", "err", err)
	}
}

// ServeGateway serves the console gateway until ctx is cancelled.
func (app *Application) ServeGateway(ctx context.Context) error {
	app.restoreProfile(ctx)

	handler, err := app.Gateway()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.ListenPort),
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
	}

	app.logger.Info("console gateway starting",
		"port", app.cfg.ListenPort,
		"api_url", app.cfg.APIURL,
		"version", BuildVersion,
	)
	return serve(ctx, server, app.cfg.ShutdownGracePeriod, app.logger)
}

// Close releases the session file.
func (app *Application) Close() error {
	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, grace time.Duration, logger *slog.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful server shutdown failed", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("error closing server", "error", err)
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
