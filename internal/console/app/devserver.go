package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/examadmin/internal/devserver"
)

// ErrDevModeDisabled is returned when the dev identity server is requested
// without dev mode.
var ErrDevModeDisabled = errors.New("dev mode is disabled, set EXAMADMIN_DEV_MODE=true or pass --dev")

// DevServerOptions seeds the dev identity server.
type DevServerOptions struct {
	// Secret is the demo operators' password.
	Secret string
	// TOTPSecret is the proctor's base32 TOTP secret.
	TOTPSecret string
}

// NewDevServer builds a dev identity server seeded with the demo operators.
func NewDevServer(cfg Config, logger *slog.Logger, opts DevServerOptions) (*devserver.Server, error) {
	if !cfg.DevMode {
		return nil, ErrDevModeDisabled
	}

	srv, err := devserver.New(devserver.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	for _, spec := range devserver.DemoUsers(opts.Secret, opts.TOTPSecret) {
		if _, err := srv.AddUser(spec); err != nil {
			return nil, fmt.Errorf("failed to seed %s: %w", spec.Email, err)
		}
	}
	return srv, nil
}

// RunDevServer serves srv on the dev port until ctx is cancelled.
func RunDevServer(ctx context.Context, cfg Config, logger *slog.Logger, srv *devserver.Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go srv.RunHousekeeping(ctx, cfg.HousekeepingInterval)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.DevListenPort),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 3 * time.Second,
	}

	logger.Warn("dev identity server starting, do not use in production", "port", cfg.DevListenPort)
	return serve(ctx, server, cfg.ShutdownGracePeriod, logger)
}
