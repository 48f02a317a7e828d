package devserver

import (
	"context"
	"time"
)

// Sweep removes expired refresh tokens and two-factor challenges.
func (s *Server) Sweep() int {
	removed := s.sessions.sweep(s.now())
	s.logger.Debug("housekeeping sweep completed", "removed", removed)
	return removed
}

// RunHousekeeping sweeps every interval until ctx is done. If interval is 0
// or negative, defaults to 1 minute.
func (s *Server) RunHousekeeping(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("housekeeping started", "interval", interval)
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			s.logger.Info("housekeeping stopped")
			return
		}
	}
}
