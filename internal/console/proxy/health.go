package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/httpx"
)

// Pinger is implemented by the session persister.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the gateway's dependencies.
type HealthChecks struct {
	Store string `json:"store"`
}

// LivezHandler always reports ok while the process is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports degraded with 503 when the session store cannot be
// reached. A nil pinger is always ready.
func ReadyzHandler(startTime time.Time, version string, p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{Store: "ok"}
		status := "ok"
		code := http.StatusOK

		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				checks.Store = "error: " + err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
