// Package metrics holds the console's Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/aussiebroadwan/examadmin/pkg/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the console.
type Metrics struct {
	// Auth flow outcomes, labelled by operation and error kind ("ok" on success)
	AuthOperations *prometheus.CounterVec

	// Route guard decisions
	GuardDecisions *prometheus.CounterVec

	// Console HTTP traffic
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// Ensure Metrics implements authsdk.Observer at compile time.
var _ authsdk.Observer = (*Metrics)(nil)

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		AuthOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "examadmin_auth_operations_total",
				Help: "Total number of auth operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "examadmin_guard_decisions_total",
				Help: "Total number of route guard permission decisions",
			},
			[]string{"section", "action", "decision"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "examadmin_http_requests_total",
				Help: "Total number of console HTTP requests",
			},
			[]string{"code", "method"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "examadmin_http_request_duration_seconds",
				Help:    "Console HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "method"},
		),
	}
}

// NewRegistry creates a new Prometheus registry with metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// HandlerFor returns an HTTP handler exposing reg.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveAuth implements authsdk.Observer.
func (m *Metrics) ObserveAuth(op string, err error) {
	m.AuthOperations.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var authErr *authsdk.AuthError
	if errors.As(err, &authErr) {
		return string(authErr.Kind)
	}
	return "error"
}

// OtherSection is the section label for names the operator holds no grant
// for. Request paths are caller controlled, so they never become labels.
const OtherSection = "other"

// GuardHook counts guard decisions. Sections for which known reports false
// are counted under OtherSection.
func (m *Metrics) GuardHook(known func(section string) bool) httpx.DecisionHook {
	return func(section, action string, allowed bool) {
		decision := "deny"
		if allowed {
			decision = "allow"
		}
		label := OtherSection
		if known != nil && known(section) {
			label = strings.ToLower(section)
		}
		m.GuardDecisions.WithLabelValues(label, action, decision).Inc()
	}
}

// Middleware instruments request counts and durations.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.HTTPRequests,
		promhttp.InstrumentHandlerDuration(m.HTTPDuration, next),
	)
}
