package metrics_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/examadmin/internal/console/metrics"
	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveAuth(t *testing.T) {
	_, m := metrics.NewRegistry()

	m.ObserveAuth("login", nil)
	m.ObserveAuth("login", &authsdk.AuthError{Kind: authsdk.KindCredentials})
	m.ObserveAuth("login", authsdk.ErrCredentials)
	m.ObserveAuth("refresh", errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.AuthOperations.WithLabelValues("login", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.AuthOperations.WithLabelValues("login", "credentials")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AuthOperations.WithLabelValues("refresh", "error")))
}

func TestGuardHook(t *testing.T) {
	_, m := metrics.NewRegistry()
	granted := map[string]bool{"dashboard": true, "exams": true}
	hook := m.GuardHook(func(section string) bool { return granted[strings.ToLower(section)] })

	hook("Dashboard", "read", true)
	hook("dashboard", "read", true)
	hook("Exams", "delete", false)
	for i := 0; i < 50; i++ {
		hook(fmt.Sprintf("random-%d", i), "read", false)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("dashboard", "read", "allow")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("exams", "delete", "deny")))
	require.Equal(t, 50.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues(metrics.OtherSection, "read", "deny")))
	require.Equal(t, 3, testutil.CollectAndCount(m.GuardDecisions))

	m.GuardHook(nil)("Dashboard", "read", true)
	require.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues(metrics.OtherSection, "read", "allow")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg, m := metrics.NewRegistry()

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/exams", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("202", "post")))

	rec := httptest.NewRecorder()
	metrics.HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "examadmin_http_request_duration_seconds")
}
