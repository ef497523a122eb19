package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counts(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Refresh("ok")
	m.Refresh("ok")
	m.Refresh("failed")
	m.EdgeRedirect("protected")
	m.WSConnected()
	m.WSConnected()
	m.WSDisconnected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.refreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.edgeRedirects.WithLabelValues("protected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsConnections))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Refresh("ok")
		m.GuardDecision("render")
		m.EdgeRedirect("public")
		m.Logout("explicit")
		m.WSConnected()
		m.WSDisconnected()
	})
}

func TestHandler_ServesDashboardCollectors(t *testing.T) {
	reg, m := NewRegistry()
	m.Logout("user")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dashboard_logouts_total{reason="user"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
