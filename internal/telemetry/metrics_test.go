package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrestaurant/gateway/internal/config"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest("orders", http.MethodGet, 200, 15*time.Millisecond)
	m.ObserveRequest("orders", http.MethodGet, 200, 5*time.Millisecond)
	m.ObserveRequest("", http.MethodGet, 404, time.Millisecond)
	m.IncAuthzDenied("missing_authority")
	m.IncRoleFallback("oracle_error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("orders", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("none", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authzDenied.WithLabelValues("missing_authority")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roleFallback.WithLabelValues("oracle_error")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("r", "GET", 200, time.Second)
		m.IncAuthzDenied("x")
		m.IncRoleFallback("x")
		m.IncLogin("ok")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.IncLogin("success")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `gateway_logins_total{result="success"} 1`)
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.ObservabilityConfig{ServiceName: "test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
