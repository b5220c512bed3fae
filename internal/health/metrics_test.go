package health

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/unit"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_RecordProbe(t *testing.T) {
	InitMetrics()
	InitMetrics() // idempotent

	assert.NotNil(t, GetProbeTotal())
	assert.NotNil(t, GetUnitOutcomeTotal())
	assert.NotNil(t, GetRolloutStartedTotal())

	m := NewMetrics()
	m.RecordProbe("metrics-db", "sql", unit.StatusHealthy, 0.02)
	m.RecordProbe("metrics-db", "sql", unit.StatusStarting, 0.5)
	m.RecordUnitOutcome("metrics-tier", "healthy")
	m.RecordTier("metrics-tier", "complete", 12)
	m.RecordRolloutCompleted("up", "success", 30)

	body := scrape(t)
	assert.Contains(t, body, `tierup_probe_total{kind="sql",status="healthy",unit="metrics-db"} 1`)
	assert.Contains(t, body, `tierup_probe_total{kind="sql",status="starting",unit="metrics-db"} 1`)
	assert.Contains(t, body, `tierup_unit_healthy{unit="metrics-db"} 0`)
	assert.Contains(t, body, `tierup_unit_outcome_total{state="healthy",tier="metrics-tier"} 1`)
	assert.Contains(t, body, `tierup_tier_duration_seconds_count{state="complete",tier="metrics-tier"} 1`)
}

func TestMetricsServer(t *testing.T) {
	logger := logging.NewWithWriter(io.Discard, false, true)
	srv := NewMetricsServer(DefaultMetricsServerConfig("127.0.0.1:0"), logger)
	require.NoError(t, srv.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	}()

	NewMetrics().RecordProbe("server-unit", "http", unit.StatusHealthy, 0.1)

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `tierup_probe_total{kind="http",status="healthy",unit="server-unit"}`)

	resp, err = http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsServer_DisabledWithoutAddr(t *testing.T) {
	t.Parallel()

	srv := NewMetricsServer(DefaultMetricsServerConfig(""), logging.New(false, true))
	require.NoError(t, srv.Start())
	assert.Equal(t, "", srv.Addr())
	assert.NoError(t, srv.Stop(context.Background()))
}
