package rollout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushFrom(t *testing.T) {
	t.Parallel()

	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "tierup_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	run := NewRun(ModeUp, nil, false)
	require.NoError(t, PushFrom(context.Background(), reg, srv.URL, "", run))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/tierup/mode/up", path)
}

func TestPushFrom_Error(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := PushFrom(context.Background(), prometheus.NewRegistry(), srv.URL, "tierup", NewRun(ModeDown, nil, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push metrics")
}
