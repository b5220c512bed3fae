package unit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRuntime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		state     string
		health    string
		useHealth bool
		want      Status
	}{
		{"running healthy", "running", "healthy", true, StatusHealthy},
		{"running unhealthy", "running", "unhealthy", true, StatusUnhealthy},
		{"running starting", "running", "starting", true, StatusStarting},
		{"running without healthcheck", "running", "", true, StatusHealthy},
		{"created", "created", "", true, StatusStarting},
		{"restarting", "restarting", "unhealthy", true, StatusStarting},
		{"exited", "exited", "", true, StatusStopped},
		{"dead", "dead", "", true, StatusStopped},
		{"missing", "missing", "", true, StatusStopped},
		{"exited ignores health", "exited", "healthy", true, StatusStopped},
		{"paused", "paused", "", true, StatusUnknown},
		{"uppercase", "Running", "Healthy", true, StatusHealthy},
		{"no health check declared ignores runtime health", "running", "unhealthy", false, StatusHealthy},
		{"no health check declared still sees stopped", "exited", "", false, StatusStopped},
		{"no health check declared created", "created", "", false, StatusStarting},
		{"unrecognised state", "hibernating", "", true, StatusUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FromRuntime(tt.state, tt.health, tt.useHealth))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusHealthy.Terminal())
	assert.True(t, StatusUnhealthy.Terminal())
	assert.True(t, StatusStopped.Terminal())
	assert.False(t, StatusStarting.Terminal())
	assert.False(t, StatusUnknown.Terminal())
}

func TestStatusJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(map[string]Status{"db": StatusStopped})
	require.NoError(t, err)
	assert.JSONEq(t, `{"db":"stopped"}`, string(data))
	assert.Equal(t, "status(42)", Status(42).String())

	var back map[string]Status
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, StatusStopped, back["db"])
	assert.Error(t, json.Unmarshal([]byte(`{"db":"sleepy"}`), &back))
}

func TestHealthCheckDescribe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", HealthCheck{}.Describe())
	assert.Equal(t, "http http://localhost/health", HealthCheck{Kind: HealthHTTP, URL: "http://localhost/health"}.Describe())
	assert.Equal(t, "http http://x/h (expect 204)", HealthCheck{Kind: HealthHTTP, URL: "http://x/h", ExpectedStatus: 204}.Describe())
	assert.Equal(t, "command pg_isready -q", HealthCheck{Kind: HealthCommand, Command: []string{"pg_isready", "-q"}}.Describe())
	assert.Equal(t, "infra/db/compose.yml (profile core)", Source{ComposeFile: "infra/db/compose.yml", Profile: "core"}.String())
}
