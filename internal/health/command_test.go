package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/tierup/internal/unit"
	"github.com/systmms/tierup/pkg/exec/exectest"
)

func commandUnit(argv ...string) unit.Unit {
	return unit.Unit{Name: "vault", Health: unit.HealthCheck{Kind: unit.HealthCommand, Command: argv}}
}

func TestCommandProber(t *testing.T) {
	t.Parallel()

	mock := exectest.NewMockCommandExecutor()
	mock.AddResponse("vault status", exectest.MockResponse{Stdout: []byte("Sealed false\n")})
	mock.AddErrorResponse("pg_isready", "no response", 2)

	p := NewCommandProber(mock)

	res := p.Probe(context.Background(), commandUnit("vault", "status"))
	assert.Equal(t, unit.StatusHealthy, res.Status)

	res = p.Probe(context.Background(), commandUnit("pg_isready", "-h", "localhost"))
	assert.Equal(t, unit.StatusStarting, res.Status)
	assert.Contains(t, res.Message, "exit status 2")
	assert.Contains(t, res.Message, "no response")

	assert.Equal(t, []string{"vault status", "pg_isready -h localhost"}, mock.Lines())
}

func TestCommandProber_NoCommand(t *testing.T) {
	t.Parallel()

	res := NewCommandProber(exectest.NewMockCommandExecutor()).Probe(context.Background(), commandUnit())
	assert.Equal(t, unit.StatusUnknown, res.Status)
}
