package exectest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCommandExecutor_PrefixMatching(t *testing.T) {
	t.Parallel()

	mock := NewMockCommandExecutor()
	mock.AddResponse("docker compose", MockResponse{Stdout: []byte("general")})
	mock.AddErrorResponse("docker compose -f broken.yml", "no such service", 1)

	out, _, err := mock.Execute(context.Background(), "docker", "compose", "-f", "ok.yml", "up", "-d")
	require.NoError(t, err)
	assert.Equal(t, "general", string(out))

	_, stderr, err := mock.Execute(context.Background(), "docker", "compose", "-f", "broken.yml", "up", "-d")
	require.Error(t, err)
	assert.Equal(t, "no such service", string(stderr))

	assert.Equal(t, 2, mock.CallCount())
	assert.Equal(t, "docker compose -f ok.yml up -d", mock.Lines()[0])
}

func TestMockCommandExecutor_StrictMode(t *testing.T) {
	t.Parallel()

	mock := NewMockCommandExecutor()
	mock.StrictMode = true

	_, _, err := mock.Execute(context.Background(), "pg_isready")
	assert.ErrorContains(t, err, "no response configured")

	mock.Reset()
	assert.Zero(t, mock.CallCount())
}

func TestMockCommandExecutor_CancelledContext(t *testing.T) {
	t.Parallel()

	mock := NewMockCommandExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := mock.Execute(ctx, "docker", "ps")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mock.CallCount())
}
