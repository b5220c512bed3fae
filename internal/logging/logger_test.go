package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "secret is redacted",
			input:    "my-secret-password",
			expected: "[REDACTED]",
		},
		{
			name:     "empty secret is still redacted",
			input:    "",
			expected: "[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Secret(tt.input).String()
			if result != tt.expected {
				t.Errorf("Secret(%q).String() = %q, want %q", tt.input, result, tt.expected)
			}
			if Secret(tt.input).GoString() != tt.expected {
				t.Errorf("Secret(%q).GoString() not redacted", tt.input)
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, true)

	logger.Info("info %s", "message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.Debug("debug message")

	out := buf.String()
	assert.Contains(t, out, "✓ info message")
	assert.Contains(t, out, "⚠ warn message")
	assert.Contains(t, out, "✗ error message")
	assert.Contains(t, out, "[DEBUG] debug message")
	assert.NotContains(t, out, "\033[")
}

func TestLoggerDebugDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())
	assert.False(t, logger.IsDebug())
}

func TestLoggerColor(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, false)

	logger.Info("colored")
	assert.Contains(t, buf.String(), "\033[32m")
}

func TestLoggerAttachFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, false)
	logger.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	path, err := logger.AttachFile(dir, "run.log")
	require.NoError(t, err)

	logger.Info("tier %d complete", 1)
	logger.Debug("poll detail")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-01-02T03:04:05Z INFO  tier 1 complete", lines[0])
	assert.Equal(t, "2026-01-02T03:04:05Z DEBUG poll detail", lines[1])
	assert.NotContains(t, string(data), "\033[")

	// console never saw the debug line
	assert.NotContains(t, buf.String(), "poll detail")
}

func TestLoggerAttachFileAppends(t *testing.T) {
	dir := t.TempDir()
	logger := NewWithWriter(&bytes.Buffer{}, false, true)

	_, err := logger.AttachFile(dir, "run.log")
	require.NoError(t, err)
	logger.Info("first")
	require.NoError(t, logger.Close())

	_, err = logger.AttachFile(dir, "run.log")
	require.NoError(t, err)
	logger.Info("second")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "run.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}

func TestRedactFunction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		secrets  []string
		expected string
	}{
		{
			name:     "single secret redacted",
			input:    "posting to https://hooks.example.com/T000/B000/XXXX",
			secrets:  []string{"T000/B000/XXXX"},
			expected: "posting to https://hooks.example.com/[REDACTED]",
		},
		{
			name:     "short secret ignored",
			input:    "Short secret: ab",
			secrets:  []string{"ab"},
			expected: "Short secret: ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Redact(tt.input, tt.secrets))
		})
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://hooks.slack.com/[REDACTED]", RedactURL("https://hooks.slack.com/services/T/B/X"))
	assert.Equal(t, "http://localhost:9091", RedactURL("http://localhost:9091"))
	assert.Equal(t, "[REDACTED]", RedactURL("not a url"))
}
