// Package exectest provides a recording CommandExecutor for tests.
package exectest

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
}

// Line renders the call as a single command line.
func (c RecordedCall) Line() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// MockCommandExecutor provides a configurable mock for testing command users.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command prefixes ("docker compose -f a.yml up") to responses.
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// RecordedCalls stores all calls made to Execute for verification.
	RecordedCalls []RecordedCall

	// StrictMode causes Execute to fail if no matching response is found.
	StrictMode bool
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string]MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := RecordedCall{Command: name, Args: append([]string(nil), args...)}
	m.RecordedCalls = append(m.RecordedCalls, call)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	key := call.Line()

	if resp, ok := m.Responses[key]; ok {
		return resp.Stdout, resp.Stderr, resp.Err
	}

	// Longest matching prefix wins so that specific patterns beat general ones.
	best := ""
	for pattern := range m.Responses {
		if strings.HasPrefix(key, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best != "" {
		resp := m.Responses[best]
		return resp.Stdout, resp.Stderr, resp.Err
	}

	if m.DefaultResponse != nil {
		return m.DefaultResponse.Stdout, m.DefaultResponse.Stderr, m.DefaultResponse.Err
	}

	if m.StrictMode {
		return nil, nil, fmt.Errorf("mock: no response configured for command: %s", key)
	}

	return []byte{}, []byte{}, nil
}

// AddResponse registers a mock response for a command prefix.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddErrorResponse adds an error response for a command prefix.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, errMsg string, exitCode int) {
	m.AddResponse(commandPattern, MockResponse{
		Stdout: []byte{},
		Stderr: []byte(errMsg),
		Err:    fmt.Errorf("exit status %d", exitCode),
	})
}

// Calls returns a copy of every recorded call.
func (m *MockCommandExecutor) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]RecordedCall, len(m.RecordedCalls))
	copy(calls, m.RecordedCalls)
	return calls
}

// Lines returns every recorded call rendered as a command line.
func (m *MockCommandExecutor) Lines() []string {
	calls := m.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line()
	}
	return lines
}

// CallCount returns the number of times Execute was called.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// Reset clears all recorded calls and responses.
func (m *MockCommandExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = make(map[string]MockResponse)
	m.RecordedCalls = make([]RecordedCall, 0)
	m.DefaultResponse = nil
}
