// Package runtime reads container state from the container runtime. It is the
// only package that knows the runtime's native state vocabulary.
package runtime

import (
	"context"

	"github.com/systmms/tierup/internal/unit"
)

// StateMissing is reported when no container with the requested name exists.
const StateMissing = "missing"

// State is a container's state as reported by the runtime.
type State struct {
	// Status is the container state: running, created, restarting, paused,
	// exited, dead, removing, or StateMissing.
	Status string

	// Health is the runtime health status, empty when the container declares
	// no health check.
	Health string
}

// Running reports whether the container is up.
func (s State) Running() bool {
	return s.Status == "running"
}

// UnitStatus maps the state onto the closed status set. useHealth selects whether
// the runtime's health check result is taken into account.
func (s State) UnitStatus(useHealth bool) unit.Status {
	return unit.FromRuntime(s.Status, s.Health, useHealth)
}

// StateReader looks up a container's state by name.
type StateReader interface {
	State(ctx context.Context, name string) (State, error)
}
