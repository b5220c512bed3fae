package unit

import (
	"fmt"
	"strings"
)

// Status is the health of a unit as observed by a single probe.
type Status int

const (
	// StatusUnknown means the probe could not tell.
	StatusUnknown Status = iota

	// StatusHealthy means the unit is ready.
	StatusHealthy

	// StatusStarting means the unit is not ready yet and may still become healthy.
	StatusStarting

	// StatusUnhealthy means the runtime declared the unit unhealthy.
	StatusUnhealthy

	// StatusStopped means the unit is not running at all. It is never retried.
	StatusStopped
)

var statusNames = map[Status]string{
	StatusUnknown:   "unknown",
	StatusHealthy:   "healthy",
	StatusStarting:  "starting",
	StatusUnhealthy: "unhealthy",
	StatusStopped:   "stopped",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status by name for JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for status, n := range statusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Terminal reports whether no further polling can change the outcome.
func (s Status) Terminal() bool {
	return s == StatusHealthy || s == StatusUnhealthy || s == StatusStopped
}

// FromRuntime maps a container runtime's native vocabulary onto Status.
//
// state is the container state (running, created, restarting, paused, exited,
// dead, removing, or missing when the container does not exist). health is the
// runtime health status (healthy, unhealthy, starting) or empty when the
// container declares no health check. When useHealth is false the health
// status is ignored and a running container is healthy.
func FromRuntime(state, health string, useHealth bool) Status {
	switch strings.ToLower(state) {
	case "exited", "dead", "missing", "removing", "":
		return StatusStopped
	case "created", "restarting":
		return StatusStarting
	case "paused":
		return StatusUnknown
	case "running":
	default:
		return StatusUnknown
	}

	if !useHealth {
		return StatusHealthy
	}

	switch strings.ToLower(health) {
	case "healthy", "":
		return StatusHealthy
	case "unhealthy":
		return StatusUnhealthy
	case "starting":
		return StatusStarting
	default:
		return StatusUnknown
	}
}
