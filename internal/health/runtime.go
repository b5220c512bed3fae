package health

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/tierup/internal/runtime"
	"github.com/systmms/tierup/internal/unit"
)

// RuntimeProber inspects the unit's container. It serves both HealthRuntime,
// which honours the container's declared health check, and HealthNone, where
// a running container is healthy.
type RuntimeProber struct {
	reader runtime.StateReader
}

// NewRuntimeProber creates a prober backed by reader.
func NewRuntimeProber(reader runtime.StateReader) *RuntimeProber {
	return &RuntimeProber{reader: reader}
}

// Probe reads the container state and maps it onto a Status.
func (p *RuntimeProber) Probe(ctx context.Context, u unit.Unit) Result {
	start := time.Now()

	state, err := p.reader.State(ctx, u.Name)
	if err != nil {
		return Result{
			Status:   unit.StatusUnknown,
			Message:  fmt.Sprintf("inspect failed: %v", err),
			Duration: time.Since(start),
		}
	}

	useHealth := u.Health.Kind == unit.HealthRuntime
	msg := "container " + state.Status
	if useHealth && state.Health != "" {
		msg += " (health: " + state.Health + ")"
	}

	return Result{
		Status:   state.UnitStatus(useHealth),
		Message:  msg,
		Duration: time.Since(start),
	}
}
