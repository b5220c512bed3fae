// Package health probes units and reports their status. Each health kind has
// its own prober; Dispatcher routes a unit to the prober for its kind and
// records probe metrics.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/runtime"
	"github.com/systmms/tierup/internal/unit"
	"github.com/systmms/tierup/pkg/exec"
)

// Result is the outcome of a single probe.
type Result struct {
	Status   unit.Status
	Message  string
	Duration time.Duration
}

// Prober reports a unit's current status. Probers never return errors; a
// failure to observe the unit is expressed through Status and Message.
type Prober interface {
	Probe(ctx context.Context, u unit.Unit) Result
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, u unit.Unit) Result

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, u unit.Unit) Result {
	return f(ctx, u)
}

// DefaultProbeTimeout bounds a single probe when no timeout is configured.
const DefaultProbeTimeout = 5 * time.Second

// Dispatcher routes each unit to the prober registered for its health kind.
type Dispatcher struct {
	probers map[unit.HealthKind]Prober
	timeout time.Duration
	metrics *Metrics
}

// NewDispatcher creates an empty dispatcher. Every probe is bounded by timeout.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Dispatcher{
		probers: make(map[unit.HealthKind]Prober),
		timeout: timeout,
		metrics: NewMetrics(),
	}
}

// Register installs p for kind, replacing any previous prober.
func (d *Dispatcher) Register(kind unit.HealthKind, p Prober) {
	d.probers[kind] = p
}

// Probe runs the prober for u's health kind. A unit without a health kind is
// treated as HealthNone.
func (d *Dispatcher) Probe(ctx context.Context, u unit.Unit) Result {
	kind := u.Health.Kind
	if kind == "" {
		kind = unit.HealthNone
	}

	p, ok := d.probers[kind]
	if !ok {
		return Result{
			Status:  unit.StatusUnknown,
			Message: fmt.Sprintf("no prober registered for health kind %q", kind),
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res := p.Probe(probeCtx, u)
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}

	d.metrics.RecordProbe(u.Name, string(kind), res.Status, res.Duration.Seconds())
	return res
}

// DryRunProber reports every unit healthy without touching it.
type DryRunProber struct {
	logger *logging.Logger
}

// NewDryRunProber creates a prober that only logs.
func NewDryRunProber(logger *logging.Logger) *DryRunProber {
	return &DryRunProber{logger: logger}
}

// Probe logs the probe that would have run and reports Healthy.
func (p *DryRunProber) Probe(ctx context.Context, u unit.Unit) Result {
	p.logger.Info("[dry-run] would probe %s (%s)", u.Name, u.Health.Describe())
	return Result{Status: unit.StatusHealthy, Message: "dry-run"}
}

// NewStandardDispatcher wires every built-in prober. reader serves the runtime
// and none kinds; executor runs command checks.
func NewStandardDispatcher(reader runtime.StateReader, executor exec.CommandExecutor, timeout time.Duration) *Dispatcher {
	d := NewDispatcher(timeout)
	rp := NewRuntimeProber(reader)
	d.Register(unit.HealthNone, rp)
	d.Register(unit.HealthRuntime, rp)
	d.Register(unit.HealthHTTP, NewHTTPProber(d.timeout))
	d.Register(unit.HealthSQL, NewSQLProber())
	d.Register(unit.HealthRedis, NewRedisProber(d.timeout))
	d.Register(unit.HealthCommand, NewCommandProber(executor))
	return d
}
