package rollout

import (
	"time"

	"github.com/google/uuid"

	"github.com/systmms/tierup/internal/health"
	"github.com/systmms/tierup/internal/registry"
	"github.com/systmms/tierup/internal/unit"
)

// Mode selects what a run does to its tiers.
type Mode string

const (
	ModeUp     Mode = "up"
	ModeDown   Mode = "down"
	ModeStatus Mode = "status"
)

// UnitState is a unit's position in the rollout state machine:
// Pending -> Starting -> {Healthy | Unhealthy | Stopped}, plus Skipped and
// Cancelled. Down runs end in Removed or Failed.
type UnitState string

const (
	StatePending   UnitState = "pending"
	StateStarting  UnitState = "starting"
	StateHealthy   UnitState = "healthy"
	StateUnhealthy UnitState = "unhealthy"
	StateStopped   UnitState = "stopped"
	StateSkipped   UnitState = "skipped"
	StateCancelled UnitState = "cancelled"
	StateRemoved   UnitState = "removed"
	StateFailed    UnitState = "failed"
)

// TierState is NotStarted -> InProgress -> {Complete | Failed}.
type TierState string

const (
	TierNotStarted TierState = "not_started"
	TierInProgress TierState = "in_progress"
	TierComplete   TierState = "complete"
	TierFailed     TierState = "failed"
)

// UnitOutcome is the final record for one unit. Exactly one goroutine writes
// to it during a run.
type UnitOutcome struct {
	Unit      unit.Unit
	State     UnitState
	LastProbe health.Result
	Reason    string
	Polls     int
	Duration  time.Duration
}

// OK reports whether the unit ended in a state that does not fail its tier.
func (o UnitOutcome) OK() bool {
	switch o.State {
	case StateHealthy, StateSkipped, StateRemoved:
		return true
	}
	return false
}

// TierOutcome is the record for one tier.
type TierOutcome struct {
	Tier     registry.Tier
	State    TierState
	Units    []UnitOutcome
	Duration time.Duration
}

// Failing returns the names of units that failed the tier.
func (t TierOutcome) Failing() []string {
	var names []string
	for _, u := range t.Units {
		if !u.OK() && u.State != StatePending {
			names = append(names, u.Unit.Name)
		}
	}
	return names
}

// Count returns how many units ended in state.
func (t TierOutcome) Count(state UnitState) int {
	n := 0
	for _, u := range t.Units {
		if u.State == state {
			n++
		}
	}
	return n
}

// Run is one invocation of the engine: its plan and the outcome so far.
type Run struct {
	ID         uuid.UUID
	Mode       Mode
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Tiers      []TierOutcome

	// Aborted is set when a fail_fast tier stopped the run.
	Aborted bool

	// Cancelled is set when the context was cancelled mid-run.
	Cancelled bool
}

// NewRun creates a run with every tier NotStarted and every unit Pending.
func NewRun(mode Mode, tiers []registry.Tier, dryRun bool) *Run {
	r := &Run{
		ID:     uuid.New(),
		Mode:   mode,
		DryRun: dryRun,
		Tiers:  make([]TierOutcome, len(tiers)),
	}
	for i, t := range tiers {
		units := make([]UnitOutcome, len(t.Units))
		for j, u := range t.Units {
			units[j] = UnitOutcome{Unit: u, State: StatePending}
		}
		r.Tiers[i] = TierOutcome{Tier: t, State: TierNotStarted, Units: units}
	}
	return r
}

// Succeeded reports the overall result. An up run fails when a fail_fast tier
// failed; down and status runs fail when any tier failed. Cancelled runs
// always fail.
func (r *Run) Succeeded() bool {
	if r.Cancelled || r.Aborted {
		return false
	}
	for _, t := range r.Tiers {
		if t.State != TierFailed {
			continue
		}
		if r.Mode != ModeUp || t.Tier.Policy == registry.PolicyFailFast {
			return false
		}
	}
	return true
}

// Duration returns the wall-clock time of the run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Result is "success" or "failure", as used in logs and notifications.
func (r *Run) Result() string {
	if r.Succeeded() {
		return "success"
	}
	return "failure"
}
