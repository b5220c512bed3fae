// Package rollout executes tier plans: it starts each tier's units in
// parallel, polls them until healthy or out of budget, and gates progression
// to the next tier on the tier's policy.
package rollout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/systmms/tierup/internal/health"
	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/registry"
	"github.com/systmms/tierup/internal/runner"
	"github.com/systmms/tierup/internal/schedule"
	"github.com/systmms/tierup/internal/unit"
)

// Config holds engine settings.
type Config struct {
	// PollInterval is the delay between probes of one unit.
	PollInterval time.Duration

	// MaxRetries is the default number of probes per unit.
	MaxRetries int

	// Workers bounds how many units of a tier are handled at once.
	Workers int

	// DryRun replaces the runner and prober with log-only stubs.
	DryRun bool

	// ComposeCommand is only used to render dry-run commands.
	ComposeCommand []string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: 3 * time.Second,
		MaxRetries:   60,
		Workers:      4,
	}
}

// TierHook is called after each tier reaches its gate decision.
type TierHook func(ctx context.Context, run *Run, tier TierOutcome)

// Engine runs tier plans.
type Engine struct {
	runner  runner.Runner
	prober  health.Prober
	logger  *logging.Logger
	config  Config
	metrics *health.Metrics
	onTier  TierHook
	onBegin func(run *Run)
	now     func() time.Time
}

// New creates an engine. In dry-run mode r and p are never called.
func New(r runner.Runner, p health.Prober, logger *logging.Logger, config Config) *Engine {
	defaults := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.DryRun {
		r = runner.NewDryRunRunner(config.ComposeCommand, logger)
		p = health.NewDryRunProber(logger)
	}
	return &Engine{
		runner:  r,
		prober:  p,
		logger:  logger,
		config:  config,
		metrics: health.NewMetrics(),
		now:     time.Now,
	}
}

// OnTier registers a hook called after every tier of an up or down run.
func (e *Engine) OnTier(hook TierHook) {
	e.onTier = hook
}

// OnBegin registers a hook called once a run has its ID, before any unit is
// touched.
func (e *Engine) OnBegin(hook func(run *Run)) {
	e.onBegin = hook
}

// Up starts tiers in order, gating each on the previous one.
func (e *Engine) Up(ctx context.Context, tiers []registry.Tier) *Run {
	run := e.begin(ModeUp, tiers)
	defer e.finish(run)

	for i := range run.Tiers {
		if ctx.Err() != nil {
			run.Cancelled = true
			break
		}

		to := &run.Tiers[i]
		e.logger.Info("Executing tier %d/%d: %s (%d units, %s)",
			i+1, len(run.Tiers), to.Tier.Name, len(to.Units), to.Tier.Policy)

		e.eachUnit(ctx, to, e.bringUp)
		e.closeTier(to, func(o UnitOutcome) bool { return o.OK() })
		e.hook(ctx, run, *to)

		if ctx.Err() != nil {
			run.Cancelled = true
			e.logger.Error("Rollout cancelled during tier %s", to.Tier.Name)
			break
		}

		if to.State == TierFailed {
			failing := strings.Join(to.Failing(), ", ")
			if to.Tier.Policy == registry.PolicyFailFast {
				e.logger.Error("Tier %s failed (%s); aborting remaining tiers", to.Tier.Name, failing)
				run.Aborted = true
				break
			}
			e.logger.Warn("Tier %s failed (%s); continuing under best_effort", to.Tier.Name, failing)
			continue
		}
		e.logger.Info("Tier %s complete", to.Tier.Name)
	}

	return run
}

// Down stops tiers in reverse order. Units within a tier stop in parallel and
// there is no health gating.
func (e *Engine) Down(ctx context.Context, tiers []registry.Tier) *Run {
	run := e.begin(ModeDown, tiers)
	defer e.finish(run)

	for i := len(run.Tiers) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			run.Cancelled = true
			break
		}

		to := &run.Tiers[i]
		e.logger.Info("Stopping tier %s (%d units)", to.Tier.Name, len(to.Units))

		e.eachUnit(ctx, to, e.tearDown)
		e.closeTier(to, func(o UnitOutcome) bool { return o.OK() })
		e.hook(ctx, run, *to)

		if to.State == TierFailed {
			e.logger.Error("Tier %s: failed to stop %s", to.Tier.Name, strings.Join(to.Failing(), ", "))
		}
	}

	if ctx.Err() != nil {
		run.Cancelled = true
	}
	return run
}

// Status probes every unit once without starting anything.
func (e *Engine) Status(ctx context.Context, tiers []registry.Tier) *Run {
	run := e.begin(ModeStatus, tiers)
	defer e.finish(run)

	for i := range run.Tiers {
		if ctx.Err() != nil {
			run.Cancelled = true
			break
		}
		to := &run.Tiers[i]
		e.eachUnit(ctx, to, e.snapshot)
		e.closeTier(to, func(o UnitOutcome) bool { return o.State == StateHealthy })
	}
	if ctx.Err() != nil {
		run.Cancelled = true
	}
	return run
}

func (e *Engine) begin(mode Mode, tiers []registry.Tier) *Run {
	run := NewRun(mode, tiers, e.config.DryRun)
	run.StartedAt = e.now()
	if e.onBegin != nil {
		e.onBegin(run)
	}
	e.metrics.RecordRolloutStarted(string(mode))
	e.logger.Debug("run %s: mode=%s tiers=%d units=%d dry_run=%t",
		run.ID, mode, len(tiers), registry.CountUnits(tiers), e.config.DryRun)
	return run
}

func (e *Engine) finish(run *Run) {
	run.FinishedAt = e.now()
	e.metrics.RecordRolloutCompleted(string(run.Mode), run.Result(), run.Duration().Seconds())
}

// eachUnit runs fn for every unit of the tier on a bounded pool. Each call
// owns the outcome slot it is handed.
func (e *Engine) eachUnit(ctx context.Context, to *TierOutcome, fn func(context.Context, *UnitOutcome)) {
	to.State = TierInProgress
	start := e.now()

	var g errgroup.Group
	g.SetLimit(e.config.Workers)
	for j := range to.Units {
		o := &to.Units[j]
		g.Go(func() error {
			began := e.now()
			fn(ctx, o)
			o.Duration = e.now().Sub(began)
			return nil
		})
	}
	_ = g.Wait()

	to.Duration = e.now().Sub(start)
}

func (e *Engine) closeTier(to *TierOutcome, ok func(UnitOutcome) bool) {
	to.State = TierComplete
	for _, o := range to.Units {
		e.metrics.RecordUnitOutcome(to.Tier.Name, string(o.State))
		if !ok(o) {
			to.State = TierFailed
		}
	}
	e.metrics.RecordTier(to.Tier.Name, string(to.State), to.Duration.Seconds())
}

func (e *Engine) hook(ctx context.Context, run *Run, to TierOutcome) {
	if e.onTier != nil {
		e.onTier(ctx, run, to)
	}
}

// bringUp starts one unit and polls it to a final state.
func (e *Engine) bringUp(ctx context.Context, o *UnitOutcome) {
	u := o.Unit
	if ctx.Err() != nil {
		o.State = StateCancelled
		o.Reason = "cancelled before start"
		return
	}

	o.State = StateStarting
	e.logger.Info("Starting %s (%s)", u.Name, u.Source)

	if err := e.runner.Start(ctx, u); err != nil {
		switch {
		case errors.Is(err, runner.ErrSourceMissing):
			o.State = StateSkipped
			o.Reason = err.Error()
			e.logger.Warn("Skipping %s: %v", u.Name, err)
		case ctx.Err() != nil:
			o.State = StateCancelled
			o.Reason = "cancelled during start"
		default:
			o.State = StateUnhealthy
			o.Reason = fmt.Sprintf("start failed: %v", err)
			e.logger.Error("%s failed to start: %v", u.Name, err)
		}
		return
	}

	retries := e.config.MaxRetries
	if u.Budget.Retries > 0 {
		retries = u.Budget.Retries
	}

	pollCtx := ctx
	if u.Budget.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, u.Budget.Timeout)
		defer cancel()
	}

	_, err := schedule.Poll(pollCtx, e.config.PollInterval, retries, func(pctx context.Context, attempt int) bool {
		res := e.prober.Probe(pctx, u)
		o.LastProbe = res
		o.Polls = attempt
		e.logger.Debug("%s poll %d/%d: %s (%s)", u.Name, attempt, retries, res.Status, res.Message)
		return res.Status.Terminal()
	})

	switch {
	case ctx.Err() != nil:
		o.State = StateCancelled
		o.Reason = "cancelled while waiting for health"
		e.logger.Warn("%s: cancelled after %d polls", u.Name, o.Polls)
	case err != nil:
		o.State = StateUnhealthy
		o.Reason = fmt.Sprintf("timed out after %d polls: %s", o.Polls, o.LastProbe.Message)
		e.logger.Error("%s did not become healthy: %s", u.Name, o.Reason)
	default:
		e.settle(o)
	}
}

// settle maps a terminal probe status onto the unit's final state.
func (e *Engine) settle(o *UnitOutcome) {
	name, res := o.Unit.Name, o.LastProbe
	switch res.Status {
	case unit.StatusHealthy:
		o.State = StateHealthy
		e.logger.Info("%s is healthy (%d polls)", name, o.Polls)
	case unit.StatusStopped:
		o.State = StateStopped
		o.Reason = "container not running: " + res.Message
		e.logger.Error("%s stopped: %s", name, res.Message)
	default:
		o.State = StateUnhealthy
		o.Reason = "reported unhealthy: " + res.Message
		e.logger.Error("%s is unhealthy: %s", name, res.Message)
	}
}

func (e *Engine) tearDown(ctx context.Context, o *UnitOutcome) {
	u := o.Unit
	if ctx.Err() != nil {
		o.State = StateCancelled
		o.Reason = "cancelled before stop"
		return
	}

	err := e.runner.Stop(ctx, u)
	switch {
	case err == nil:
		o.State = StateRemoved
		e.logger.Info("Stopped %s", u.Name)
	case errors.Is(err, runner.ErrSourceMissing):
		o.State = StateSkipped
		o.Reason = err.Error()
		e.logger.Warn("Skipping %s: %v", u.Name, err)
	case ctx.Err() != nil:
		o.State = StateCancelled
		o.Reason = "cancelled during stop"
	default:
		o.State = StateFailed
		o.Reason = fmt.Sprintf("stop failed: %v", err)
		e.logger.Error("%s failed to stop: %v", u.Name, err)
	}
}

func (e *Engine) snapshot(ctx context.Context, o *UnitOutcome) {
	if ctx.Err() != nil {
		o.State = StateCancelled
		return
	}

	res := e.prober.Probe(ctx, o.Unit)
	o.LastProbe = res
	o.Polls = 1
	o.Reason = res.Message

	switch res.Status {
	case unit.StatusHealthy:
		o.State = StateHealthy
	case unit.StatusUnhealthy:
		o.State = StateUnhealthy
	case unit.StatusStopped:
		o.State = StateStopped
	default:
		o.State = StateStarting
	}
}
