package report

import (
	"context"
	"io"
	"time"

	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/notifications"
	"github.com/systmms/tierup/internal/rollout"
)

// Notifier delivers an event to its providers and returns how many accepted it.
type Notifier interface {
	Notify(ctx context.Context, event notifications.Event) int
}

// Reporter prints run outcomes and sends exactly one run notification each.
type Reporter struct {
	out      io.Writer
	logger   *logging.Logger
	notifier Notifier
	perTier  bool
	now      func() time.Time
}

// NewReporter creates a reporter. notifier may be nil.
func NewReporter(out io.Writer, logger *logging.Logger, notifier Notifier) *Reporter {
	return &Reporter{out: out, logger: logger, notifier: notifier, now: time.Now}
}

// NotifyPerTier enables a tier_completed event after every tier.
func (r *Reporter) NotifyPerTier(enabled bool) {
	r.perTier = enabled
}

// Report prints the summary of run and notifies once. Printing errors are
// returned; notification errors never are.
func (r *Reporter) Report(ctx context.Context, run *rollout.Run) error {
	err := WriteSummary(r.out, run)

	s := Summarize(run)
	if s.Success {
		r.logger.Info("Rollout %s %s: %s", s.RunID, run.Result(), s.Message)
	} else {
		r.logger.Error("Rollout %s %s: %s", s.RunID, run.Result(), s.Message)
	}

	r.notify(ctx, run, s.Event(r.now()))
	return err
}

// TierHook returns a rollout hook sending per-tier events when enabled.
func (r *Reporter) TierHook() rollout.TierHook {
	return func(ctx context.Context, run *rollout.Run, tier rollout.TierOutcome) {
		if !r.perTier {
			return
		}
		r.notify(ctx, run, TierEvent(run, tier, r.now()))
	}
}

func (r *Reporter) notify(ctx context.Context, run *rollout.Run, event notifications.Event) {
	if r.notifier == nil {
		return
	}
	if run.DryRun {
		r.logger.Info("[dry-run] would send %s notification (%s)", event.Type, event.Status)
		return
	}
	// Cancelled runs still report; the parent context is already done.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
	}
	n := r.notifier.Notify(ctx, event)
	r.logger.Debug("%s notification delivered to %d provider(s)", event.Type, n)
}
