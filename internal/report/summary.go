// Package report renders rollout plans and outcomes for people and machines,
// and hands run summaries to the notifier.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/systmms/tierup/internal/notifications"
	"github.com/systmms/tierup/internal/rollout"
)

// Summary condenses a run into per-tier counts.
type Summary struct {
	RunID    string
	Mode     string
	DryRun   bool
	Success  bool
	Tiers    []notifications.TierSummary
	Failing  []string
	Message  string
	Duration time.Duration
}

// Summarize builds the summary of run.
func Summarize(run *rollout.Run) Summary {
	s := Summary{
		RunID:    run.ID.String(),
		Mode:     string(run.Mode),
		DryRun:   run.DryRun,
		Success:  run.Succeeded(),
		Duration: run.Duration(),
	}
	for _, t := range run.Tiers {
		ts := SummarizeTier(t)
		s.Tiers = append(s.Tiers, ts)
		s.Failing = append(s.Failing, ts.Failing...)
	}
	s.Message = message(run)
	return s
}

// SummarizeTier counts one tier's unit states.
func SummarizeTier(t rollout.TierOutcome) notifications.TierSummary {
	return notifications.TierSummary{
		Name:      t.Tier.Name,
		Policy:    string(t.Tier.Policy),
		State:     string(t.State),
		Healthy:   t.Count(rollout.StateHealthy) + t.Count(rollout.StateRemoved),
		Unhealthy: t.Count(rollout.StateUnhealthy) + t.Count(rollout.StateFailed) + t.Count(rollout.StateStarting),
		Stopped:   t.Count(rollout.StateStopped),
		Skipped:   t.Count(rollout.StateSkipped),
		Failing:   t.Failing(),
	}
}

func message(run *rollout.Run) string {
	notStarted := 0
	var failed []string
	for _, t := range run.Tiers {
		switch t.State {
		case rollout.TierNotStarted:
			notStarted++
		case rollout.TierFailed:
			failed = append(failed, t.Tier.Name)
		}
	}

	switch {
	case run.Cancelled:
		return fmt.Sprintf("cancelled; %d tier(s) not started", notStarted)
	case run.Aborted && len(failed) > 0:
		return fmt.Sprintf("tier %s failed; %d tier(s) not started", failed[len(failed)-1], notStarted)
	case len(failed) > 0:
		return fmt.Sprintf("%d of %d tier(s) failed: %s", len(failed), len(run.Tiers), strings.Join(failed, ", "))
	default:
		return fmt.Sprintf("all %d tier(s) complete", len(run.Tiers))
	}
}

// Event converts the summary to a run notification.
func (s Summary) Event(now time.Time) notifications.Event {
	status := notifications.StatusFailure
	if s.Success {
		status = notifications.StatusSuccess
	}
	return notifications.Event{
		Type:      notifications.EventRunCompleted,
		RunID:     s.RunID,
		Mode:      s.Mode,
		DryRun:    s.DryRun,
		Status:    status,
		Tiers:     s.Tiers,
		Failing:   s.Failing,
		Message:   s.Message,
		Duration:  s.Duration,
		Timestamp: now,
	}
}

// TierEvent builds the per-tier notification for t.
func TierEvent(run *rollout.Run, t rollout.TierOutcome, now time.Time) notifications.Event {
	ts := SummarizeTier(t)
	status := notifications.StatusSuccess
	if t.State == rollout.TierFailed {
		status = notifications.StatusFailure
	}
	return notifications.Event{
		Type:      notifications.EventTierCompleted,
		RunID:     run.ID.String(),
		Mode:      string(run.Mode),
		DryRun:    run.DryRun,
		Status:    status,
		Tiers:     []notifications.TierSummary{ts},
		Failing:   ts.Failing,
		Message:   fmt.Sprintf("tier %s %s", t.Tier.Name, t.State),
		Duration:  t.Duration,
		Timestamp: now,
	}
}
