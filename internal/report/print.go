package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/systmms/tierup/internal/registry"
	"github.com/systmms/tierup/internal/rollout"
	"github.com/systmms/tierup/internal/unit"
)

// WritePlan prints the tier plan as a table.
func WritePlan(w io.Writer, tiers []registry.Tier) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "TIER\tPOLICY\tUNIT\tSOURCE\tHEALTH\tBUDGET\n")
	_, _ = fmt.Fprintf(tw, "----\t------\t----\t------\t------\t------\n")

	for _, t := range tiers {
		label := fmt.Sprintf("%d. %s", t.Index+1, t.Name)
		if t.Default {
			label += " *"
		}
		if len(t.Units) == 0 {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\n", label, t.Policy)
			continue
		}
		for i, u := range t.Units {
			tierCol, policyCol := label, string(t.Policy)
			if i > 0 {
				tierCol, policyCol = "", ""
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				tierCol, policyCol, u.Name, u.Source, u.Health.Describe(), budget(u.Budget))
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d tier(s), %d unit(s). * marks the default tier for scanned units.\n",
		len(tiers), registry.CountUnits(tiers))
	return err
}

func budget(b unit.Budget) string {
	var parts []string
	if b.Retries > 0 {
		parts = append(parts, fmt.Sprintf("%d polls", b.Retries))
	}
	if b.Timeout > 0 {
		parts = append(parts, b.Timeout.String())
	}
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, ", ")
}

// WriteSummary prints one line per tier followed by the overall result.
func WriteSummary(w io.Writer, run *rollout.Run) error {
	s := Summarize(run)
	title := fmt.Sprintf("\nRollout summary (%s, run %s", s.Mode, s.RunID)
	if s.DryRun {
		title += ", dry-run"
	}
	_, _ = fmt.Fprintf(w, "%s, %s)\n", title, s.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, t := range s.Tiers {
		line := fmt.Sprintf("  %d. %s\t%s\t%d healthy, %d unhealthy, %d stopped, %d skipped",
			i+1, t.Name, t.State, t.Healthy, t.Unhealthy, t.Stopped, t.Skipped)
		if len(t.Failing) > 0 {
			line += "\tfailing: " + strings.Join(t.Failing, ", ")
		}
		_, _ = fmt.Fprintln(tw, line)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	mark := "✓"
	if !s.Success {
		mark = "✗"
	}
	_, err := fmt.Fprintf(w, "\n%s %s %s: %s\n", mark, s.Mode, resultWord(s.Success), s.Message)
	return err
}

func resultWord(ok bool) string {
	if ok {
		return "succeeded"
	}
	return "failed"
}

// WriteUnits prints every unit's final state, as used by the status command.
func WriteUnits(w io.Writer, run *rollout.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "TIER\tUNIT\tSTATE\tPOLLS\tDURATION\tDETAIL\n")
	_, _ = fmt.Fprintf(tw, "----\t----\t-----\t-----\t--------\t------\n")

	for _, t := range run.Tiers {
		for _, o := range t.Units {
			detail := o.Reason
			if detail == "" {
				detail = o.LastProbe.Message
			}
			if detail == "" {
				detail = "-"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s %s\t%d\t%s\t%s\n",
				t.Tier.Name, o.Unit.Name, stateMark(o.State), o.State, o.Polls,
				o.Duration.Round(time.Millisecond), detail)
		}
	}
	return tw.Flush()
}

func stateMark(s rollout.UnitState) string {
	switch s {
	case rollout.StateHealthy, rollout.StateRemoved:
		return "✓"
	case rollout.StateSkipped, rollout.StatePending, rollout.StateStarting:
		return "⚠"
	default:
		return "✗"
	}
}

// PlanJSON is the machine-readable plan.
type PlanJSON struct {
	Tiers []TierJSON `json:"tiers"`
}

// TierJSON is one tier of a plan or run.
type TierJSON struct {
	Index   int        `json:"index"`
	Name    string     `json:"name"`
	Policy  string     `json:"policy"`
	Default bool       `json:"default,omitempty"`
	State   string     `json:"state,omitempty"`
	Units   []UnitJSON `json:"units"`
}

// UnitJSON is one unit of a plan or run.
type UnitJSON struct {
	Name        string      `json:"name"`
	Compose     string      `json:"compose"`
	Profile     string      `json:"profile,omitempty"`
	Health      string      `json:"health"`
	Origin      string      `json:"origin"`
	State       string      `json:"state,omitempty"`
	Status      unit.Status `json:"last_probe,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	Polls       int         `json:"polls,omitempty"`
	DurationSec float64     `json:"duration_seconds,omitempty"`
}

// RunJSON is the machine-readable run outcome.
type RunJSON struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode"`
	DryRun     bool       `json:"dry_run"`
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Tiers      []TierJSON `json:"tiers"`
}

func unitJSON(u unit.Unit) UnitJSON {
	return UnitJSON{
		Name:    u.Name,
		Compose: u.Source.ComposeFile,
		Profile: u.Source.Profile,
		Health:  u.Health.Describe(),
		Origin:  string(u.Origin),
	}
}

// NewPlanJSON converts tiers for JSON output.
func NewPlanJSON(tiers []registry.Tier) PlanJSON {
	out := PlanJSON{Tiers: make([]TierJSON, 0, len(tiers))}
	for _, t := range tiers {
		tj := TierJSON{Index: t.Index, Name: t.Name, Policy: string(t.Policy), Default: t.Default, Units: []UnitJSON{}}
		for _, u := range t.Units {
			tj.Units = append(tj.Units, unitJSON(u))
		}
		out.Tiers = append(out.Tiers, tj)
	}
	return out
}

// NewRunJSON converts a run for JSON output.
func NewRunJSON(run *rollout.Run) RunJSON {
	out := RunJSON{
		ID:         run.ID.String(),
		Mode:       string(run.Mode),
		DryRun:     run.DryRun,
		Success:    run.Succeeded(),
		Message:    message(run),
		StartedAt:  run.StartedAt.UTC(),
		FinishedAt: run.FinishedAt.UTC(),
		Tiers:      make([]TierJSON, 0, len(run.Tiers)),
	}
	for _, t := range run.Tiers {
		tj := TierJSON{
			Index: t.Tier.Index, Name: t.Tier.Name, Policy: string(t.Tier.Policy),
			Default: t.Tier.Default, State: string(t.State), Units: []UnitJSON{},
		}
		for _, o := range t.Units {
			uj := unitJSON(o.Unit)
			uj.State = string(o.State)
			uj.Reason = o.Reason
			uj.Polls = o.Polls
			uj.DurationSec = o.Duration.Seconds()
			if o.Polls > 0 {
				uj.Status = o.LastProbe.Status
			}
			tj.Units = append(tj.Units, uj)
		}
		out.Tiers = append(out.Tiers, tj)
	}
	return out
}

// WriteJSON encodes v with indentation.
func WriteJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
