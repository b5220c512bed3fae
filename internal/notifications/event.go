// Package notifications delivers rollout summaries to webhooks, Slack, email
// and PagerDuty. Delivery is best-effort: failures are logged and never
// change a run's result.
package notifications

import (
	"time"
)

// EventType identifies what a notification is about.
type EventType string

const (
	// EventRunCompleted is sent once at the end of a run.
	EventRunCompleted EventType = "run_completed"

	// EventTierCompleted is sent after each tier when per-tier
	// notifications are enabled.
	EventTierCompleted EventType = "tier_completed"
)

// Status is the overall outcome carried by an event.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// TierSummary is the per-tier part of an event.
type TierSummary struct {
	Name      string   `json:"name"`
	Policy    string   `json:"policy"`
	State     string   `json:"state"`
	Healthy   int      `json:"healthy"`
	Unhealthy int      `json:"unhealthy"`
	Stopped   int      `json:"stopped"`
	Skipped   int      `json:"skipped"`
	Failing   []string `json:"failing,omitempty"`
}

// Event is a rollout notification.
type Event struct {
	Type      EventType
	RunID     string
	Mode      string
	DryRun    bool
	Status    Status
	Tiers     []TierSummary
	Failing   []string
	Message   string
	Duration  time.Duration
	Timestamp time.Time
}
