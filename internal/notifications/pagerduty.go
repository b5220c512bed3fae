package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PagerDuty Events API v2 endpoint
const pagerDutyAPIURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutySeverity represents PagerDuty incident severity levels.
type PagerDutySeverity string

const (
	SeverityCritical PagerDutySeverity = "critical"
	SeverityError    PagerDutySeverity = "error"
	SeverityWarning  PagerDutySeverity = "warning"
	SeverityInfo     PagerDutySeverity = "info"
)

// PagerDutyConfig holds configuration for PagerDuty notifications.
type PagerDutyConfig struct {
	// IntegrationKey is the PagerDuty Events API v2 integration key.
	IntegrationKey string

	// Severity is the incident severity: critical, error, warning, info.
	// Defaults to "error" if empty.
	Severity string

	// Events limits which event types are sent. Empty sends all.
	Events []string

	// AutoResolve resolves the open incident when a later run of the same
	// mode succeeds.
	AutoResolve bool
}

// PagerDutyProvider triggers an incident when a run fails. Successful runs
// send nothing unless AutoResolve is set.
type PagerDutyProvider struct {
	config PagerDutyConfig
	client *http.Client
	apiURL string
}

// NewPagerDutyProvider creates a new PagerDuty notification provider.
func NewPagerDutyProvider(config PagerDutyConfig) *PagerDutyProvider {
	return &PagerDutyProvider{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiURL: pagerDutyAPIURL,
	}
}

// Name returns the provider name.
func (p *PagerDutyProvider) Name() string {
	return "pagerduty"
}

// SupportsEvent returns true if this provider handles the given event type.
func (p *PagerDutyProvider) SupportsEvent(eventType EventType) bool {
	return supportsEvent(p.config.Events, eventType)
}

// Validate checks if the provider configuration is valid.
func (p *PagerDutyProvider) Validate(ctx context.Context) error {
	if p.config.IntegrationKey == "" {
		return fmt.Errorf("integration key is required")
	}

	if p.config.Severity != "" {
		switch PagerDutySeverity(strings.ToLower(p.config.Severity)) {
		case SeverityCritical, SeverityError, SeverityWarning, SeverityInfo:
		default:
			return fmt.Errorf("invalid severity: %s (must be critical, error, warning, or info)", p.config.Severity)
		}
	}
	return nil
}

// Send triggers or resolves the incident for the event's mode.
func (p *PagerDutyProvider) Send(ctx context.Context, event Event) error {
	action := "trigger"
	if event.Status == StatusSuccess {
		if !p.config.AutoResolve {
			return nil
		}
		action = "resolve"
	}

	body, err := json.Marshal(p.buildPayload(event, action))
	if err != nil {
		return fmt.Errorf("failed to marshal PagerDuty payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send PagerDuty notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("PagerDuty returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *PagerDutyProvider) buildPayload(event Event, action string) map[string]interface{} {
	payload := map[string]interface{}{
		"routing_key":  p.config.IntegrationKey,
		"event_action": action,
		"dedup_key":    dedupKey(event),
	}
	if action == "resolve" {
		return payload
	}

	details := map[string]interface{}{
		"run_id":  event.RunID,
		"mode":    event.Mode,
		"status":  string(event.Status),
		"message": event.Message,
		"tiers":   event.Tiers,
	}
	if len(event.Failing) > 0 {
		details["failing"] = event.Failing
	}
	if event.Duration > 0 {
		details["duration"] = event.Duration.Round(time.Second).String()
	}

	summary := title(event)
	if len(event.Failing) > 0 {
		summary += " (failing: " + strings.Join(event.Failing, ", ") + ")"
	}
	// PagerDuty rejects summaries over 1024 characters.
	if len(summary) > 1024 {
		summary = summary[:1021] + "..."
	}

	body := map[string]interface{}{
		"summary":        summary,
		"severity":       p.severity(),
		"source":         "tierup",
		"component":      event.Mode,
		"custom_details": details,
	}
	if !event.Timestamp.IsZero() {
		body["timestamp"] = event.Timestamp.UTC().Format(time.RFC3339)
	}
	payload["payload"] = body
	return payload
}

// dedupKey groups every run of a mode into one incident, so a later success
// resolves an earlier failure. Tier events get one incident per tier.
func dedupKey(event Event) string {
	parts := []string{"tierup", event.Mode}
	if event.Type == EventTierCompleted && len(event.Tiers) == 1 {
		parts = append(parts, event.Tiers[0].Name)
	}
	return strings.Join(parts, "-")
}

func (p *PagerDutyProvider) severity() string {
	if p.config.Severity == "" {
		return string(SeverityError)
	}
	return strings.ToLower(p.config.Severity)
}
