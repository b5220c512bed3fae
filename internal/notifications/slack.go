package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SlackConfig holds configuration for Slack webhook notifications.
type SlackConfig struct {
	// WebhookURL is the Slack incoming webhook URL.
	WebhookURL string

	// Channel is the Slack channel to post to (optional, uses webhook default).
	Channel string

	// Events limits which event types are sent. Empty sends all.
	Events []string

	// MentionOnFailure lists Slack handles to mention when a run fails.
	MentionOnFailure []string
}

// SlackProvider posts Block Kit messages to a Slack incoming webhook.
type SlackProvider struct {
	config SlackConfig
	client *http.Client
}

// NewSlackProvider creates a new Slack notification provider.
func NewSlackProvider(config SlackConfig) *SlackProvider {
	return &SlackProvider{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider name.
func (p *SlackProvider) Name() string {
	return "slack"
}

// SupportsEvent returns true if this provider handles the given event type.
func (p *SlackProvider) SupportsEvent(eventType EventType) bool {
	return supportsEvent(p.config.Events, eventType)
}

// Validate checks if the provider configuration is valid.
func (p *SlackProvider) Validate(ctx context.Context) error {
	if p.config.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}

	parsed, err := url.Parse(p.config.WebhookURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid Slack webhook URL")
	}
	return nil
}

// Send posts the event to Slack.
func (p *SlackProvider) Send(ctx context.Context, event Event) error {
	body, err := json.Marshal(p.buildMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack notification: %s",
			strings.ReplaceAll(err.Error(), p.config.WebhookURL, "[slack webhook]"))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *SlackProvider) buildMessage(event Event) map[string]interface{} {
	blocks := make([]map[string]interface{}, 0)

	blocks = append(blocks, map[string]interface{}{
		"type": "header",
		"text": map[string]interface{}{
			"type":  "plain_text",
			"text":  fmt.Sprintf("%s %s", statusEmoji(event.Status), title(event)),
			"emoji": true,
		},
	})

	fields := []map[string]interface{}{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Mode:*\n%s", event.Mode)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Run:*\n`%s`", event.RunID)},
	}
	if event.Duration > 0 {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:*\n%s", event.Duration.Round(time.Second)),
		})
	}
	blocks = append(blocks, map[string]interface{}{"type": "section", "fields": fields})

	if len(event.Tiers) > 0 {
		var lines []string
		for _, t := range event.Tiers {
			line := fmt.Sprintf("*%s* %s: %d healthy", t.Name, t.State, t.Healthy)
			if n := t.Unhealthy + t.Stopped; n > 0 {
				line += fmt.Sprintf(", %d failed", n)
			}
			if t.Skipped > 0 {
				line += fmt.Sprintf(", %d skipped", t.Skipped)
			}
			lines = append(lines, line)
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{"type": "mrkdwn", "text": strings.Join(lines, "\n")},
		})
	}

	if len(event.Failing) > 0 {
		text := fmt.Sprintf(":warning: *Failing units:* %s", strings.Join(event.Failing, ", "))
		if len(p.config.MentionOnFailure) > 0 && event.Status == StatusFailure {
			text += "\n*Attention:* " + strings.Join(p.config.MentionOnFailure, " ")
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{"type": "mrkdwn", "text": text},
		})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "context",
		"elements": []map[string]interface{}{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("<!date^%d^{date_short_pretty} at {time}|%s>",
					event.Timestamp.Unix(), event.Timestamp.UTC().Format(time.RFC3339)),
			},
		},
	})

	message := map[string]interface{}{
		"text":   title(event),
		"blocks": blocks,
	}
	if p.config.Channel != "" {
		message["channel"] = p.config.Channel
	}
	return message
}

func statusEmoji(status Status) string {
	if status == StatusSuccess {
		return ":white_check_mark:"
	}
	return ":x:"
}

func title(event Event) string {
	prefix := "tierup " + event.Mode
	if event.DryRun {
		prefix += " (dry-run)"
	}
	if event.Message != "" {
		return prefix + ": " + event.Message
	}
	if event.Status == StatusSuccess {
		return prefix + " succeeded"
	}
	return prefix + " failed"
}
