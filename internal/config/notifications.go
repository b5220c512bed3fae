package config

import (
	"context"
	"fmt"

	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/notifications"
)

// NotificationConfig holds configuration for run notifications.
type NotificationConfig struct {
	// PerTier also sends a tier_completed event after every tier.
	PerTier bool `yaml:"per_tier,omitempty"`

	// Webhook configuration for a generic HTTP webhook.
	Webhook *WebhookNotificationConfig `yaml:"webhook,omitempty"`

	// Slack configuration for Slack incoming webhooks.
	Slack *SlackNotificationConfig `yaml:"slack,omitempty"`

	// Email configuration for SMTP delivery.
	Email *EmailNotificationConfig `yaml:"email,omitempty"`

	// PagerDuty configuration for Events API v2 incidents.
	PagerDuty *PagerDutyNotificationConfig `yaml:"pagerduty,omitempty"`
}

// WebhookNotificationConfig holds generic webhook configuration.
type WebhookNotificationConfig struct {
	// URL is the webhook endpoint. It is never logged.
	URL string `yaml:"url"`

	// Method is the HTTP method to use (default: POST).
	Method string `yaml:"method,omitempty"`

	Headers map[string]string `yaml:"headers,omitempty"`

	// Events specifies which events trigger notifications.
	// Valid values: run_completed, tier_completed. If empty, all events are sent.
	Events []string `yaml:"events,omitempty"`

	// PayloadTemplate is a Go text/template rendered with the event.
	PayloadTemplate string `yaml:"payload_template,omitempty"`

	Timeout string              `yaml:"timeout,omitempty"`
	Retry   *WebhookRetryConfig `yaml:"retry,omitempty"`
}

// WebhookRetryConfig configures webhook retries.
type WebhookRetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
	Backoff     string `yaml:"backoff,omitempty"`
	InitialWait string `yaml:"initial_wait,omitempty"`
}

// SlackNotificationConfig holds Slack webhook configuration.
type SlackNotificationConfig struct {
	// WebhookURL is the Slack incoming webhook URL.
	WebhookURL string `yaml:"webhook_url"`

	// Channel is the Slack channel to post to (optional, uses webhook default).
	Channel string `yaml:"channel,omitempty"`

	Events []string `yaml:"events,omitempty"`

	// MentionOnFailure lists handles to mention when a run fails.
	// Examples: ["@oncall", "@platform-team"]
	MentionOnFailure []string `yaml:"mention_on_failure,omitempty"`
}

// EmailNotificationConfig holds email notification configuration.
type EmailNotificationConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`

	// From is the sender email address.
	From string `yaml:"from"`

	// To is the list of recipient email addresses.
	To []string `yaml:"to"`

	Events []string `yaml:"events,omitempty"`
}

// SMTPConfig holds SMTP server configuration. The password may instead come
// from TIERUP_SMTP_PASSWORD.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// PagerDutyNotificationConfig holds PagerDuty configuration. The integration
// key may instead come from TIERUP_PAGERDUTY_KEY.
type PagerDutyNotificationConfig struct {
	IntegrationKey string `yaml:"integration_key,omitempty"`

	// Severity is the incident severity: critical, error, warning, info.
	Severity string `yaml:"severity,omitempty"`

	Events []string `yaml:"events,omitempty"`

	// AutoResolve resolves the incident when a later run succeeds.
	AutoResolve bool `yaml:"auto_resolve,omitempty"`
}

func (w *WebhookNotificationConfig) toProvider() (*notifications.WebhookConfig, error) {
	timeout, err := parseDuration("notifications.webhook.timeout", w.Timeout)
	if err != nil {
		return nil, err
	}
	cfg := &notifications.WebhookConfig{
		URL:             w.URL,
		Method:          w.Method,
		Headers:         w.Headers,
		Events:          w.Events,
		PayloadTemplate: w.PayloadTemplate,
		Timeout:         timeout,
	}
	if w.Retry != nil {
		wait, err := parseDuration("notifications.webhook.retry.initial_wait", w.Retry.InitialWait)
		if err != nil {
			return nil, err
		}
		cfg.Retry = &notifications.RetryConfig{
			MaxAttempts: w.Retry.MaxAttempts,
			Backoff:     w.Retry.Backoff,
			InitialWait: wait,
		}
	}
	return cfg, nil
}

func (s *SlackNotificationConfig) toProvider() *notifications.SlackConfig {
	return &notifications.SlackConfig{
		WebhookURL:       s.WebhookURL,
		Channel:          s.Channel,
		Events:           s.Events,
		MentionOnFailure: s.MentionOnFailure,
	}
}

func (e *EmailNotificationConfig) toProvider() *notifications.EmailConfig {
	return &notifications.EmailConfig{
		SMTP: notifications.SMTPConfig{
			Host:     e.SMTP.Host,
			Port:     e.SMTP.Port,
			Username: e.SMTP.Username,
			Password: e.SMTP.Password,
		},
		From:   e.From,
		To:     e.To,
		Events: e.Events,
	}
}

func (p *PagerDutyNotificationConfig) toProvider() *notifications.PagerDutyConfig {
	return &notifications.PagerDutyConfig{
		IntegrationKey: p.IntegrationKey,
		Severity:       p.Severity,
		Events:         p.Events,
		AutoResolve:    p.AutoResolve,
	}
}

// NewNotifier builds the notification manager for the resolved settings.
// With no provider configured the manager has nothing to send to.
func (s *Settings) NewNotifier(ctx context.Context, logger *logging.Logger, dryRun bool) (*notifications.Manager, error) {
	manager := notifications.NewManager(logger, dryRun)

	if s.Webhook != nil {
		provider := notifications.NewWebhookProvider(*s.Webhook)
		if err := provider.Validate(ctx); err != nil {
			return nil, fmt.Errorf("webhook notifications: %w", err)
		}
		manager.RegisterProvider(provider)
	}

	if s.Slack != nil {
		provider := notifications.NewSlackProvider(*s.Slack)
		if err := provider.Validate(ctx); err != nil {
			return nil, fmt.Errorf("slack notifications: %w", err)
		}
		manager.RegisterProvider(provider)
	}

	if s.Email != nil {
		provider := notifications.NewEmailProvider(*s.Email)
		if err := provider.Validate(ctx); err != nil {
			return nil, fmt.Errorf("email notifications: %w", err)
		}
		manager.RegisterProvider(provider)
	}

	if s.PagerDuty != nil {
		provider := notifications.NewPagerDutyProvider(*s.PagerDuty)
		if err := provider.Validate(ctx); err != nil {
			return nil, fmt.Errorf("pagerduty notifications: %w", err)
		}
		manager.RegisterProvider(provider)
	}

	return manager, nil
}
