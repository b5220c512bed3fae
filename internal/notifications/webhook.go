package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"

	dserrors "github.com/systmms/tierup/internal/errors"
)

// RetryConfig holds retry configuration for webhooks.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (default: 3).
	MaxAttempts int

	// Backoff strategy: linear, exponential or fixed (default: exponential).
	Backoff string

	// InitialWait is the initial wait time between retries.
	InitialWait time.Duration
}

// WebhookConfig holds configuration for webhook notifications.
type WebhookConfig struct {
	// URL is the webhook endpoint URL.
	URL string

	// Method is the HTTP method to use (default: POST).
	Method string

	// Headers are additional HTTP headers to include.
	Headers map[string]string

	// Events limits which event types are sent. Empty sends all.
	Events []string

	// PayloadTemplate is a Go template for the request body.
	// If empty, a default JSON payload is used.
	PayloadTemplate string

	Retry   *RetryConfig
	Timeout time.Duration
}

// WebhookProvider posts events to an HTTP endpoint.
type WebhookProvider struct {
	config      WebhookConfig
	client      *http.Client
	template    *template.Template
	templateErr error
}

// NewWebhookProvider creates a new webhook notification provider.
func NewWebhookProvider(config WebhookConfig) *WebhookProvider {
	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	retry := RetryConfig{}
	if config.Retry != nil {
		retry = *config.Retry
	}
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 3
	}
	if retry.Backoff == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialWait == 0 {
		retry.InitialWait = 1 * time.Second
	}
	config.Retry = &retry

	p := &WebhookProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
	if config.PayloadTemplate != "" {
		p.template, p.templateErr = template.New("payload").Parse(config.PayloadTemplate)
	}
	return p
}

// Name returns the provider name.
func (p *WebhookProvider) Name() string {
	return "webhook"
}

// SupportsEvent returns true if this provider handles the given event type.
func (p *WebhookProvider) SupportsEvent(eventType EventType) bool {
	return supportsEvent(p.config.Events, eventType)
}

// Validate checks if the provider configuration is valid.
func (p *WebhookProvider) Validate(ctx context.Context) error {
	if p.config.URL == "" {
		return fmt.Errorf("URL is required")
	}

	parsed, err := url.Parse(p.config.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid webhook URL")
	}

	switch strings.ToUpper(p.config.Method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return fmt.Errorf("invalid method: %s (must be POST, PUT, or PATCH)", p.config.Method)
	}

	switch strings.ToLower(p.config.Retry.Backoff) {
	case "linear", "exponential", "fixed":
	default:
		return fmt.Errorf("invalid backoff strategy: %s (must be linear, exponential, or fixed)", p.config.Retry.Backoff)
	}

	if p.templateErr != nil {
		return fmt.Errorf("invalid payload template: %w", p.templateErr)
	}
	return nil
}

// Send delivers the event, retrying transient failures with backoff.
func (p *WebhookProvider) Send(ctx context.Context, event Event) error {
	payload, err := p.Payload(event)
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}

	var lastErr error
	attempts := p.config.Retry.MaxAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		err := p.doSend(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if !dserrors.IsRetryable(err) {
			return fmt.Errorf("webhook failed: %w", err)
		}

		// Don't sleep after the last attempt
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.calculateBackoff(attempt)):
			}
		}
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", attempts, lastErr)
}

func (p *WebhookProvider) doSend(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(p.config.Method), p.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range p.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// The error text embeds the URL, which usually carries a token.
		return fmt.Errorf("request failed: %s", strings.ReplaceAll(err.Error(), p.config.URL, "[webhook]"))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Payload renders the request body for event.
func (p *WebhookProvider) Payload(event Event) ([]byte, error) {
	if p.template != nil {
		var buf bytes.Buffer
		if err := p.template.Execute(&buf, newTemplateData(event)); err == nil {
			return buf.Bytes(), nil
		}
		// Fall back to the default payload on template error
	}
	return defaultPayload(event)
}

// templateData provides template-friendly access to event data.
type templateData struct {
	Type      string
	RunID     string
	Mode      string
	DryRun    bool
	Status    string
	Message   string
	Failing   string
	Tiers     []TierSummary
	Duration  string
	Timestamp string
}

func newTemplateData(event Event) templateData {
	return templateData{
		Type:      string(event.Type),
		RunID:     event.RunID,
		Mode:      event.Mode,
		DryRun:    event.DryRun,
		Status:    string(event.Status),
		Message:   event.Message,
		Failing:   strings.Join(event.Failing, ", "),
		Tiers:     event.Tiers,
		Duration:  event.Duration.Round(time.Second).String(),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}
}

func defaultPayload(event Event) ([]byte, error) {
	payload := map[string]interface{}{
		"event":     string(event.Type),
		"run_id":    event.RunID,
		"mode":      event.Mode,
		"status":    string(event.Status),
		"message":   event.Message,
		"tiers":     event.Tiers,
		"timestamp": event.Timestamp.UTC().Format(time.RFC3339),
	}
	if event.DryRun {
		payload["dry_run"] = true
	}
	if event.Duration > 0 {
		payload["duration_seconds"] = event.Duration.Seconds()
	}
	if len(event.Failing) > 0 {
		payload["failing"] = event.Failing
	}
	return json.Marshal(payload)
}

// calculateBackoff calculates the sleep duration for the given attempt.
func (p *WebhookProvider) calculateBackoff(attempt int) time.Duration {
	initial := p.config.Retry.InitialWait

	switch strings.ToLower(p.config.Retry.Backoff) {
	case "linear":
		return initial * time.Duration(attempt)
	case "exponential":
		return initial * time.Duration(1<<(attempt-1))
	default:
		return initial
	}
}
