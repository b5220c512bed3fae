package config

import (
	"os"
	"strconv"
	"time"

	dserrors "github.com/systmms/tierup/internal/errors"
	"github.com/systmms/tierup/internal/health"
	"github.com/systmms/tierup/internal/notifications"
	"github.com/systmms/tierup/internal/rollout"
	"github.com/systmms/tierup/internal/runner"
)

// Environment variables that override the file.
const (
	EnvPollInterval   = "TIERUP_POLL_INTERVAL"
	EnvMaxRetries     = "TIERUP_MAX_RETRIES"
	EnvProbeTimeout   = "TIERUP_PROBE_TIMEOUT"
	EnvWorkers        = "TIERUP_WORKERS"
	EnvWebhookURL     = "TIERUP_WEBHOOK_URL"
	EnvSlackURL       = "TIERUP_SLACK_WEBHOOK_URL"
	EnvLogDir         = "TIERUP_LOG_DIR"
	EnvPushgatewayURL = "TIERUP_PUSHGATEWAY_URL"
	EnvSMTPPassword   = "TIERUP_SMTP_PASSWORD"
	EnvPagerDutyKey   = "TIERUP_PAGERDUTY_KEY"
)

// Settings is every tunable resolved once: defaults, then the file, then the
// environment.
type Settings struct {
	ComposeCommand []string
	PollInterval   time.Duration
	MaxRetries     int
	ProbeTimeout   time.Duration
	Workers        int
	LogDir         string

	Webhook   *notifications.WebhookConfig
	Slack     *notifications.SlackConfig
	Email     *notifications.EmailConfig
	PagerDuty *notifications.PagerDutyConfig
	PerTier   bool

	MetricsListen string
	Pushgateway   string
	MetricsJob    string
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	engine := rollout.DefaultConfig()
	return Settings{
		ComposeCommand: append([]string(nil), runner.DefaultComposeCommand...),
		PollInterval:   engine.PollInterval,
		MaxRetries:     engine.MaxRetries,
		ProbeTimeout:   health.DefaultProbeTimeout,
		Workers:        engine.Workers,
		LogDir:         "logs",
		MetricsJob:     "tierup",
	}
}

// EngineConfig returns the rollout engine settings.
func (s Settings) EngineConfig(dryRun bool) rollout.Config {
	return rollout.Config{
		PollInterval:   s.PollInterval,
		MaxRetries:     s.MaxRetries,
		Workers:        s.Workers,
		DryRun:         dryRun,
		ComposeCommand: s.ComposeCommand,
	}
}

// Settings resolves the loaded file against the process environment.
func (c *Config) Settings() (*Settings, error) {
	return c.Resolve(os.Getenv)
}

// Resolve merges defaults, the file and getenv, in increasing precedence.
func (c *Config) Resolve(getenv func(string) string) (*Settings, error) {
	if err := c.loaded(); err != nil {
		return nil, err
	}
	def := c.Definition
	s := DefaultSettings()

	if len(def.ComposeCommand) > 0 {
		s.ComposeCommand = def.ComposeCommand
	}
	if def.LogDir != "" {
		s.LogDir = def.LogDir
	}
	s.LogDir = c.resolvePath(s.LogDir)

	var err error
	if s.PollInterval, err = durationOr("defaults.poll_interval", def.Defaults.PollInterval, s.PollInterval); err != nil {
		return nil, err
	}
	if s.ProbeTimeout, err = durationOr("defaults.probe_timeout", def.Defaults.ProbeTimeout, s.ProbeTimeout); err != nil {
		return nil, err
	}
	if def.Defaults.MaxRetries > 0 {
		s.MaxRetries = def.Defaults.MaxRetries
	}
	if def.Defaults.Workers > 0 {
		s.Workers = def.Defaults.Workers
	}

	n := def.Notifications
	s.PerTier = n.PerTier
	if n.Webhook != nil {
		if s.Webhook, err = n.Webhook.toProvider(); err != nil {
			return nil, err
		}
	}
	if n.Slack != nil {
		s.Slack = n.Slack.toProvider()
	}
	if n.Email != nil {
		s.Email = n.Email.toProvider()
	}
	if n.PagerDuty != nil {
		s.PagerDuty = n.PagerDuty.toProvider()
	}

	s.MetricsListen = def.Metrics.Listen
	s.Pushgateway = def.Metrics.Pushgateway
	if def.Metrics.Job != "" {
		s.MetricsJob = def.Metrics.Job
	}

	if err := s.applyEnv(getenv); err != nil {
		return nil, err
	}
	if c.LogDir != "" {
		s.LogDir = c.LogDir
	}
	return &s, nil
}

func (s *Settings) applyEnv(getenv func(string) string) error {
	var err error
	if v := getenv(EnvPollInterval); v != "" {
		if s.PollInterval, err = parseDuration(EnvPollInterval, v); err != nil {
			return err
		}
	}
	if v := getenv(EnvProbeTimeout); v != "" {
		if s.ProbeTimeout, err = parseDuration(EnvProbeTimeout, v); err != nil {
			return err
		}
	}
	if v := getenv(EnvMaxRetries); v != "" {
		if s.MaxRetries, err = parsePositive(EnvMaxRetries, v); err != nil {
			return err
		}
	}
	if v := getenv(EnvWorkers); v != "" {
		if s.Workers, err = parsePositive(EnvWorkers, v); err != nil {
			return err
		}
	}
	if v := getenv(EnvWebhookURL); v != "" {
		if s.Webhook == nil {
			s.Webhook = &notifications.WebhookConfig{}
		}
		s.Webhook.URL = v
	}
	if v := getenv(EnvSlackURL); v != "" {
		if s.Slack == nil {
			s.Slack = &notifications.SlackConfig{}
		}
		s.Slack.WebhookURL = v
	}
	if v := getenv(EnvSMTPPassword); v != "" && s.Email != nil {
		s.Email.SMTP.Password = v
	}
	if v := getenv(EnvPagerDutyKey); v != "" {
		if s.PagerDuty == nil {
			s.PagerDuty = &notifications.PagerDutyConfig{}
		}
		s.PagerDuty.IntegrationKey = v
	}
	if v := getenv(EnvLogDir); v != "" {
		s.LogDir = v
	}
	if v := getenv(EnvPushgatewayURL); v != "" {
		s.Pushgateway = v
	}
	return nil
}

func durationOr(field, raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return parseDuration(field, raw)
}

// parseDuration accepts Go duration syntax; the empty string is zero.
func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, dserrors.ConfigError{
			Field:      field,
			Value:      raw,
			Message:    "must be a positive duration",
			Suggestion: "Use Go duration syntax such as 500ms, 3s or 2m",
		}
	}
	return d, nil
}

func parsePositive(field, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, dserrors.ConfigError{
			Field:   field,
			Value:   raw,
			Message: "must be a positive integer",
		}
	}
	return n, nil
}
