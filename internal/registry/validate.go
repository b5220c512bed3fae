package registry

import (
	"fmt"
	"path"

	dserrors "github.com/systmms/tierup/internal/errors"
	"github.com/systmms/tierup/internal/health"
	"github.com/systmms/tierup/internal/unit"
)

// Validate checks the declared tiers and the assignment table. It returns the
// first problem found as a ConfigError.
func Validate(in Input) error {
	if len(in.Tiers) == 0 {
		return dserrors.ConfigError{
			Field:      "tiers",
			Message:    "at least one tier is required",
			Suggestion: "Declare tiers in order, e.g. foundation, applications, orchestration",
		}
	}

	tierNames := make(map[string]bool)
	unitNames := make(map[string]string)
	defaults := 0

	for i, t := range in.Tiers {
		field := fmt.Sprintf("tiers[%d]", i)
		if t.Name == "" {
			return dserrors.ConfigError{Field: field + ".name", Message: "tier name is required"}
		}
		if tierNames[t.Name] {
			return dserrors.ConfigError{
				Field:      field + ".name",
				Value:      t.Name,
				Message:    "duplicate tier name",
				Suggestion: "Tier names must be unique",
			}
		}
		tierNames[t.Name] = true

		if _, err := ParsePolicy(string(t.Policy)); err != nil {
			return dserrors.ConfigError{
				Field:      field + ".policy",
				Value:      t.Policy,
				Message:    err.Error(),
				Suggestion: "Use fail_fast or best_effort",
			}
		}

		if t.Default {
			defaults++
			if defaults > 1 {
				return dserrors.ConfigError{
					Field:      field + ".default",
					Message:    "more than one default tier",
					Suggestion: "Mark exactly one tier as the catch-all application tier",
				}
			}
		}

		for j, u := range t.Units {
			ufield := fmt.Sprintf("%s.units[%d]", field, j)
			if u.Name == "" {
				return dserrors.ConfigError{Field: ufield + ".name", Message: "unit name is required"}
			}
			if prev, ok := unitNames[u.Name]; ok {
				return dserrors.ConfigError{
					Field:      ufield + ".name",
					Value:      u.Name,
					Message:    fmt.Sprintf("unit already declared in tier %q", prev),
					Suggestion: "Unit names double as container names and must be unique",
				}
			}
			unitNames[u.Name] = t.Name

			if err := ValidateUnit(ufield, u); err != nil {
				return err
			}
		}
	}

	for i, a := range in.Assignments {
		field := fmt.Sprintf("assignments[%d]", i)
		if _, err := path.Match(a.Pattern, ""); err != nil || a.Pattern == "" {
			return dserrors.ConfigError{
				Field:      field + ".pattern",
				Value:      a.Pattern,
				Message:    "invalid glob pattern",
				Suggestion: "Patterns use glob syntax, e.g. \"monitoring/*\"",
			}
		}
		if !tierNames[a.Tier] && !(defaults == 0 && a.Tier == DefaultTierName) {
			return dserrors.ConfigError{
				Field:      field + ".tier",
				Value:      a.Tier,
				Message:    "assignment names an unknown tier",
				Suggestion: "Declare the tier under tiers: or fix the name",
			}
		}
	}

	return nil
}

// ValidateUnit checks that a unit carries everything its health kind needs.
func ValidateUnit(field string, u unit.Unit) error {
	if u.Source.ComposeFile == "" {
		return dserrors.ConfigError{Field: field + ".compose", Message: "compose file is required"}
	}
	if u.Budget.Retries < 0 || u.Budget.Timeout < 0 {
		return dserrors.ConfigError{Field: field, Message: "retries and timeout must not be negative"}
	}

	h := u.Health
	switch h.Kind {
	case "", unit.HealthNone, unit.HealthRuntime:
	case unit.HealthHTTP:
		if h.URL == "" {
			return dserrors.ConfigError{Field: field + ".health.http.url", Message: "url is required"}
		}
		if h.ExpectedStatus != 0 && (h.ExpectedStatus < 100 || h.ExpectedStatus > 599) {
			return dserrors.ConfigError{
				Field:   field + ".health.http.expected_status",
				Value:   h.ExpectedStatus,
				Message: "not an HTTP status code",
			}
		}
	case unit.HealthSQL:
		supported := false
		for _, d := range health.SupportedSQLDrivers {
			if d == h.Driver {
				supported = true
			}
		}
		if !supported {
			return dserrors.ConfigError{
				Field:      field + ".health.sql.driver",
				Value:      h.Driver,
				Message:    "unsupported driver",
				Suggestion: "Use postgres or mysql",
			}
		}
		if h.DSN == "" {
			return dserrors.ConfigError{Field: field + ".health.sql.dsn", Message: "dsn is required"}
		}
	case unit.HealthRedis:
		if h.Addr == "" {
			return dserrors.ConfigError{Field: field + ".health.redis.addr", Message: "addr is required"}
		}
	case unit.HealthCommand:
		if len(h.Command) == 0 {
			return dserrors.ConfigError{Field: field + ".health.command", Message: "command must not be empty"}
		}
	default:
		return dserrors.ConfigError{Field: field + ".health", Value: h.Kind, Message: "unknown health check kind"}
	}
	return nil
}
