package config

import (
	"fmt"

	dserrors "github.com/systmms/tierup/internal/errors"
	"github.com/systmms/tierup/internal/registry"
	"github.com/systmms/tierup/internal/unit"
)

// RegistryInput converts the tier table, assignments and scan roots for
// registry.Build. Relative paths are resolved against the file's directory.
func (c *Config) RegistryInput() (registry.Input, error) {
	if err := c.loaded(); err != nil {
		return registry.Input{}, err
	}
	def := c.Definition

	in := registry.Input{}
	for i, t := range def.Tiers {
		policy, err := registry.ParsePolicy(t.Policy)
		if err != nil {
			return registry.Input{}, dserrors.ConfigError{
				Field:   fmt.Sprintf("tiers[%d].policy", i),
				Value:   t.Policy,
				Message: err.Error(),
			}
		}

		spec := registry.TierSpec{Name: t.Name, Policy: policy, Default: t.Default}
		for j, uc := range t.Units {
			u, err := c.unit(fmt.Sprintf("tiers[%d].units[%d]", i, j), uc)
			if err != nil {
				return registry.Input{}, err
			}
			spec.Units = append(spec.Units, u)
		}
		in.Tiers = append(in.Tiers, spec)
	}

	for _, a := range def.Assignments {
		in.Assignments = append(in.Assignments, registry.Assignment{Pattern: a.Pattern, Tier: a.Tier})
	}
	for _, root := range def.ScanRoots {
		in.ScanRoots = append(in.ScanRoots, c.resolvePath(root))
	}
	return in, nil
}

func (c *Config) unit(field string, uc UnitConfig) (unit.Unit, error) {
	timeout, err := parseDuration(field+".timeout", uc.Timeout)
	if err != nil {
		return unit.Unit{}, err
	}
	check, err := healthCheck(field+".health", uc.Health)
	if err != nil {
		return unit.Unit{}, err
	}
	return unit.Unit{
		Name:   uc.Name,
		Source: unit.Source{ComposeFile: c.resolvePath(uc.Compose), Profile: uc.Profile},
		Health: check,
		Budget: unit.Budget{Retries: uc.Retries, Timeout: timeout},
		Origin: unit.OriginExplicit,
	}, nil
}

func healthCheck(field string, h *HealthConfig) (unit.HealthCheck, error) {
	if h == nil {
		return unit.HealthCheck{Kind: unit.HealthNone}, nil
	}

	var checks []unit.HealthCheck
	if h.Runtime {
		checks = append(checks, unit.HealthCheck{Kind: unit.HealthRuntime})
	}
	if h.HTTP != nil {
		checks = append(checks, unit.HealthCheck{Kind: unit.HealthHTTP, URL: h.HTTP.URL, ExpectedStatus: h.HTTP.ExpectedStatus, Headers: h.HTTP.Headers})
	}
	if h.SQL != nil {
		checks = append(checks, unit.HealthCheck{Kind: unit.HealthSQL, Driver: h.SQL.Driver, DSN: h.SQL.DSN})
	}
	if h.Redis != nil {
		checks = append(checks, unit.HealthCheck{Kind: unit.HealthRedis, Addr: h.Redis.Addr})
	}
	if len(h.Command) > 0 {
		checks = append(checks, unit.HealthCheck{Kind: unit.HealthCommand, Command: h.Command})
	}

	switch len(checks) {
	case 0:
		return unit.HealthCheck{Kind: unit.HealthNone}, nil
	case 1:
		return checks[0], nil
	default:
		return unit.HealthCheck{}, dserrors.ConfigError{
			Field:      field,
			Message:    "at most one health check may be declared per unit",
			Suggestion: "Keep one of runtime, http, sql, redis or command",
		}
	}
}
