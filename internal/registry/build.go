package registry

import (
	"path"
	"path/filepath"

	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/unit"
)

// DefaultTierName names the application tier synthesized when no declared
// tier is marked default.
const DefaultTierName = "applications"

// Builder constructs tier plans.
type Builder struct {
	logger *logging.Logger
}

// NewBuilder creates a builder that reports scan warnings through logger.
func NewBuilder(logger *logging.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build validates in, scans the roots and returns the ordered tiers.
//
// Scanned units that were also declared explicitly (same name or same compose
// file) are ignored. The rest are routed by the first matching assignment row,
// falling back to the default tier. When no tier is marked default, a tier
// named "applications" takes the role; failing that, one is inserted with
// best_effort policy before the last tier the first time a scanned unit
// needs it. Repeated builds over an unchanged tree are identical.
func (b *Builder) Build(in Input) ([]Tier, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	tiers := make([]Tier, 0, len(in.Tiers)+1)
	byName := make(map[string]int)
	explicitNames := make(map[string]bool)
	explicitFiles := make(map[string]bool)
	defaultIdx := -1

	for _, spec := range in.Tiers {
		policy, _ := ParsePolicy(string(spec.Policy))
		t := Tier{Name: spec.Name, Policy: policy, Default: spec.Default}
		for _, u := range spec.Units {
			if u.Health.Kind == "" {
				u.Health.Kind = unit.HealthNone
			}
			u.Origin = unit.OriginExplicit
			t.Units = append(t.Units, u)
			explicitNames[u.Name] = true
			explicitFiles[canonical(u.Source.ComposeFile)] = true
		}
		if spec.Default {
			defaultIdx = len(tiers)
		}
		byName[spec.Name] = len(tiers)
		tiers = append(tiers, t)
	}

	if idx, ok := byName[DefaultTierName]; ok && defaultIdx < 0 {
		tiers[idx].Default = true
		defaultIdx = idx
	}

	discovered, err := Scan(in.ScanRoots, b.logger.Warn)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	for _, d := range discovered {
		u := d.Unit
		if explicitNames[u.Name] || explicitFiles[canonical(u.Source.ComposeFile)] {
			b.logger.Debug("scan: %s already declared, ignoring %s", u.Name, d.RelPath)
			continue
		}
		if prev, ok := seen[u.Name]; ok {
			b.logger.Warn("scan: unit %s in %s duplicates %s, skipping", u.Name, d.RelPath, prev)
			continue
		}
		seen[u.Name] = d.RelPath

		target := match(in.Assignments, d)
		if target == "" {
			if defaultIdx < 0 {
				tiers, defaultIdx = synthesizeDefault(tiers)
				byName = reindex(tiers)
			}
			target = tiers[defaultIdx].Name
		} else if _, ok := byName[target]; !ok {
			// Only reachable for an assignment to the synthesized tier.
			tiers, defaultIdx = synthesizeDefault(tiers)
			byName = reindex(tiers)
		}

		idx := byName[target]
		tiers[idx].Units = append(tiers[idx].Units, u)
		b.logger.Debug("scan: %s -> tier %s", u.Name, target)
	}

	for i := range tiers {
		tiers[i].Index = i
	}
	return tiers, nil
}

// match returns the tier of the first assignment whose pattern matches the
// unit's name, its directory or its compose path.
func match(rows []Assignment, d Discovered) string {
	for _, row := range rows {
		for _, candidate := range []string{d.Unit.Name, d.RelDir, d.RelPath} {
			if ok, _ := path.Match(row.Pattern, candidate); ok {
				return row.Tier
			}
		}
	}
	return ""
}

func synthesizeDefault(tiers []Tier) ([]Tier, int) {
	apps := Tier{Name: DefaultTierName, Policy: PolicyBestEffort, Default: true}
	if len(tiers) < 2 {
		return append(tiers, apps), len(tiers)
	}
	at := len(tiers) - 1
	out := make([]Tier, 0, len(tiers)+1)
	out = append(out, tiers[:at]...)
	out = append(out, apps)
	out = append(out, tiers[at:]...)
	return out, at
}

func reindex(tiers []Tier) map[string]int {
	m := make(map[string]int, len(tiers))
	for i, t := range tiers {
		m[t.Name] = i
	}
	return m
}

func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
