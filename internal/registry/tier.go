// Package registry turns the declared tiers, the assignment table and the
// scan roots into the ordered tier plan the rollout engine executes.
package registry

import (
	"fmt"

	"github.com/systmms/tierup/internal/unit"
)

// Policy decides what a failed tier does to the rest of the run.
type Policy string

const (
	// PolicyFailFast aborts the run when the tier fails.
	PolicyFailFast Policy = "fail_fast"

	// PolicyBestEffort logs the failing units and continues.
	PolicyBestEffort Policy = "best_effort"
)

// ParsePolicy validates a policy name. The empty string selects fail_fast.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return PolicyFailFast, nil
	case PolicyFailFast, PolicyBestEffort:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown policy %q (expected fail_fast or best_effort)", s)
	}
}

// Tier is a group of units started together. Tiers run strictly in Index
// order; units inside a tier may run concurrently.
type Tier struct {
	Index   int
	Name    string
	Policy  Policy
	Default bool
	Units   []unit.Unit
}

// UnitNames returns the names of the tier's units in display order.
func (t Tier) UnitNames() []string {
	names := make([]string, len(t.Units))
	for i, u := range t.Units {
		names[i] = u.Name
	}
	return names
}

// TierSpec is a tier as declared in the configuration file.
type TierSpec struct {
	Name    string
	Policy  Policy
	Default bool
	Units   []unit.Unit
}

// Assignment routes scanned units matching Pattern to Tier.
type Assignment struct {
	Pattern string
	Tier    string
}

// Input is everything Build needs.
type Input struct {
	Tiers       []TierSpec
	Assignments []Assignment
	ScanRoots   []string
}

// CountUnits returns the number of units across tiers.
func CountUnits(tiers []Tier) int {
	n := 0
	for _, t := range tiers {
		n += len(t.Units)
	}
	return n
}
