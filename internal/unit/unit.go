// Package unit defines the deployable units the orchestrator manages and the
// closed set of health statuses a probe can report for them.
package unit

import (
	"fmt"
	"strings"
	"time"
)

// Origin records how a unit entered the registry.
type Origin string

const (
	// OriginExplicit marks a unit declared in the configuration file.
	OriginExplicit Origin = "explicit"

	// OriginScanned marks a unit discovered by walking a scan root.
	OriginScanned Origin = "scanned"
)

// Source locates the definition the runner brings up.
type Source struct {
	// ComposeFile is the path of the compose file.
	ComposeFile string

	// Profile optionally scopes the compose invocation to one profile.
	Profile string
}

// String renders the source the way it appears in logs.
func (s Source) String() string {
	if s.Profile == "" {
		return s.ComposeFile
	}
	return fmt.Sprintf("%s (profile %s)", s.ComposeFile, s.Profile)
}

// HealthKind selects how a unit's health is observed.
type HealthKind string

const (
	// HealthNone means no health check is declared; running implies healthy.
	HealthNone HealthKind = "none"

	// HealthRuntime uses the container runtime's own health status.
	HealthRuntime HealthKind = "runtime"

	// HealthHTTP issues a GET against a URL.
	HealthHTTP HealthKind = "http"

	// HealthSQL pings a database.
	HealthSQL HealthKind = "sql"

	// HealthRedis sends PING to a Redis server.
	HealthRedis HealthKind = "redis"

	// HealthCommand runs a command and checks its exit code.
	HealthCommand HealthKind = "command"
)

// HealthCheck describes how to probe a unit. Only the fields of Kind are used.
type HealthCheck struct {
	Kind HealthKind

	// URL, ExpectedStatus and Headers configure HTTP checks. ExpectedStatus 0
	// accepts any 2xx.
	URL            string
	ExpectedStatus int
	Headers        map[string]string

	// Driver and DSN configure SQL checks ("postgres" or "mysql").
	Driver string
	DSN    string

	// Addr configures Redis checks.
	Addr string

	// Command configures command checks.
	Command []string
}

// Describe returns a short human-readable description of the check.
func (h HealthCheck) Describe() string {
	switch h.Kind {
	case HealthHTTP:
		if h.ExpectedStatus != 0 {
			return fmt.Sprintf("http %s (expect %d)", h.URL, h.ExpectedStatus)
		}
		return "http " + h.URL
	case HealthSQL:
		return "sql " + h.Driver
	case HealthRedis:
		return "redis " + h.Addr
	case HealthCommand:
		return "command " + strings.Join(h.Command, " ")
	case HealthRuntime:
		return "runtime"
	default:
		return "none"
	}
}

// Budget overrides the engine's default polling budget for one unit.
type Budget struct {
	// Retries is the maximum number of polls; 0 uses the engine default.
	Retries int

	// Timeout bounds the wall-clock time spent polling; 0 disables it.
	Timeout time.Duration
}

// Unit is the atomic deployable thing. Units are immutable once built.
type Unit struct {
	// Name is the expected container name and the health correlation key.
	Name string

	Source Source
	Health HealthCheck
	Budget Budget
	Origin Origin
}
