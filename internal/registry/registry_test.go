package registry

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/tierup/internal/errors"
	"github.com/systmms/tierup/internal/health"
	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/runtime"
	"github.com/systmms/tierup/internal/unit"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// stacksTree lays out a scan root the way a self-hosted platform repo does.
func stacksTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gitea", "docker-compose.yml"), `
services:
  gitea:
    image: gitea/gitea
    container_name: gitea
    healthcheck:
      test: ["CMD", "curl", "-f", "http://localhost:3000"]
`)
	writeFile(t, filepath.Join(root, "n8n", "compose.yaml"), `
services:
  n8n:
    image: n8nio/n8n
  worker:
    image: n8nio/n8n
    container_name: n8n-worker
`)
	writeFile(t, filepath.Join(root, "monitoring", "grafana", "docker-compose.yml"), `
services:
  grafana:
    image: grafana/grafana
    container_name: grafana
    healthcheck:
      disable: true
`)
	writeFile(t, filepath.Join(root, ".archive", "old", "docker-compose.yml"), "services:\n  old:\n    image: busybox\n")
	writeFile(t, filepath.Join(root, "notes", "README.md"), "not a stack")
	return root
}

func newBuilder() (*Builder, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewBuilder(logging.NewWithWriter(&buf, false, true)), &buf
}

func threeTiers() []TierSpec {
	return []TierSpec{
		{Name: "foundation", Policy: PolicyFailFast, Units: []unit.Unit{
			{Name: "postgres", Source: unit.Source{ComposeFile: "infra/postgres/docker-compose.yml"}},
		}},
		{Name: "applications", Policy: PolicyBestEffort, Default: true},
		{Name: "orchestration", Policy: PolicyFailFast, Units: []unit.Unit{
			{Name: "coder", Source: unit.Source{ComposeFile: "platform/docker-compose.yml", Profile: "coder"},
				Health: unit.HealthCheck{Kind: unit.HealthRuntime}, Budget: unit.Budget{Retries: 120}},
		}},
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	root := stacksTree(t)
	var warnings []string
	found, err := Scan([]string{root, filepath.Join(root, "missing")}, func(format string, args ...interface{}) {
		warnings = append(warnings, format)
	})
	require.NoError(t, err)

	require.Len(t, found, 3)
	assert.Equal(t, "gitea", found[0].Unit.Name)
	assert.Equal(t, unit.HealthRuntime, found[0].Unit.Health.Kind)
	assert.Equal(t, "gitea/docker-compose.yml", found[0].RelPath)

	assert.Equal(t, "grafana", found[1].Unit.Name)
	assert.Equal(t, unit.HealthNone, found[1].Unit.Health.Kind, "disabled healthcheck")
	assert.Equal(t, "monitoring/grafana", found[1].RelDir)

	// First service has no container_name, so compose names it <project>-<service>-1.
	assert.Equal(t, "n8n-n8n-1", found[2].Unit.Name)
	assert.Equal(t, unit.OriginScanned, found[2].Unit.Origin)

	assert.Len(t, warnings, 1)
}

func TestScan_Deterministic(t *testing.T) {
	t.Parallel()

	root := stacksTree(t)
	b, _ := newBuilder()
	in := Input{Tiers: threeTiers(), ScanRoots: []string{root}}

	first, err := b.Build(in)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := b.Build(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScan_InvalidYAMLFallsBackToDirName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken", "docker-compose.yml"), "services: [\n")

	var warned int
	found, err := Scan([]string{root}, func(string, ...interface{}) { warned++ })
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "broken", found[0].Unit.Name)
	assert.Equal(t, 1, warned)
}

func TestScan_ContainerNames(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Plane_App", "compose.yaml"), "services:\n  web:\n    image: plane\n  api:\n    image: plane\n")
	writeFile(t, filepath.Join(root, "outline", "compose.yaml"), "name: Wiki\nservices:\n  outline:\n    image: outline\n")
	writeFile(t, filepath.Join(root, "neo4j", "compose.yaml"), "name: graph\nservices:\n  db:\n    image: neo4j\n    container_name: neo4j\n")

	found, err := Scan([]string{root}, func(string, ...interface{}) {})
	require.NoError(t, err)
	require.Len(t, found, 3)

	names := []string{found[0].Unit.Name, found[1].Unit.Name, found[2].Unit.Name}
	assert.Equal(t, []string{"plane_app-web-1", "neo4j", "wiki-outline-1"}, names)
}

func TestNormalizeProjectName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"n8n":         "n8n",
		"My Stack.v2": "mystackv2",
		"_hidden-app": "hidden-app",
		"Plane_App":   "plane_app",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeProjectName(in), in)
	}
}

// scannedReader reports containers by the names compose gives them.
type scannedReader map[string]runtime.State

func (r scannedReader) State(ctx context.Context, name string) (runtime.State, error) {
	if s, ok := r[name]; ok {
		return s, nil
	}
	return runtime.State{Status: runtime.StateMissing}, nil
}

func TestScan_UnitWithoutContainerNameIsHealthy(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "n8n", "docker-compose.yml"), "services:\n  n8n:\n    image: n8nio/n8n\n")

	found, err := Scan([]string{root}, func(string, ...interface{}) {})
	require.NoError(t, err)
	require.Len(t, found, 1)

	prober := health.NewRuntimeProber(scannedReader{"n8n-n8n-1": {Status: "running"}})
	result := prober.Probe(context.Background(), found[0].Unit)
	assert.Equal(t, unit.StatusHealthy, result.Status, result.Message)
}

func TestBuild_AssignmentsAndFallback(t *testing.T) {
	t.Parallel()

	root := stacksTree(t)
	b, _ := newBuilder()

	tiers, err := b.Build(Input{
		Tiers:       threeTiers(),
		Assignments: []Assignment{{Pattern: "monitoring/*", Tier: "foundation"}, {Pattern: "grafana", Tier: "orchestration"}},
		ScanRoots:   []string{root},
	})
	require.NoError(t, err)
	require.Len(t, tiers, 3)

	assert.Equal(t, []string{"postgres", "grafana"}, tiers[0].UnitNames(), "first matching row wins")
	assert.Equal(t, []string{"gitea", "n8n-n8n-1"}, tiers[1].UnitNames())
	assert.Equal(t, []string{"coder"}, tiers[2].UnitNames())

	for i, tier := range tiers {
		assert.Equal(t, i, tier.Index)
	}
	assert.Equal(t, unit.OriginExplicit, tiers[0].Units[0].Origin)
	assert.Equal(t, unit.HealthNone, tiers[0].Units[0].Health.Kind)
	assert.Equal(t, 5, CountUnits(tiers))
}

func TestBuild_ExplicitUnitsExcludedFromScan(t *testing.T) {
	t.Parallel()

	root := stacksTree(t)
	specs := threeTiers()
	specs[0].Units = append(specs[0].Units,
		unit.Unit{Name: "gitea", Source: unit.Source{ComposeFile: filepath.Join(root, "gitea", "docker-compose.yml")}},
		unit.Unit{Name: "automation", Source: unit.Source{ComposeFile: filepath.Join(root, "n8n", "compose.yaml")}},
	)

	b, _ := newBuilder()
	tiers, err := b.Build(Input{Tiers: specs, ScanRoots: []string{root}})
	require.NoError(t, err)

	assert.Equal(t, []string{"postgres", "gitea", "automation"}, tiers[0].UnitNames())
	assert.Equal(t, []string{"grafana"}, tiers[1].UnitNames())
}

func TestBuild_SynthesizesApplicationsTier(t *testing.T) {
	t.Parallel()

	root := stacksTree(t)
	specs := []TierSpec{
		{Name: "foundation", Policy: PolicyFailFast},
		{Name: "edge", Policy: PolicyFailFast},
		{Name: "orchestration", Policy: PolicyFailFast},
	}

	b, _ := newBuilder()
	tiers, err := b.Build(Input{Tiers: specs, ScanRoots: []string{root}})
	require.NoError(t, err)

	require.Len(t, tiers, 4)
	assert.Equal(t, "applications", tiers[2].Name)
	assert.Equal(t, PolicyBestEffort, tiers[2].Policy)
	assert.True(t, tiers[2].Default)
	assert.Equal(t, "orchestration", tiers[3].Name)
	assert.Equal(t, 3, tiers[3].Index)
	assert.Len(t, tiers[2].Units, 3)
}

func TestBuild_SynthesizedTierAppendedForSingleTier(t *testing.T) {
	t.Parallel()

	root := stacksTree(t)
	b, _ := newBuilder()
	tiers, err := b.Build(Input{Tiers: []TierSpec{{Name: "foundation"}}, ScanRoots: []string{root}})
	require.NoError(t, err)

	require.Len(t, tiers, 2)
	assert.Equal(t, "foundation", tiers[0].Name)
	assert.Equal(t, PolicyFailFast, tiers[0].Policy)
	assert.Equal(t, "applications", tiers[1].Name)
}

func TestBuild_NoSynthesisWithoutScannedUnits(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder()
	tiers, err := b.Build(Input{Tiers: []TierSpec{{Name: "a"}, {Name: "b"}}})
	require.NoError(t, err)
	assert.Len(t, tiers, 2)
}

func TestBuild_DuplicateScannedNamesSkipped(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "docker-compose.yml"), "services:\n  x:\n    container_name: web\n")
	writeFile(t, filepath.Join(root, "b", "docker-compose.yml"), "services:\n  x:\n    container_name: web\n")

	b, logs := newBuilder()
	tiers, err := b.Build(Input{Tiers: threeTiers(), ScanRoots: []string{root}})
	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, tiers[1].UnitNames())
	assert.Contains(t, logs.String(), "duplicates a/docker-compose.yml")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	compose := unit.Source{ComposeFile: "x.yml"}
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"no tiers", Input{}, "tiers"},
		{"duplicate tier", Input{Tiers: []TierSpec{{Name: "a"}, {Name: "a"}}}, "tiers[1].name"},
		{"unknown policy", Input{Tiers: []TierSpec{{Name: "a", Policy: "yolo"}}}, "tiers[0].policy"},
		{"two defaults", Input{Tiers: []TierSpec{{Name: "a", Default: true}, {Name: "b", Default: true}}}, "tiers[1].default"},
		{"duplicate unit", Input{Tiers: []TierSpec{
			{Name: "a", Units: []unit.Unit{{Name: "db", Source: compose}}},
			{Name: "b", Units: []unit.Unit{{Name: "db", Source: compose}}},
		}}, "tiers[1].units[0].name"},
		{"missing compose", Input{Tiers: []TierSpec{{Name: "a", Units: []unit.Unit{{Name: "db"}}}}}, "tiers[0].units[0].compose"},
		{"http without url", Input{Tiers: []TierSpec{{Name: "a", Units: []unit.Unit{
			{Name: "api", Source: compose, Health: unit.HealthCheck{Kind: unit.HealthHTTP}},
		}}}}, "tiers[0].units[0].health.http.url"},
		{"bad sql driver", Input{Tiers: []TierSpec{{Name: "a", Units: []unit.Unit{
			{Name: "db", Source: compose, Health: unit.HealthCheck{Kind: unit.HealthSQL, Driver: "oracle", DSN: "x"}},
		}}}}, "tiers[0].units[0].health.sql.driver"},
		{"bad pattern", Input{Tiers: []TierSpec{{Name: "a"}}, Assignments: []Assignment{{Pattern: "[", Tier: "a"}}}, "assignments[0].pattern"},
		{"unknown tier", Input{Tiers: []TierSpec{{Name: "a", Default: true}}, Assignments: []Assignment{{Pattern: "x", Tier: "b"}}}, "assignments[0].tier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tt.in)
			require.Error(t, err)
			var cfgErr dserrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidate_AssignmentToSynthesizedTier(t *testing.T) {
	t.Parallel()

	in := Input{Tiers: []TierSpec{{Name: "a"}, {Name: "b"}}, Assignments: []Assignment{{Pattern: "*", Tier: "applications"}}}
	assert.NoError(t, Validate(in))
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFailFast, p)

	p, err = ParsePolicy("best_effort")
	require.NoError(t, err)
	assert.Equal(t, PolicyBestEffort, p)

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}
