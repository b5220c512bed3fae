package report

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tierup/internal/health"
	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/notifications"
	"github.com/systmms/tierup/internal/registry"
	"github.com/systmms/tierup/internal/rollout"
	"github.com/systmms/tierup/internal/runtime"
	"github.com/systmms/tierup/internal/unit"
)

type countingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (c *countingNotifier) Notify(ctx context.Context, event notifications.Event) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return 1
}

func (c *countingNotifier) Events() []notifications.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notifications.Event(nil), c.events...)
}

type noopRunner struct{}

func (noopRunner) Start(ctx context.Context, u unit.Unit) error { return nil }
func (noopRunner) Stop(ctx context.Context, u unit.Unit) error  { return nil }

type runningReader struct{}

func (runningReader) State(ctx context.Context, name string) (runtime.State, error) {
	return runtime.State{Status: "running"}, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func testLogger() (*logging.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return logging.NewWithWriter(buf, true, true), buf
}

func httpUnit(name, url string) unit.Unit {
	return unit.Unit{
		Name:   name,
		Source: unit.Source{ComposeFile: "/stacks/" + name + "/compose.yaml"},
		Health: unit.HealthCheck{Kind: unit.HealthHTTP, URL: url},
		Origin: unit.OriginExplicit,
	}
}

// Tier 0 holds db (no check) and cache (503 once, then 200). Tier 1 holds api,
// which never answers 200.
func TestUpEndToEnd_FailFastNotifiesOnce(t *testing.T) {
	t.Parallel()

	var cacheHits atomic.Int32
	cache := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cacheHits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer cache.Close()

	var apiHits atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiHits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer api.Close()

	dispatcher := health.NewDispatcher(time.Second)
	dispatcher.Register(unit.HealthNone, health.NewRuntimeProber(runningReader{}))
	dispatcher.Register(unit.HealthHTTP, health.NewHTTPProber(time.Second))

	tiers := []registry.Tier{
		{Index: 0, Name: "foundation", Policy: registry.PolicyFailFast, Units: []unit.Unit{
			{Name: "db", Source: unit.Source{ComposeFile: "/stacks/db/compose.yaml"}, Health: unit.HealthCheck{Kind: unit.HealthNone}},
			httpUnit("cache", cache.URL),
		}},
		{Index: 1, Name: "applications", Policy: registry.PolicyFailFast, Units: []unit.Unit{
			httpUnit("api", api.URL),
		}},
	}

	logger, _ := testLogger()
	engine := rollout.New(noopRunner{}, dispatcher, logger, rollout.Config{
		PollInterval: 5 * time.Millisecond,
		MaxRetries:   4,
		Workers:      2,
	})

	notifier := &countingNotifier{}
	var out bytes.Buffer
	reporter := NewReporter(&out, logger, notifier)
	engine.OnTier(reporter.TierHook())

	run := engine.Up(context.Background(), tiers)
	require.NoError(t, reporter.Report(context.Background(), run))

	require.Len(t, run.Tiers, 2)
	assert.Equal(t, rollout.TierComplete, run.Tiers[0].State)
	assert.Equal(t, rollout.TierFailed, run.Tiers[1].State)
	assert.False(t, run.Succeeded())
	assert.Equal(t, "failure", run.Result())

	db, cacheOutcome := run.Tiers[0].Units[0], run.Tiers[0].Units[1]
	assert.Equal(t, rollout.StateHealthy, db.State)
	assert.Equal(t, 1, db.Polls)
	assert.Equal(t, rollout.StateHealthy, cacheOutcome.State)
	assert.Equal(t, 2, cacheOutcome.Polls, "cache is retried once before it turns healthy")

	apiOutcome := run.Tiers[1].Units[0]
	assert.Equal(t, rollout.StateUnhealthy, apiOutcome.State)
	assert.Equal(t, 4, apiOutcome.Polls, "api exhausts its budget")
	assert.Equal(t, int32(4), apiHits.Load())

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notifications.EventRunCompleted, events[0].Type)
	assert.Equal(t, notifications.StatusFailure, events[0].Status)
	assert.Equal(t, []string{"api"}, events[0].Failing)
	assert.Equal(t, "tier applications failed; 0 tier(s) not started", events[0].Message)

	assert.Contains(t, out.String(), "failing: api")
	assert.Contains(t, out.String(), "✗ up failed")
}

func TestReport_PerTierEvents(t *testing.T) {
	t.Parallel()

	logger, _ := testLogger()
	engine := rollout.New(noopRunner{}, health.ProberFunc(func(ctx context.Context, u unit.Unit) health.Result {
		return health.Result{Status: unit.StatusHealthy}
	}), logger, rollout.Config{PollInterval: time.Millisecond, MaxRetries: 2})

	notifier := &countingNotifier{}
	reporter := NewReporter(&bytes.Buffer{}, logger, notifier)
	reporter.NotifyPerTier(true)
	engine.OnTier(reporter.TierHook())

	run := engine.Up(context.Background(), []registry.Tier{
		{Index: 0, Name: "a", Policy: registry.PolicyFailFast, Units: []unit.Unit{{Name: "x"}}},
		{Index: 1, Name: "b", Policy: registry.PolicyBestEffort, Units: []unit.Unit{{Name: "y"}}},
	})
	require.NoError(t, reporter.Report(context.Background(), run))

	events := notifier.Events()
	require.Len(t, events, 3)
	assert.Equal(t, notifications.EventTierCompleted, events[0].Type)
	assert.Equal(t, "tier a complete", events[0].Message)
	assert.Equal(t, notifications.EventTierCompleted, events[1].Type)
	assert.Equal(t, notifications.EventRunCompleted, events[2].Type)
	assert.Equal(t, notifications.StatusSuccess, events[2].Status)
	assert.Equal(t, "all 2 tier(s) complete", events[2].Message)
}

func TestReport_DryRunNeverNotifies(t *testing.T) {
	t.Parallel()

	logger, logs := testLogger()
	notifier := &countingNotifier{}
	reporter := NewReporter(&bytes.Buffer{}, logger, notifier)

	run := rollout.NewRun(rollout.ModeUp, []registry.Tier{{Name: "a", Policy: registry.PolicyFailFast}}, true)
	require.NoError(t, reporter.Report(context.Background(), run))

	assert.Empty(t, notifier.Events())
	assert.Contains(t, logs.String(), "[dry-run] would send run_completed notification")
}

func TestReport_CancelledContextStillNotifies(t *testing.T) {
	t.Parallel()

	logger, _ := testLogger()
	var sawLiveCtx bool
	notifier := notifierFunc(func(ctx context.Context, event notifications.Event) int {
		sawLiveCtx = ctx.Err() == nil
		return 1
	})
	reporter := NewReporter(&bytes.Buffer{}, logger, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := rollout.NewRun(rollout.ModeUp, []registry.Tier{{Name: "a", Policy: registry.PolicyFailFast}}, false)
	run.Cancelled = true
	require.NoError(t, reporter.Report(ctx, run))
	assert.True(t, sawLiveCtx)
}

type notifierFunc func(ctx context.Context, event notifications.Event) int

func (f notifierFunc) Notify(ctx context.Context, event notifications.Event) int {
	return f(ctx, event)
}

func outcome(name string, state rollout.UnitState) rollout.UnitOutcome {
	return rollout.UnitOutcome{Unit: unit.Unit{Name: name}, State: state}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	run := &rollout.Run{
		Mode: rollout.ModeUp,
		Tiers: []rollout.TierOutcome{
			{
				Tier:  registry.Tier{Name: "apps", Policy: registry.PolicyBestEffort},
				State: rollout.TierFailed,
				Units: []rollout.UnitOutcome{
					outcome("a", rollout.StateHealthy),
					outcome("b", rollout.StateHealthy),
					outcome("c", rollout.StateUnhealthy),
					outcome("d", rollout.StateStopped),
					outcome("e", rollout.StateSkipped),
				},
			},
		},
	}

	s := Summarize(run)
	require.Len(t, s.Tiers, 1)
	ts := s.Tiers[0]
	assert.Equal(t, 2, ts.Healthy)
	assert.Equal(t, 1, ts.Unhealthy)
	assert.Equal(t, 1, ts.Stopped)
	assert.Equal(t, 1, ts.Skipped)
	assert.Equal(t, []string{"c", "d"}, s.Failing)
	assert.True(t, s.Success, "best_effort failure does not fail an up run")
	assert.Equal(t, "1 of 1 tier(s) failed: apps", s.Message)
}

func TestMessage_Cancelled(t *testing.T) {
	t.Parallel()

	run := rollout.NewRun(rollout.ModeUp, []registry.Tier{{Name: "a"}, {Name: "b"}}, false)
	run.Tiers[0].State = rollout.TierComplete
	run.Cancelled = true

	assert.Equal(t, "cancelled; 1 tier(s) not started", Summarize(run).Message)
}

func planTiers() []registry.Tier {
	return []registry.Tier{
		{Index: 0, Name: "foundation", Policy: registry.PolicyFailFast, Units: []unit.Unit{
			{Name: "db", Source: unit.Source{ComposeFile: "/s/db/compose.yaml"}, Health: unit.HealthCheck{Kind: unit.HealthSQL, Driver: "postgres"}, Origin: unit.OriginExplicit},
			{Name: "cache", Source: unit.Source{ComposeFile: "/s/cache/compose.yaml"}, Budget: unit.Budget{Retries: 10, Timeout: 30 * time.Second}, Origin: unit.OriginExplicit},
		}},
		{Index: 1, Name: "applications", Policy: registry.PolicyBestEffort, Default: true, Units: []unit.Unit{
			{Name: "gitea", Source: unit.Source{ComposeFile: "/s/gitea/docker-compose.yml"}, Health: unit.HealthCheck{Kind: unit.HealthRuntime}, Origin: unit.OriginScanned},
		}},
		{Index: 2, Name: "orchestration", Policy: registry.PolicyFailFast},
	}
}

func TestWritePlan(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, WritePlan(&out, planTiers()))

	text := out.String()
	assert.Contains(t, text, "TIER")
	assert.Contains(t, text, "1. foundation")
	assert.Contains(t, text, "2. applications *")
	assert.Contains(t, text, "sql postgres")
	assert.Contains(t, text, "10 polls, 30s")
	assert.Contains(t, text, "3 tier(s), 3 unit(s)")
}

func TestNewPlanJSON(t *testing.T) {
	t.Parallel()

	plan := NewPlanJSON(planTiers())
	require.Len(t, plan.Tiers, 3)
	assert.Equal(t, "foundation", plan.Tiers[0].Name)
	assert.Equal(t, "db", plan.Tiers[0].Units[0].Name)
	assert.Equal(t, "explicit", plan.Tiers[0].Units[0].Origin)
	assert.True(t, plan.Tiers[1].Default)
	assert.NotNil(t, plan.Tiers[2].Units, "empty tiers encode as []")

	var out bytes.Buffer
	require.NoError(t, WriteJSON(&out, plan))
	assert.Contains(t, out.String(), `"units": []`)
}

func TestNewRunJSON(t *testing.T) {
	t.Parallel()

	run := rollout.NewRun(rollout.ModeStatus, planTiers()[:1], false)
	run.Tiers[0].State = rollout.TierFailed
	run.Tiers[0].Units[0] = rollout.UnitOutcome{
		Unit:      run.Tiers[0].Units[0].Unit,
		State:     rollout.StateHealthy,
		LastProbe: health.Result{Status: unit.StatusHealthy},
		Polls:     1,
	}
	run.Tiers[0].Units[1].State = rollout.StateStopped
	run.Tiers[0].Units[1].Reason = "container not running: exited"

	view := NewRunJSON(run)
	assert.False(t, view.Success)
	assert.Equal(t, "status", view.Mode)
	assert.Equal(t, "healthy", view.Tiers[0].Units[0].State)
	assert.Equal(t, unit.StatusHealthy, view.Tiers[0].Units[0].Status)
	assert.Equal(t, "container not running: exited", view.Tiers[0].Units[1].Reason)

	var units bytes.Buffer
	require.NoError(t, WriteUnits(&units, run))
	assert.Contains(t, units.String(), "✓ healthy")
	assert.Contains(t, units.String(), "✗ stopped")
}

func TestReport_WebhookFailureDoesNotChangeResult(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	logger, logs := testLogger()
	manager := notifications.NewManager(logger, false)
	manager.RegisterProvider(notifications.NewWebhookProvider(notifications.WebhookConfig{
		URL:   server.URL,
		Retry: &notifications.RetryConfig{MaxAttempts: 1},
	}))

	run := rollout.NewRun(rollout.ModeUp, []registry.Tier{{Name: "a", Policy: registry.PolicyFailFast}}, false)
	run.Tiers[0].State = rollout.TierComplete

	var out bytes.Buffer
	require.NoError(t, NewReporter(&out, logger, manager).Report(context.Background(), run))

	assert.True(t, run.Succeeded())
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, out.String(), "✓ up succeeded")
	assert.Contains(t, logs.String(), "webhook notification failed")
}
