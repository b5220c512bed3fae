package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/systmms/tierup/internal/config"
	"github.com/systmms/tierup/internal/health"
	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/registry"
	"github.com/systmms/tierup/internal/rollout"
	"github.com/systmms/tierup/internal/runner"
	"github.com/systmms/tierup/internal/runtime"
	"github.com/systmms/tierup/pkg/exec"
)

// ErrRunFailed is returned when a run finished without succeeding. Its
// summary has already been printed.
var ErrRunFailed = errors.New("run failed")

// ContainerRuntime is what the commands need from the container runtime.
type ContainerRuntime interface {
	runtime.StateReader
	Ping(ctx context.Context) error
	Close() error
}

// NewRuntime connects to the container runtime. Tests replace it.
var NewRuntime = func() (ContainerRuntime, error) {
	return runtime.NewDockerReader("")
}

// Executor runs compose commands and command probes. Tests replace it.
var Executor exec.CommandExecutor = exec.DefaultExecutor()

// loadPlan loads the configuration and builds the tier plan.
func loadPlan(cfg *config.Config) (*config.Settings, []registry.Tier, error) {
	if err := cfg.Load(); err != nil {
		return nil, nil, err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return nil, nil, err
	}
	in, err := cfg.RegistryInput()
	if err != nil {
		return nil, nil, err
	}
	tiers, err := registry.NewBuilder(cfg.Logger).Build(in)
	if err != nil {
		return nil, nil, err
	}
	return settings, tiers, nil
}

// newEngine wires the compose runner and the probe dispatcher. The returned
// func releases the runtime client.
func newEngine(cfg *config.Config, settings *config.Settings, dryRun bool) (*rollout.Engine, func(), error) {
	engineConfig := settings.EngineConfig(dryRun)
	if dryRun {
		return rollout.New(nil, nil, cfg.Logger, engineConfig), func() {}, nil
	}

	rt, err := NewRuntime()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to container runtime: %w", err)
	}

	r := runner.NewComposeRunner(settings.ComposeCommand, Executor, cfg.Logger)
	p := health.NewStandardDispatcher(rt, Executor, settings.ProbeTimeout)
	return rollout.New(r, p, cfg.Logger, engineConfig), func() { _ = rt.Close() }, nil
}

// attachRunLog mirrors the logger into this run's own file.
func attachRunLog(logger *logging.Logger, dir string, run *rollout.Run) {
	name := fmt.Sprintf("tierup-%s-%s-%s.log", run.Mode, run.StartedAt.Format("20060102-150405"), run.ID)
	path, err := logger.AttachFile(dir, name)
	if err != nil {
		logger.Warn("Run log disabled: %v", err)
		return
	}
	logger.Info("Logging run %s to %s", run.ID, path)
}

// startMetrics serves /metrics when addr is set. The returned func stops it.
func startMetrics(logger *logging.Logger, addr string) (func(), error) {
	health.InitMetrics()
	if addr == "" {
		return func() {}, nil
	}

	server := health.NewMetricsServer(health.DefaultMetricsServerConfig(addr), logger)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}
	logger.Info("Serving metrics on http://%s/metrics", server.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}, nil
}

// pushMetrics sends the run's metrics to the Pushgateway, if one is set.
func pushMetrics(ctx context.Context, logger *logging.Logger, settings *config.Settings, run *rollout.Run) {
	if settings.Pushgateway == "" || run.DryRun {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := rollout.PushMetrics(ctx, settings.Pushgateway, settings.MetricsJob, run); err != nil {
		logger.Warn("Failed to push metrics to %s: %v", logging.RedactURL(settings.Pushgateway), err)
		return
	}
	logger.Debug("Pushed metrics to %s", logging.RedactURL(settings.Pushgateway))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
