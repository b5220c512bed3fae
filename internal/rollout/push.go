package rollout

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushMetrics sends the default registry to a Prometheus Pushgateway, grouped
// by run mode.
func PushMetrics(ctx context.Context, url, job string, run *Run) error {
	return PushFrom(ctx, prometheus.DefaultGatherer, url, job, run)
}

// PushFrom is PushMetrics with an explicit gatherer.
func PushFrom(ctx context.Context, g prometheus.Gatherer, url, job string, run *Run) error {
	if job == "" {
		job = "tierup"
	}
	err := push.New(url, job).
		Gatherer(g).
		Grouping("mode", string(run.Mode)).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
