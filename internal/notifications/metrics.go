package notifications

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sentTotal counts delivery attempts by provider and result.
	sentTotal *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics initializes the Prometheus metrics for notifications.
func InitMetrics() {
	metricsOnce.Do(func() {
		sentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tierup_notifications_total",
			Help: "Notifications delivered, by provider and result",
		}, []string{"provider", "result"})
		metricsRegistered = true
	})
}

// recordSend is safe to call even if metrics have not been initialized.
func recordSend(provider string, err error) {
	if !metricsRegistered || sentTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	sentTotal.WithLabelValues(provider, result).Inc()
}

// GetSentCounter returns the sent counter for testing.
// Returns nil if metrics have not been initialized.
func GetSentCounter() *prometheus.CounterVec {
	return sentTotal
}
