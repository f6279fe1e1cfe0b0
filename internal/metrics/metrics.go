// Package metrics exposes the runner's own Prometheus instrumentation,
// grounded on the promauto CounterVec/GaugeVec pattern the teacher's
// metrics package uses for its acceptance-test counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "specrun"

var (
	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tests_total",
		Help:      "Count of finished test attempts by status",
	}, []string{"status"})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of individual test attempts",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	workersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_busy",
		Help:      "Number of worker processes currently running a group",
	})

	workerCrashesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_crashes_total",
		Help:      "Count of worker processes that exited before reporting done",
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Count of tests re-enqueued for a retry attempt",
	})
)

// RecordTestResult accounts one finished test attempt.
func RecordTestResult(status string, duration time.Duration) {
	testsTotal.WithLabelValues(status).Inc()
	testDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetWorkersBusy reports the current count of workers mid-group.
func SetWorkersBusy(n int) {
	workersBusy.Set(float64(n))
}

// RecordWorkerCrash increments the crash counter.
func RecordWorkerCrash() {
	workerCrashesTotal.Inc()
}

// RecordRetry increments the retry counter.
func RecordRetry() {
	retriesTotal.Inc()
}
