package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TrackerMetrics instruments the reconciliation loop: pass throughput and
// latency, plus the two failure categories that matter operationally.
type TrackerMetrics struct {
	PassesTotal  prometheus.Counter
	PassDuration prometheus.Histogram
	SyncFailures prometheus.Counter
	AppsNotFound prometheus.Counter
}

// NewTrackerMetrics creates and registers the tracker metrics with the given
// registerer.
func NewTrackerMetrics(reg prometheus.Registerer) *TrackerMetrics {
	m := &TrackerMetrics{
		PassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtracker_passes_total",
			Help: "Total number of completed reconciliation passes.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobtracker_pass_duration_seconds",
			Help:    "Duration of reconciliation passes in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtracker_sync_failures_total",
			Help: "Total number of per-job status sync failures.",
		}),
		AppsNotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtracker_apps_not_found_total",
			Help: "Total number of jobs whose application was missing on the external system.",
		}),
	}
	reg.MustRegister(m.PassesTotal, m.PassDuration, m.SyncFailures, m.AppsNotFound)
	return m
}
