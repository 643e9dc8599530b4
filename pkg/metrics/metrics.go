package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Delivery metrics
	DeliveriesSent       prometheus.Counter
	DeliveriesFailed     prometheus.Counter
	DeliveryConflicts    *prometheus.CounterVec
	DeliverySendDuration prometheus.Histogram

	// Lease metrics
	LeaseAcquired    *prometheus.CounterVec
	LeaseContention  *prometheus.CounterVec
	LeaseReclaimed   *prometheus.CounterVec
	LeaseReleaseMiss *prometheus.CounterVec

	// Job metrics
	JobRuns        *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	JobUsersTotal  *prometheus.CounterVec
	JobSkipReasons *prometheus.CounterVec

	// Alerting metrics
	OperatorAlerts *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		DeliveriesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_sent_total",
			Help:      "Total number of successful provider sends",
		}),
		DeliveriesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_failed_total",
			Help:      "Total number of provider sends that failed",
		}),
		DeliveryConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_conflicts_total",
			Help:      "Natural-key conflicts on delivery record creation",
		}, []string{"existing_status"}),
		DeliverySendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_send_duration_seconds",
			Help:      "Time spent on a single provider send",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		LeaseAcquired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_acquired_total",
			Help:      "Lease acquisitions by job name",
		}, []string{"job"}),
		LeaseContention: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_contention_total",
			Help:      "Acquisition attempts refused because a live lease exists",
		}, []string{"job"}),
		LeaseReclaimed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_reclaimed_total",
			Help:      "Expired leases taken over by a new holder",
		}, []string{"job"}),
		LeaseReleaseMiss: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_release_miss_total",
			Help:      "Releases that no longer owned the lease",
		}, []string{"job"}),

		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job executions by terminal status",
		}, []string{"job", "status"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of job executions",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job"}),
		JobUsersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_users_total",
			Help:      "Users accounted for per job outcome",
		}, []string{"job", "outcome"}),
		JobSkipReasons: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_skip_reasons_total",
			Help:      "Per-user skips by tagged reason",
		}, []string{"job", "reason"}),

		OperatorAlerts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operator_alerts_total",
			Help:      "Operator alerts emitted by type",
		}, []string{"type"}),
	}
}

// NewTestMetrics creates unregistered metrics for use in tests, where
// promauto's default-registry registration would collide across cases.
func NewTestMetrics() *Metrics {
	return &Metrics{
		DeliveriesSent:       prometheus.NewCounter(prometheus.CounterOpts{Name: "test_deliveries_sent_total"}),
		DeliveriesFailed:     prometheus.NewCounter(prometheus.CounterOpts{Name: "test_deliveries_failed_total"}),
		DeliveryConflicts:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_delivery_conflicts_total"}, []string{"existing_status"}),
		DeliverySendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_delivery_send_duration_seconds"}),
		LeaseAcquired:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_lease_acquired_total"}, []string{"job"}),
		LeaseContention:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_lease_contention_total"}, []string{"job"}),
		LeaseReclaimed:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_lease_reclaimed_total"}, []string{"job"}),
		LeaseReleaseMiss:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_lease_release_miss_total"}, []string{"job"}),
		JobRuns:              prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_job_runs_total"}, []string{"job", "status"}),
		JobDuration:          prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_job_duration_seconds"}, []string{"job"}),
		JobUsersTotal:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_job_users_total"}, []string{"job", "outcome"}),
		JobSkipReasons:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_job_skip_reasons_total"}, []string{"job", "reason"}),
		OperatorAlerts:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_operator_alerts_total"}, []string{"type"}),
	}
}
