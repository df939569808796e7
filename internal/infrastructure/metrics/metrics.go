package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stripe_minter"

// Job outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeDead      = "dead"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	webhookEvents *prometheus.CounterVec
	jobsProcessed *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	pollAttempts  *prometheus.HistogramVec
	queueDepth    *prometheus.GaugeVec
}

// New creates the collectors and registers them on registerer.
// A nil registerer uses prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by event type and result.",
		}, []string{"event_type", "result"}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Job deliveries by type and outcome.",
		}, []string{"job_type", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of a single job delivery.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job_type"}),
		pollAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mint_poll_attempts",
			Help:      "Attempts used by mint finalization polling phases.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}, []string{"phase"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_jobs",
			Help:      "Jobs per queue state.",
		}, []string{"state"}),
	}

	registerer.MustRegister(m.webhookEvents, m.jobsProcessed, m.jobDuration, m.pollAttempts, m.queueDepth)
	return m
}

// WebhookReceived counts a webhook delivery
func (m *Metrics) WebhookReceived(eventType, result string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

// JobProcessed records one job delivery and its outcome
func (m *Metrics) JobProcessed(jobType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(jobType, outcome).Inc()
	m.jobDuration.WithLabelValues(jobType).Observe(elapsed.Seconds())
}

// PollAttempts records how many attempts a polling phase used
func (m *Metrics) PollAttempts(phase string, attempts int) {
	if m == nil {
		return
	}
	m.pollAttempts.WithLabelValues(phase).Observe(float64(attempts))
}

// QueueDepth sets the gauge for a queue state
func (m *Metrics) QueueDepth(state string, n int64) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(state).Set(float64(n))
}
