package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.WebhookReceived("invoice.paid", "accepted")
	m.WebhookReceived("invoice.paid", "accepted")
	m.WebhookReceived("", "rejected")
	m.JobProcessed("invoice.paid", OutcomeCompleted, 20*time.Millisecond)
	m.JobProcessed("invoice.paid", OutcomeRetried, time.Second)
	m.PollAttempts("transaction_hash", 3)
	m.QueueDepth("waiting", 7)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.webhookEvents.WithLabelValues("invoice.paid", "accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.webhookEvents.WithLabelValues("unknown", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsProcessed.WithLabelValues("invoice.paid", OutcomeCompleted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsProcessed.WithLabelValues("invoice.paid", OutcomeRetried)))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.queueDepth.WithLabelValues("waiting")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.jobDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.pollAttempts))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.WebhookReceived("x", "y")
		m.JobProcessed("x", OutcomeDead, time.Second)
		m.PollAttempts("token_id", 1)
		m.QueueDepth("failed", 1)
	})
}
