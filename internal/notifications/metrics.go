package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authorshaven"

var (
	notificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Total in-app notification records created",
		},
		[]string{"event_kind"},
	)

	fanoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "fanout_failures_total",
			Help:      "Per-recipient persistence failures during fan-out",
		},
		[]string{"event_kind"},
	)

	mailQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "queue_size",
			Help:      "Number of mail queue items by status",
		},
		[]string{"status"},
	)

	mailProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "processed_total",
			Help:      "Total mail queue items processed by outcome",
		},
		[]string{"status"},
	)

	mailSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "send_duration_seconds",
			Help:      "Time to send one batched email",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// recordNotificationCreated records a persisted in-app notification.
func recordNotificationCreated(eventKind string) {
	notificationsCreated.WithLabelValues(eventKind).Inc()
}

// recordFanoutFailure records a per-recipient persistence failure.
func recordFanoutFailure(eventKind string) {
	fanoutFailures.WithLabelValues(eventKind).Inc()
}

// recordMailProcessed records a processed mail queue item.
func recordMailProcessed(status string) {
	mailProcessed.WithLabelValues(status).Inc()
}

// recordMailSendDuration records one batched send duration.
func recordMailSendDuration(duration time.Duration) {
	mailSendDuration.Observe(duration.Seconds())
}

// RecordQueueStats updates mail queue size metrics.
func RecordQueueStats(stats *QueueStats) {
	mailQueueSize.WithLabelValues("pending").Set(float64(stats.Pending))
	mailQueueSize.WithLabelValues("processing").Set(float64(stats.Processing))
	mailQueueSize.WithLabelValues("sent").Set(float64(stats.Sent))
	mailQueueSize.WithLabelValues("failed").Set(float64(stats.Failed))
}
