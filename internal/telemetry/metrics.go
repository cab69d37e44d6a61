package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OutboxMetrics tracks the publisher loop (spec §4.4, §8 invariant 6).
type OutboxMetrics struct {
	RowsPublished  prometheus.Counter
	RowsFailed     prometheus.Counter
	RowsDLQ        prometheus.Counter
	BatchDuration  prometheus.Histogram
	BacklogGauge   prometheus.Gauge
}

func NewOutboxMetrics() *OutboxMetrics {
	return &OutboxMetrics{
		RowsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outbox_rows_published_total",
			Help: "Outbox rows successfully published to the stream broker.",
		}),
		RowsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outbox_rows_failed_total",
			Help: "Outbox rows that failed to publish and were unlocked for retry.",
		}),
		RowsDLQ: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outbox_rows_dlq_total",
			Help: "Outbox rows that reached max_attempts without being sent.",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_batch_duration_seconds",
			Help:    "Duration of one publisher poll-and-publish cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		BacklogGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_backlog_rows",
			Help: "Unsent outbox rows observed on the last poll.",
		}),
	}
}

// InventoryMetrics tracks reservation operations (spec §4.6).
type InventoryMetrics struct {
	Reserved         *prometheus.CounterVec
	InsufficientStock *prometheus.CounterVec
	CASRetries       prometheus.Counter
	Expired          prometheus.Counter
}

func NewInventoryMetrics() *InventoryMetrics {
	return &InventoryMetrics{
		Reserved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_reservations_total",
			Help: "Reservation attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		InsufficientStock: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_insufficient_stock_total",
			Help: "Reservation attempts rejected for insufficient stock, by strategy.",
		}, []string{"strategy"}),
		CASRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inventory_optimistic_cas_retries_total",
			Help: "Optimistic-strategy CAS retries across all reservations.",
		}),
		Expired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inventory_reservations_expired_total",
			Help: "Reservations swept to EXPIRED.",
		}),
	}
}

// PaymentMetrics tracks the payment coordinator (spec §4.7).
type PaymentMetrics struct {
	Created     prometheus.Counter
	Succeeded   prometheus.Counter
	Failed      prometheus.Counter
	WebhookDups prometheus.Counter
	Reconciled  prometheus.Counter
}

func NewPaymentMetrics() *PaymentMetrics {
	return &PaymentMetrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Payments created.",
		}),
		Succeeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payments_succeeded_total",
			Help: "Payments marked SUCCEEDED.",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payments_failed_total",
			Help: "Payments marked FAILED.",
		}),
		WebhookDups: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payments_webhook_duplicates_total",
			Help: "Webhook deliveries recognized as replays of a known webhook_event_id.",
		}),
		Reconciled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payments_reconciled_total",
			Help: "Reconciliation jobs that found and corrected a status drift.",
		}),
	}
}

// QueueMetrics tracks TQ/worker-plane health (spec §4.11).
type QueueMetrics struct {
	Waiting *prometheus.GaugeVec
	Active  *prometheus.GaugeVec
	Failed  *prometheus.GaugeVec
	Delayed *prometheus.GaugeVec
	HealthState prometheus.Gauge
}

func NewQueueMetrics() *QueueMetrics {
	return &QueueMetrics{
		Waiting: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_waiting_jobs",
			Help: "Jobs waiting per queue.",
		}, []string{"queue"}),
		Active: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_active_jobs",
			Help: "Jobs active per queue.",
		}, []string{"queue"}),
		Failed: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_failed_jobs",
			Help: "Jobs failed (DLQ) per queue.",
		}, []string{"queue"}),
		Delayed: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_delayed_jobs",
			Help: "Jobs delayed per queue.",
		}, []string{"queue"}),
		HealthState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "system_health_state",
			Help: "0=healthy 1=degraded 2=unhealthy aggregate system health.",
		}),
	}
}
