package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/nordkit/commerce-core/internal/queue"
	"github.com/nordkit/commerce-core/internal/store"
	"github.com/nordkit/commerce-core/internal/telemetry"
)

// HealthState is the aggregate system health reported by Monitor (spec §4.11).
type HealthState int

const (
	HealthHealthy HealthState = iota
	HealthDegraded
	HealthUnhealthy
)

// Monitor periodically polls queue depths and the outbox backlog, derives
// an aggregate health state, and exposes it as a gauge.
type Monitor struct {
	outbox       *store.OutboxRepo
	dlq          *queue.DLQHandler
	queues       []string
	metrics      *telemetry.QueueMetrics
	log          *slog.Logger
	interval     time.Duration
	warnFailed   int
	warnDelayed  int
	warnWaiting  int
}

func NewMonitor(outbox *store.OutboxRepo, dlq *queue.DLQHandler, queues []string, metrics *telemetry.QueueMetrics, log *slog.Logger, interval time.Duration, warnWaiting, warnFailed, warnDelayed int) *Monitor {
	return &Monitor{
		outbox: outbox, dlq: dlq, queues: queues, metrics: metrics, log: log, interval: interval,
		warnWaiting: warnWaiting, warnFailed: warnFailed, warnDelayed: warnDelayed,
	}
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopping")
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *Monitor) pollOnce(ctx context.Context) {
	health := HealthHealthy

	backlog, err := m.outbox.CountPending(ctx)
	if err != nil {
		m.log.Warn("monitor outbox backlog check failed", slog.Any("error", err))
		health = HealthDegraded
	} else if backlog > m.warnWaiting {
		health = HealthDegraded
	}

	for _, q := range m.queues {
		failedCount, err := m.dlq.Count(q)
		if err != nil {
			m.log.Warn("monitor dlq count failed", slog.String("queue", q), slog.Any("error", err))
			health = HealthDegraded
			continue
		}
		m.metrics.Failed.WithLabelValues(q).Set(float64(failedCount))
		if failedCount > m.warnFailed {
			health = HealthUnhealthy
		}
	}

	m.metrics.HealthState.Set(float64(health))
	if health != HealthHealthy {
		m.log.Warn("system health degraded", slog.Int("state", int(health)), slog.Int("outbox_backlog", backlog))
	}
}
