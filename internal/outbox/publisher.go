// Package outbox implements the transactional outbox publisher: a polling
// loop that claims PENDING rows, publishes them to the stream broker, and
// resolves each row to PUBLISHED or, after max_attempts, DEAD_LETTER.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nordkit/commerce-core/internal/broker"
	"github.com/nordkit/commerce-core/internal/domain"
	"github.com/nordkit/commerce-core/internal/store"
	"github.com/nordkit/commerce-core/internal/telemetry"
)

// Publisher drains the outbox table on a fixed interval.
type Publisher struct {
	db        *store.DB
	repo      *store.OutboxRepo
	sb        *broker.StreamBroker
	log       *slog.Logger
	metrics   *telemetry.OutboxMetrics
	interval  time.Duration
	batchSize int
}

func NewPublisher(db *store.DB, repo *store.OutboxRepo, sb *broker.StreamBroker, log *slog.Logger, metrics *telemetry.OutboxMetrics, interval time.Duration, batchSize int) *Publisher {
	return &Publisher{
		db:        db,
		repo:      repo,
		sb:        sb,
		log:       log,
		metrics:   metrics,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("outbox publisher stopping")
			return
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil {
				p.log.Error("outbox poll cycle failed", slog.Any("error", err))
			}
		}
	}
}

// PollOnce claims and publishes one batch, publishing the claimed rows
// concurrently. It is exported so callers outside Run, such as tests, can
// trigger an out-of-band cycle.
func (p *Publisher) PollOnce(ctx context.Context) error {
	start := time.Now()
	defer func() { p.metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	if backlog, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.BacklogGauge.Set(float64(backlog))
	}

	var claimed []domain.OutboxRecord
	err := p.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		claimed, err = p.repo.ClaimBatch(ctx, tx, p.batchSize)
		return err
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, rec := range claimed {
		wg.Add(1)
		go func(rec domain.OutboxRecord) {
			defer wg.Done()
			p.publishOne(ctx, rec)
		}(rec)
	}
	wg.Wait()
	return nil
}

func (p *Publisher) publishOne(ctx context.Context, rec domain.OutboxRecord) {
	var env domain.Envelope
	if err := json.Unmarshal(rec.Payload, &env); err != nil {
		p.log.Error("outbox row payload decode failed", slog.String("id", rec.ID), slog.Any("error", err))
		p.resolveFailed(ctx, rec, err)
		return
	}

	if _, err := p.sb.Publish(ctx, rec.Topic, env); err != nil {
		p.log.Warn("outbox publish failed", slog.String("id", rec.ID), slog.String("topic", rec.Topic), slog.Any("error", err))
		p.resolveFailed(ctx, rec, err)
		return
	}

	err := p.db.WithTx(ctx, func(tx *sql.Tx) error {
		return p.repo.MarkPublished(ctx, tx, rec.ID)
	})
	if err != nil {
		p.log.Error("outbox mark published failed", slog.String("id", rec.ID), slog.Any("error", err))
		return
	}
	p.metrics.RowsPublished.Inc()
}

func (p *Publisher) resolveFailed(ctx context.Context, rec domain.OutboxRecord, cause error) {
	err := p.db.WithTx(ctx, func(tx *sql.Tx) error {
		return p.repo.MarkFailed(ctx, tx, rec, cause)
	})
	if err != nil {
		p.log.Error("outbox mark failed failed", slog.String("id", rec.ID), slog.Any("error", err))
		return
	}
	if rec.Attempts+1 >= rec.MaxAttempts {
		p.metrics.RowsDLQ.Inc()
	} else {
		p.metrics.RowsFailed.Inc()
	}
}
