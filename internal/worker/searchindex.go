// Package worker hosts the background worker plane: search indexing,
// webhook retry, the outbox-consumer, and the monitoring poller.
package worker

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/nordkit/commerce-core/internal/broker"
	"github.com/nordkit/commerce-core/internal/domain"
	"github.com/nordkit/commerce-core/internal/outbox"
	"github.com/nordkit/commerce-core/internal/searchindex"
	"github.com/nordkit/commerce-core/internal/store"
)

// SearchIndexWorker consumes catalog change events from the stream broker
// and projects them into the search index, bounded by a concurrency cap
// and a rate limit (spec §4.9, §4.10, §5). Each event carries an action of
// index, delete, or reindex (delete then index).
type SearchIndexWorker struct {
	sb       *broker.StreamBroker
	variants *store.VariantRepo
	indexer  searchindex.Indexer
	db       *store.DB
	writer   *outbox.Writer
	log      *slog.Logger
	limiter  *rate.Limiter
	sem      chan struct{}
	topic    string
	group    string
	consumer string
}

func NewSearchIndexWorker(sb *broker.StreamBroker, variants *store.VariantRepo, indexer searchindex.Indexer, db *store.DB, writer *outbox.Writer, log *slog.Logger, concurrency, ratePerSec int, topic, group, consumer string) *SearchIndexWorker {
	return &SearchIndexWorker{
		sb:       sb,
		variants: variants,
		indexer:  indexer,
		db:       db,
		writer:   writer,
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		sem:      make(chan struct{}, concurrency),
		topic:    topic,
		group:    group,
		consumer: consumer,
	}
}

// Run reads from the consumer group until ctx is cancelled.
func (w *SearchIndexWorker) Run(ctx context.Context) {
	if err := w.sb.EnsureGroup(ctx, w.topic, w.group); err != nil {
		w.log.Error("search index worker failed to ensure consumer group", slog.Any("error", err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info("search index worker stopping")
			return
		default:
		}

		msgs, err := w.sb.Read(ctx, w.topic, w.group, w.consumer, 10, 2*time.Second)
		if err != nil {
			w.log.Warn("search index worker read failed", slog.Any("error", err))
			continue
		}
		for _, msg := range msgs {
			w.sem <- struct{}{}
			go func(m broker.Message) {
				defer func() { <-w.sem }()
				w.handle(ctx, m)
			}(msg)
		}
	}
}

// searchJobPayload is the {productId, action} contract spec §4.9 describes,
// action one of index, delete, reindex (delete then index). productId
// carries the ID of the product variant to index.
type searchJobPayload struct {
	VariantID string `json:"productId"`
	Action    string `json:"action"`
}

func (w *SearchIndexWorker) handle(ctx context.Context, msg broker.Message) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	var payload searchJobPayload
	if err := decodePayload(msg.Envelope, &payload); err != nil {
		w.log.Error("search index worker decode failed", slog.String("event_id", msg.Envelope.EventID), slog.Any("error", err))
		return
	}

	var err error
	switch payload.Action {
	case "delete":
		err = w.remove(ctx, payload.VariantID)
	case "reindex":
		if err = w.remove(ctx, payload.VariantID); err == nil {
			err = w.index(ctx, payload.VariantID)
		}
	default:
		err = w.index(ctx, payload.VariantID)
	}
	if err != nil {
		w.log.Error("search index worker action failed",
			slog.String("variant_id", payload.VariantID), slog.String("action", payload.Action), slog.Any("error", err))
		return
	}

	if err := w.sb.Ack(ctx, w.topic, w.group, msg.ID); err != nil {
		w.log.Error("search index worker ack failed", slog.String("id", msg.ID), slog.Any("error", err))
	}
}

func (w *SearchIndexWorker) index(ctx context.Context, variantID string) error {
	variant, err := w.variants.GetByID(ctx, variantID)
	if err != nil {
		return err
	}
	doc := searchindex.Document{VariantID: variant.ID, SKU: variant.SKU, Available: variant.Available()}
	if err := w.indexer.Index(ctx, doc); err != nil {
		return err
	}
	return w.db.WithTx(ctx, func(tx *sql.Tx) error {
		return w.writer.Append(ctx, tx, variantID, domain.EventSearchIndexed, "", "", doc)
	})
}

func (w *SearchIndexWorker) remove(ctx context.Context, variantID string) error {
	if err := w.indexer.Remove(ctx, variantID); err != nil {
		return err
	}
	return w.db.WithTx(ctx, func(tx *sql.Tx) error {
		return w.writer.Append(ctx, tx, variantID, domain.EventSearchDeleted, "", "", map[string]string{"variant_id": variantID})
	})
}
