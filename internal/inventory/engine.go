// Package inventory implements the reservation engine: two interchangeable
// concurrency-control strategies (optimistic CAS, pessimistic row lock)
// behind one contract, plus the deterministic strategy assigner and the
// expired-reservation sweep.
package inventory

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nordkit/commerce-core/internal/domain"
	"github.com/nordkit/commerce-core/internal/outbox"
	"github.com/nordkit/commerce-core/internal/store"
	"github.com/nordkit/commerce-core/internal/telemetry"
)

// Engine reserves, confirms, and releases stock through whichever strategy
// the assigner picks for a given reservation key.
type Engine struct {
	db        *store.DB
	repo      *store.InventoryRepo
	variants  *store.VariantRepo
	cache     *store.VariantCache
	writer    *outbox.Writer
	assigner  *Assigner
	metrics   *telemetry.InventoryMetrics
	log       *slog.Logger
	ttl       time.Duration
	casRetries int
}

func NewEngine(db *store.DB, repo *store.InventoryRepo, variants *store.VariantRepo, cache *store.VariantCache, writer *outbox.Writer, assigner *Assigner, metrics *telemetry.InventoryMetrics, log *slog.Logger, ttl time.Duration, casRetries int) *Engine {
	return &Engine{
		db: db, repo: repo, variants: variants, cache: cache, writer: writer,
		assigner: assigner, metrics: metrics, log: log, ttl: ttl, casRetries: casRetries,
	}
}

// Reserve holds qty units of variantID against orderID, picking a strategy
// deterministically from reservedBy. Returns a KindInsufficientStock error
// if stock can't cover qty.
func (e *Engine) Reserve(ctx context.Context, variantID, orderID string, qty int, reservedBy string) (*domain.InventoryReservation, error) {
	strategy := e.assigner.Assign(reservedBy)

	var res *domain.InventoryReservation
	var err error
	switch strategy {
	case domain.StrategyPessimistic:
		res, err = e.reservePessimistic(ctx, variantID, orderID, qty, reservedBy)
	default:
		res, err = e.reserveOptimistic(ctx, variantID, orderID, qty, reservedBy)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		e.metrics.InsufficientStock.WithLabelValues(string(strategy)).Inc()
		return nil, domain.NewError(domain.KindInsufficientStock, "insufficient stock for variant "+variantID, nil)
	}
	e.metrics.Reserved.WithLabelValues(string(strategy), "reserved").Inc()
	if e.cache != nil {
		e.cache.Invalidate(ctx, variantID)
	}
	return res, nil
}

func (e *Engine) reserveOptimistic(ctx context.Context, variantID, orderID string, qty int, reservedBy string) (*domain.InventoryReservation, error) {
	for attempt := 0; attempt < e.casRetries; attempt++ {
		version, err := e.repo.GetVariantVersion(ctx, variantID)
		if err != nil {
			return nil, err
		}

		var res *domain.InventoryReservation
		err = e.db.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			res, err = e.repo.ReserveOptimistic(ctx, tx, variantID, orderID, qty, version, reservedBy, e.ttl)
			if err != nil || res == nil {
				return err
			}
			return e.writer.Append(ctx, tx, res.ID, domain.EventInventoryReserved, "", "", res)
		})
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}

		v, err := e.variants.GetByID(ctx, variantID)
		if err != nil {
			return nil, err
		}
		if v.Available() < qty {
			return nil, nil
		}
		e.metrics.CASRetries.Inc()

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 10 * time.Millisecond
		bo.MaxInterval = 100 * time.Millisecond
		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, domain.NewError(domain.KindConflict, "optimistic reservation exhausted retries for variant "+variantID, nil)
}

func (e *Engine) reservePessimistic(ctx context.Context, variantID, orderID string, qty int, reservedBy string) (*domain.InventoryReservation, error) {
	var res *domain.InventoryReservation
	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = e.repo.ReservePessimistic(ctx, tx, variantID, orderID, qty, reservedBy, e.ttl)
		if err != nil || res == nil {
			return err
		}
		return e.writer.Append(ctx, tx, res.ID, domain.EventInventoryReserved, "", "", res)
	})
	return res, err
}

// Confirm converts a RESERVED hold into consumed stock.
func (e *Engine) Confirm(ctx context.Context, reservationID string) error {
	res, err := e.repo.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}
	err = e.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.repo.ConfirmReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		return e.writer.Append(ctx, tx, reservationID, domain.EventInventoryCommitted, "", "", res)
	})
	if err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.Invalidate(ctx, res.VariantID)
	}
	return nil
}

// Release returns a RESERVED hold's stock to availability without consuming it.
func (e *Engine) Release(ctx context.Context, reservationID string) error {
	res, err := e.repo.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}
	err = e.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.repo.ReleaseReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		return e.writer.Append(ctx, tx, reservationID, domain.EventInventoryReleased, "", "", res)
	})
	if err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.Invalidate(ctx, res.VariantID)
	}
	return nil
}

// SweepExpired releases any RESERVED reservation past its TTL, restoring
// stock and emitting inventory.expired.v1 for each one in the same
// transaction as its release. Intended to run on a periodic schedule
// (spec §4.6, boundary scenario S3).
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	ids, err := e.repo.ListExpired(ctx)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		var res *domain.InventoryReservation
		res, err = e.repo.GetByID(ctx, id)
		if err != nil {
			return swept, err
		}
		err = e.db.WithTx(ctx, func(tx *sql.Tx) error {
			if err := e.repo.ExpireOne(ctx, tx, id); err != nil {
				return err
			}
			return e.writer.Append(ctx, tx, id, domain.EventInventoryExpired, "", "", res)
		})
		if err != nil {
			if domain.IsKind(err, domain.KindNotFound) {
				continue
			}
			return swept, err
		}
		swept++
		if e.cache != nil {
			e.cache.Invalidate(ctx, res.VariantID)
		}
	}
	if swept > 0 {
		e.metrics.Expired.Add(float64(swept))
		e.log.Info("swept expired reservations", slog.Int("count", swept))
	}
	return swept, nil
}
