package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nordkit/commerce-core/internal/domain"
)

// OutboxRepo is the outbox table repository, shared by every writer that
// appends an event and by the publisher that drains it.
type OutboxRepo struct {
	db *DB
}

func NewOutboxRepo(db *DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// Append writes a PENDING outbox row within tx, in the same transaction as
// the business mutation it describes (spec §4.1).
func (r *OutboxRepo) Append(ctx context.Context, tx *sql.Tx, aggregateID, topic string, env domain.Envelope, maxAttempts int) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_id, topic, event_type, payload, status, attempts, max_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)`,
		uuid.NewString(), aggregateID, topic, env.EventType, payload, domain.OutboxPending, maxAttempts, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	return nil
}

// ClaimBatch locks up to n PENDING rows (ordered oldest first) for
// publishing, skipping rows already locked by a concurrent publisher.
func (r *OutboxRepo) ClaimBatch(ctx context.Context, tx *sql.Tx, n int) ([]domain.OutboxRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, topic, event_type, payload, status, attempts, max_attempts, created_at
		FROM outbox
		WHERE status = $1
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT $2`, domain.OutboxPending, n)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxRecord
	for rows.Next() {
		var rec domain.OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.AggregateID, &rec.Topic, &rec.EventType, &rec.Payload,
			&rec.Status, &rec.Attempts, &rec.MaxAttempts, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkPublished flips a row to PUBLISHED.
func (r *OutboxRepo) MarkPublished(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE outbox SET status = $1, published_at = now() WHERE id = $2`, domain.OutboxPublished, id)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// MarkFailed increments attempts and records the error. If attempts now
// reaches max_attempts the row moves to DEAD_LETTER instead of staying
// PENDING for another poll.
func (r *OutboxRepo) MarkFailed(ctx context.Context, tx *sql.Tx, rec domain.OutboxRecord, publishErr error) error {
	attempts := rec.Attempts + 1
	status := domain.OutboxPending
	if attempts >= rec.MaxAttempts {
		status = domain.OutboxDeadLetter
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE outbox SET status = $1, attempts = $2, last_error = $3 WHERE id = $4`,
		status, attempts, publishErr.Error(), rec.ID)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

// CountPending returns the current backlog size, used by the monitoring
// poller and the backlog gauge.
func (r *OutboxRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM outbox WHERE status = $1`, domain.OutboxPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox rows: %w", err)
	}
	return n, nil
}

// ListDeadLetter returns DEAD_LETTER rows for the DLQ handler.
func (r *OutboxRepo) ListDeadLetter(ctx context.Context, limit int) ([]domain.OutboxRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, topic, event_type, payload, status, attempts, max_attempts, created_at
		FROM outbox WHERE status = $1 ORDER BY created_at LIMIT $2`, domain.OutboxDeadLetter, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letter rows: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxRecord
	for rows.Next() {
		var rec domain.OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.AggregateID, &rec.Topic, &rec.EventType, &rec.Payload,
			&rec.Status, &rec.Attempts, &rec.MaxAttempts, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Requeue resets a DEAD_LETTER row back to PENDING with a fresh attempt
// budget, for manual DLQ replay.
func (r *OutboxRepo) Requeue(ctx context.Context, id string, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = $1, attempts = 0, max_attempts = $2, last_error = '' WHERE id = $3`,
		domain.OutboxPending, maxAttempts, id)
	if err != nil {
		return fmt.Errorf("requeue outbox row %s: %w", id, err)
	}
	return nil
}
