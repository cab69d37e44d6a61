package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nordkit/commerce-core/internal/domain"
)

// PaymentRepo is the payments table repository.
type PaymentRepo struct {
	db *DB
}

func NewPaymentRepo(db *DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// ListPending returns payments not yet in a terminal status, for the
// reconciliation job to check against the provider.
func (r *PaymentRepo) ListPending(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM payments WHERE status NOT IN ($1, $2, $3) ORDER BY created_at LIMIT $4`,
		domain.PaymentSucceeded, domain.PaymentFailed, domain.PaymentRefunded, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending payment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PaymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM payments WHERE idempotency_key = $1`, key).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup payment idempotency key: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	var webhookIDs pq.StringArray
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, idempotency_key, provider_intent, status, amount_cents, currency, webhook_event_ids, created_at, updated_at
		FROM payments WHERE id = $1`, id).Scan(
		&p.ID, &p.OrderID, &p.IdempotencyKey, &p.ProviderIntent, &p.Status, &p.AmountCents, &p.Currency,
		&webhookIDs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewError(domain.KindNotFound, "payment not found", err)
		}
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	p.WebhookEventIDs = []string(webhookIDs)
	return &p, nil
}

func (r *PaymentRepo) Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	p.Status = domain.PaymentPending

	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, idempotency_key, provider_intent, status, amount_cents, currency, webhook_event_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.OrderID, p.IdempotencyKey, p.ProviderIntent, p.Status, p.AmountCents, p.Currency,
		pq.StringArray(p.WebhookEventIDs), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// ApplyWebhook atomically records eventID against the payment (for
// single-use idempotency) and updates status, failing with KindConflict
// if eventID was already recorded.
func (r *PaymentRepo) ApplyWebhook(ctx context.Context, tx *sql.Tx, paymentID, eventID string, newStatus domain.PaymentStatus) error {
	var webhookIDs pq.StringArray
	row := tx.QueryRowContext(ctx, `SELECT webhook_event_ids FROM payments WHERE id = $1 FOR UPDATE`, paymentID)
	if err := row.Scan(&webhookIDs); err != nil {
		if err == sql.ErrNoRows {
			return domain.NewError(domain.KindNotFound, "payment not found", err)
		}
		return fmt.Errorf("lock payment %s: %w", paymentID, err)
	}
	for _, id := range webhookIDs {
		if id == eventID {
			return domain.NewError(domain.KindConflict, "webhook event already applied", nil)
		}
	}
	webhookIDs = append(webhookIDs, eventID)

	_, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, webhook_event_ids = $2, updated_at = now() WHERE id = $3`,
		newStatus, webhookIDs, paymentID)
	if err != nil {
		return fmt.Errorf("apply webhook: %w", err)
	}
	return nil
}
