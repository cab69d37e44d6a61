package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nordkit/commerce-core/internal/domain"
)

// OrderRepo is the orders / order_items table repository.
type OrderRepo struct {
	db *DB
}

func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// GetByIdempotencyKey supports the order-creation at-most-one-success
// check: a repeat request with a known key returns the existing order
// instead of creating a duplicate. An empty key is not a real idempotency
// key (it is optional per spec §3) and never matches.
func (r *OrderRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	if key == "" {
		return nil, nil
	}
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE idempotency_key = $1`, key).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var idempotencyKey sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, customer_id, status, total_cents, currency, created_at, updated_at
		FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &idempotencyKey, &o.CustomerID, &o.Status, &o.TotalCents, &o.Currency, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewError(domain.KindNotFound, "order not found", err)
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	o.IdempotencyKey = idempotencyKey.String

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, variant_id, quantity, unit_price_cents, reservation_id FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get order items %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.Quantity, &it.UnitPriceCent, &it.ReservationID); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

// Create inserts the order and its items within tx, alongside whatever
// outbox row the caller also writes in the same transaction.
func (r *OrderRepo) Create(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	now := time.Now().UTC()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt, o.UpdatedAt = now, now
	o.Status = domain.OrderCreated
	o.TotalCents = o.Total()

	var idempotencyKey sql.NullString
	if o.IdempotencyKey != "" {
		idempotencyKey = sql.NullString{String: o.IdempotencyKey, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, idempotency_key, customer_id, status, total_cents, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, idempotencyKey, o.CustomerID, o.Status, o.TotalCents, o.Currency, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.ID = uuid.NewString()
		it.OrderID = o.ID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, variant_id, quantity, unit_price_cents, reservation_id)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, it.OrderID, it.VariantID, it.Quantity, it.UnitPriceCent, it.ReservationID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

// UpdateStatus enforces the transition table before writing the new
// status, returning a KindInvalidTransition error on an illegal move.
func (r *OrderRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, orderID string, to domain.OrderStatus) error {
	var current domain.OrderStatus
	row := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if err := row.Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return domain.NewError(domain.KindNotFound, "order not found", err)
		}
		return fmt.Errorf("lock order %s: %w", orderID, err)
	}
	if !domain.CanTransition(current, to) {
		return domain.NewError(domain.KindInvalidTransition,
			fmt.Sprintf("cannot transition order from %s to %s", current, to), nil)
	}
	_, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, to, orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}
