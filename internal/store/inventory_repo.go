package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nordkit/commerce-core/internal/domain"
)

// InventoryRepo implements the storage side of both reservation strategies
// against the product_variants / inventory_reservations tables.
type InventoryRepo struct {
	db *DB
}

func NewInventoryRepo(db *DB) *InventoryRepo {
	return &InventoryRepo{db: db}
}

// ReserveOptimistic attempts a version-column CAS: it increments
// reserved_quantity only if the row's version still matches expectedVersion
// and enough stock remains. RowsAffected()==0 means either a stale version
// (caller should retry) or insufficient stock (caller should check
// availability before deciding which).
func (r *InventoryRepo) ReserveOptimistic(ctx context.Context, tx *sql.Tx, variantID, orderID string, qty int, expectedVersion int64, reservedBy string, ttl time.Duration) (*domain.InventoryReservation, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE product_variants
		SET reserved_quantity = reserved_quantity + $1, version = version + 1
		WHERE id = $2 AND version = $3 AND (quantity - reserved_quantity) >= $1`,
		qty, variantID, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("reserve optimistic update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reserve optimistic rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return r.insertReservation(ctx, tx, variantID, orderID, qty, domain.StrategyOptimistic, reservedBy, ttl)
}

// ReservePessimistic row-locks the variant with SELECT ... FOR UPDATE before
// checking availability and committing the reservation, serializing
// concurrent reservers against the same variant.
func (r *InventoryRepo) ReservePessimistic(ctx context.Context, tx *sql.Tx, variantID, orderID string, qty int, reservedBy string, ttl time.Duration) (*domain.InventoryReservation, error) {
	var quantity, reserved int
	row := tx.QueryRowContext(ctx,
		`SELECT quantity, reserved_quantity FROM product_variants WHERE id = $1 FOR UPDATE`, variantID)
	if err := row.Scan(&quantity, &reserved); err != nil {
		return nil, fmt.Errorf("lock variant %s: %w", variantID, err)
	}
	if quantity-reserved < qty {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE product_variants SET reserved_quantity = reserved_quantity + $1, version = version + 1 WHERE id = $2`,
		qty, variantID); err != nil {
		return nil, fmt.Errorf("reserve pessimistic update: %w", err)
	}
	return r.insertReservation(ctx, tx, variantID, orderID, qty, domain.StrategyPessimistic, reservedBy, ttl)
}

func (r *InventoryRepo) insertReservation(ctx context.Context, tx *sql.Tx, variantID, orderID string, qty int, strategy domain.ReservationStrategy, reservedBy string, ttl time.Duration) (*domain.InventoryReservation, error) {
	now := time.Now().UTC()
	res := &domain.InventoryReservation{
		ID:         uuid.NewString(),
		VariantID:  variantID,
		OrderID:    orderID,
		Quantity:   qty,
		Status:     domain.ReservationReserved,
		Strategy:   strategy,
		ReservedBy: reservedBy,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_reservations
			(id, variant_id, order_id, quantity, status, strategy, reserved_by, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		res.ID, res.VariantID, res.OrderID, res.Quantity, res.Status, res.Strategy,
		res.ReservedBy, res.ExpiresAt, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	return res, nil
}

// GetVariantVersion reads the current version column, used by the
// optimistic strategy to retry with a fresh expectedVersion after a CAS miss.
func (r *InventoryRepo) GetVariantVersion(ctx context.Context, variantID string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM product_variants WHERE id = $1`, variantID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get variant version %s: %w", variantID, err)
	}
	return version, nil
}

// ConfirmReservation decrements both quantity and reserved_quantity on the
// variant (the stock is now actually consumed) and marks the reservation
// CONFIRMED.
func (r *InventoryRepo) ConfirmReservation(ctx context.Context, tx *sql.Tx, reservationID string) error {
	var variantID string
	var qty int
	row := tx.QueryRowContext(ctx,
		`SELECT variant_id, quantity FROM inventory_reservations WHERE id = $1 AND status = $2 FOR UPDATE`,
		reservationID, domain.ReservationReserved)
	if err := row.Scan(&variantID, &qty); err != nil {
		if err == sql.ErrNoRows {
			return domain.NewError(domain.KindNotFound, "reservation not found or not in RESERVED state", err)
		}
		return fmt.Errorf("lock reservation %s: %w", reservationID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE product_variants SET quantity = quantity - $1, reserved_quantity = reserved_quantity - $1, version = version + 1 WHERE id = $2`,
		qty, variantID); err != nil {
		return fmt.Errorf("confirm variant decrement: %w", err)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE inventory_reservations SET status = $1, updated_at = now() WHERE id = $2`,
		domain.ReservationConfirmed, reservationID)
	if err != nil {
		return fmt.Errorf("confirm reservation: %w", err)
	}
	return nil
}

// ReleaseReservation decrements reserved_quantity only, restoring the
// stock to availability, and marks the reservation RELEASED.
func (r *InventoryRepo) ReleaseReservation(ctx context.Context, tx *sql.Tx, reservationID string) error {
	return r.release(ctx, tx, reservationID, domain.ReservationReserved, domain.ReservationReleased)
}

func (r *InventoryRepo) release(ctx context.Context, tx *sql.Tx, reservationID string, fromStatus, toStatus domain.ReservationStatus) error {
	var variantID string
	var qty int
	row := tx.QueryRowContext(ctx,
		`SELECT variant_id, quantity FROM inventory_reservations WHERE id = $1 AND status = $2 FOR UPDATE`,
		reservationID, fromStatus)
	if err := row.Scan(&variantID, &qty); err != nil {
		if err == sql.ErrNoRows {
			return domain.NewError(domain.KindNotFound, "reservation not found or already resolved", err)
		}
		return fmt.Errorf("lock reservation %s: %w", reservationID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE product_variants SET reserved_quantity = reserved_quantity - $1, version = version + 1 WHERE id = $2`,
		qty, variantID); err != nil {
		return fmt.Errorf("release variant decrement: %w", err)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE inventory_reservations SET status = $1, updated_at = now() WHERE id = $2`,
		toStatus, reservationID)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}

// ListExpired returns the ids of RESERVED rows past their expires_at, for
// the caller to expire one at a time (each in its own transaction, so one
// event can be appended per expiry).
func (r *InventoryRepo) ListExpired(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM inventory_reservations WHERE status = $1 AND expires_at < now()`,
		domain.ReservationReserved)
	if err != nil {
		return nil, fmt.Errorf("select expired reservations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired reservation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExpireOne restores the reservation's stock and marks it EXPIRED within tx.
func (r *InventoryRepo) ExpireOne(ctx context.Context, tx *sql.Tx, reservationID string) error {
	return r.release(ctx, tx, reservationID, domain.ReservationReserved, domain.ReservationExpired)
}

// GetByID loads a single reservation.
func (r *InventoryRepo) GetByID(ctx context.Context, id string) (*domain.InventoryReservation, error) {
	var res domain.InventoryReservation
	err := r.db.QueryRowContext(ctx, `
		SELECT id, variant_id, order_id, quantity, status, strategy, reserved_by, expires_at, created_at, updated_at
		FROM inventory_reservations WHERE id = $1`, id).Scan(
		&res.ID, &res.VariantID, &res.OrderID, &res.Quantity, &res.Status, &res.Strategy,
		&res.ReservedBy, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewError(domain.KindNotFound, "reservation not found", err)
		}
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	return &res, nil
}
