package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nordkit/commerce-core/internal/domain"
)

// VariantRepo is the product_variants table repository.
type VariantRepo struct {
	db *DB
}

func NewVariantRepo(db *DB) *VariantRepo {
	return &VariantRepo{db: db}
}

func (r *VariantRepo) GetByID(ctx context.Context, id string) (*domain.ProductVariant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, sku, quantity, reserved_quantity, version FROM product_variants WHERE id = $1`, id)

	var v domain.ProductVariant
	if err := row.Scan(&v.ID, &v.SKU, &v.Quantity, &v.ReservedQuantity, &v.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "product variant not found", err)
		}
		return nil, fmt.Errorf("get variant %s: %w", id, err)
	}
	return &v, nil
}

// GetByIDs batches a lookup for multiple variants, mirroring the
// pq.Array(ids) pattern used for multi-item stock checks.
func (r *VariantRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.ProductVariant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sku, quantity, reserved_quantity, version FROM product_variants WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get variants: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductVariant
	for rows.Next() {
		var v domain.ProductVariant
		if err := rows.Scan(&v.ID, &v.SKU, &v.Quantity, &v.ReservedQuantity, &v.Version); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
