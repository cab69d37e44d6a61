// Package store holds the Postgres-backed repositories for orders,
// inventory, payments, and the outbox, plus the Redis cache-aside layer in
// front of product variants.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DB wraps a *sql.DB and the transaction helper every repository uses to
// satisfy spec §4.1's single-transaction requirement.
type DB struct {
	*sql.DB
}

// Open connects to Postgres using the lib/pq driver.
func Open(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{sqlDB}, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Every operation that must write an outbox row
// alongside a business mutation goes through this helper so both land in
// the same commit.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
