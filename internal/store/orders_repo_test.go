package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nordkit/commerce-core/internal/domain"
)

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{mockDB}
	repo := NewOrderRepo(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"status"}).AddRow(domain.OrderCancelled)
	mock.ExpectQuery("SELECT status FROM orders").
		WithArgs("order-1").
		WillReturnRows(rows)
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, "order-1", domain.OrderPaid)
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidTransition))

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusAllowsLegalTransition(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{mockDB}
	repo := NewOrderRepo(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"status"}).AddRow(domain.OrderCreated)
	mock.ExpectQuery("SELECT status FROM orders").
		WithArgs("order-1").
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(domain.OrderPaid, "order-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(context.Background(), tx, "order-1", domain.OrderPaid))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIdempotencyKeyReturnsNilWhenAbsent(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{mockDB}
	repo := NewOrderRepo(db)

	mock.ExpectQuery("SELECT id FROM orders WHERE idempotency_key").
		WithArgs("unknown-key").
		WillReturnError(sql.ErrNoRows)

	order, err := repo.GetByIdempotencyKey(context.Background(), "unknown-key")
	require.NoError(t, err)
	require.Nil(t, order)
	require.NoError(t, mock.ExpectationsWereMet())
}
