package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nordkit/commerce-core/internal/domain"
)

func TestReserveOptimisticSucceedsOnVersionMatch(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{mockDB}
	repo := NewInventoryRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE product_variants").
		WithArgs(2, "variant-1", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO inventory_reservations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	res, err := repo.ReserveOptimistic(context.Background(), tx, "variant-1", "order-1", 2, 5, "customer-1", 15*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, domain.ReservationReserved, res.Status)
	require.Equal(t, domain.StrategyOptimistic, res.Strategy)

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveOptimisticReturnsNilOnCASMiss(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{mockDB}
	repo := NewInventoryRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE product_variants").
		WithArgs(2, "variant-1", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	res, err := repo.ReserveOptimistic(context.Background(), tx, "variant-1", "order-1", 2, 5, "customer-1", 15*time.Minute)
	require.NoError(t, err)
	require.Nil(t, res, "zero rows affected must signal caller to retry or reject, not error")

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservePessimisticRejectsInsufficientStock(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{mockDB}
	repo := NewInventoryRepo(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"quantity", "reserved_quantity"}).AddRow(3, 2)
	mock.ExpectQuery("SELECT quantity, reserved_quantity FROM product_variants").
		WithArgs("variant-1").
		WillReturnRows(rows)
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	res, err := repo.ReservePessimistic(context.Background(), tx, "variant-1", "order-1", 5, "customer-1", 15*time.Minute)
	require.NoError(t, err)
	require.Nil(t, res, "available stock (1) is below requested quantity (5)")

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
