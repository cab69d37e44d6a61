package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nordkit/commerce-core/internal/domain"
)

func TestOutboxAppendWritesPendingRow(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{mockDB}
	repo := NewOutboxRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	env := domain.NewEnvelope(domain.EventOrderCreated, "commerce-core", "", "", json.RawMessage(`{}`))
	require.NoError(t, repo.Append(context.Background(), tx, "order-1", "domain-events", env, 5))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarkFailedMovesToDeadLetterAtMaxAttempts(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{mockDB}
	repo := NewOutboxRepo(db)

	rec := domain.OutboxRecord{ID: "row-1", Attempts: 4, MaxAttempts: 5}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE outbox SET status").
		WithArgs(domain.OutboxDeadLetter, 5, "publish failed", "row-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(context.Background(), tx, rec, errors.New("publish failed")))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarkFailedStaysPendingBelowMaxAttempts(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &DB{mockDB}
	repo := NewOutboxRepo(db)

	rec := domain.OutboxRecord{ID: "row-1", Attempts: 1, MaxAttempts: 5}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE outbox SET status").
		WithArgs(domain.OutboxPending, 2, "transient failure", "row-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(context.Background(), tx, rec, errors.New("transient failure")))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
