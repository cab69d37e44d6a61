package outbox

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/nordkit/commerce-core/internal/domain"
	"github.com/nordkit/commerce-core/internal/store"
)

// Writer appends domain events to the outbox table from within a caller's
// transaction, so the event row and the business mutation it describes
// commit atomically.
type Writer struct {
	repo   *store.OutboxRepo
	source string
	topic  string
	maxAttempts int
}

func NewWriter(repo *store.OutboxRepo, source, topic string, maxAttempts int) *Writer {
	return &Writer{repo: repo, source: source, topic: topic, maxAttempts: maxAttempts}
}

// Append marshals payload into an envelope of eventType and writes it to
// the outbox within tx.
func (w *Writer) Append(ctx context.Context, tx *sql.Tx, aggregateID, eventType, traceID, requestID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := domain.NewEnvelope(eventType, w.source, traceID, requestID, raw)
	return w.repo.Append(ctx, tx, aggregateID, w.topic, env, w.maxAttempts)
}
