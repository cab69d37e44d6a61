package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire format for every domain event published through the
// outbox (spec §6.1). It is UTF-8 JSON on the stream broker.
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	TraceID   string          `json:"trace_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Meta      json.RawMessage `json:"meta,omitempty"`
}

// Event type strings named by spec §6.2's catalog (<domain>.<action>.vN).
const (
	EventOrderCreated       = "order.created.v1"
	EventOrderUpdated       = "order.updated.v1"
	EventOrderPaid          = "order.paid.v1"
	EventInventoryReserved  = "inventory.reserved.v1"
	EventInventoryReleased  = "inventory.released.v1"
	EventInventoryCommitted = "inventory.committed.v1"
	EventInventoryExpired   = "inventory.expired.v1"
	EventPaymentCreated     = "payment.created.v1"
	EventPaymentSucceeded   = "payment.succeeded.v1"
	EventPaymentFailed      = "payment.failed.v1"
	EventPaymentRefunded    = "payment.refunded.v1"
	EventPaymentReconciled  = "payment.reconciled.v1"
	EventSearchIndexed      = "search.indexed.v1"
	EventSearchDeleted      = "search.deleted.v1"
)

// NewEnvelope builds an envelope with a fresh event ID and the current
// timestamp, ready to be marshaled into an outbox row's payload column.
func NewEnvelope(eventType, source string, traceID, requestID string, payload json.RawMessage) Envelope {
	return Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		TraceID:   traceID,
		RequestID: requestID,
		Payload:   payload,
	}
}
