package domain

import (
	"encoding/json"
	"time"
)

// OutboxStatus tracks a row through the publisher's poll/publish/DLQ cycle.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxPublished OutboxStatus = "PUBLISHED"
	OutboxDeadLetter OutboxStatus = "DEAD_LETTER"
)

// OutboxRecord is a row in the outbox table, written in the same
// transaction as the business mutation it describes (spec §4.1, §4.4).
type OutboxRecord struct {
	ID           string
	AggregateID  string
	Topic        string
	EventType    string
	Payload      json.RawMessage
	Status       OutboxStatus
	Attempts     int
	MaxAttempts  int
	LastError    string
	CreatedAt    time.Time
	PublishedAt  *time.Time
}
