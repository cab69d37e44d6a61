package domain

import "time"

// PaymentStatus is the lifecycle state of a Payment (spec §2).
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Payment tracks a provider-backed payment intent against an order.
type Payment struct {
	ID              string
	OrderID         string
	IdempotencyKey  string
	ProviderIntent  string
	Status          PaymentStatus
	AmountCents     int64
	Currency        string
	WebhookEventIDs []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasSeenWebhook reports whether eventID has already been applied, for
// single-use webhook idempotency enforcement.
func (p *Payment) HasSeenWebhook(eventID string) bool {
	for _, id := range p.WebhookEventIDs {
		if id == eventID {
			return true
		}
	}
	return false
}
