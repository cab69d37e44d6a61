// Package payments coordinates payment intents against a mocked provider
// contract, webhook idempotency, and reconciliation.
package payments

import "context"

// Intent is the provider-side representation of a payment attempt.
type Intent struct {
	ID     string
	Status string // provider-native status string, mapped by the coordinator
}

// Provider is the contract a payment provider integration must satisfy.
// The full provider implementation (card networks, settlement, etc.) is
// out of scope; this core only needs intent creation, lookup, and webhook
// signature verification.
type Provider interface {
	CreateIntent(ctx context.Context, amountCents int64, currency, idempotencyKey string) (Intent, error)
	GetIntent(ctx context.Context, intentID string) (Intent, error)
	VerifyWebhookSignature(payload []byte, signatureHeader, secret string) error
}
