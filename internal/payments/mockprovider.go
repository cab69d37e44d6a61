package payments

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nordkit/commerce-core/internal/domain"
)

// MockProvider is an in-memory Provider used by tests and local
// development, standing in for the full payment provider implementation
// that is explicitly out of scope for this core.
type MockProvider struct {
	mu      sync.Mutex
	intents map[string]Intent
}

func NewMockProvider() *MockProvider {
	return &MockProvider{intents: make(map[string]Intent)}
}

func (m *MockProvider) CreateIntent(ctx context.Context, amountCents int64, currency, idempotencyKey string) (Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent := Intent{ID: "pi_" + uuid.NewString(), Status: "requires_payment_method"}
	m.intents[intent.ID] = intent
	return intent, nil
}

func (m *MockProvider) GetIntent(ctx context.Context, intentID string) (Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intents[intentID], nil
}

func (m *MockProvider) VerifyWebhookSignature(payload []byte, signatureHeader, secret string) error {
	if signatureHeader != "mock-valid" {
		return domain.NewError(domain.KindInvalidSignature, "mock webhook signature invalid", nil)
	}
	return nil
}

// SetStatus lets tests push a provider-side status transition without a
// real webhook round trip.
func (m *MockProvider) SetStatus(intentID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent := m.intents[intentID]
	intent.Status = status
	m.intents[intentID] = intent
}
