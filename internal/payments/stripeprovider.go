package payments

import (
	"context"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/paymentintent"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/nordkit/commerce-core/internal/domain"
)

// StripeProvider implements Provider against the Stripe PaymentIntents API.
type StripeProvider struct{}

func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, amountCents int64, currency, idempotencyKey string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	params.IdempotencyKey = stripe.String(idempotencyKey)
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, domain.NewError(domain.KindTransientUpstream, "stripe create payment intent failed", err)
	}
	return Intent{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (p *StripeProvider) GetIntent(ctx context.Context, intentID string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return Intent{}, domain.NewError(domain.KindTransientUpstream, "stripe get payment intent failed", err)
	}
	return Intent{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (p *StripeProvider) VerifyWebhookSignature(payload []byte, signatureHeader, secret string) error {
	_, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.NewError(domain.KindInvalidSignature, "stripe webhook signature verification failed", err)
	}
	return nil
}

// mapStripeStatus translates Stripe's payment intent status vocabulary
// into this core's PaymentStatus.
func mapStripeStatus(s string) (status string, ok bool) {
	switch s {
	case "succeeded":
		return "SUCCEEDED", true
	case "canceled":
		return "FAILED", true
	case "refunded":
		return "REFUNDED", true
	case "requires_payment_method", "requires_action", "processing", "requires_confirmation", "requires_capture":
		return "", false
	default:
		return "", false
	}
}
