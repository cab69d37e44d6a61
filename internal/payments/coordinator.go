package payments

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nordkit/commerce-core/internal/domain"
	"github.com/nordkit/commerce-core/internal/outbox"
	"github.com/nordkit/commerce-core/internal/store"
	"github.com/nordkit/commerce-core/internal/telemetry"
)

// Coordinator creates payments against Provider, applies webhook
// deliveries idempotently, and drives order transitions on settlement.
type Coordinator struct {
	db       *store.DB
	payments *store.PaymentRepo
	orders   *store.OrderRepo
	provider Provider
	writer   *outbox.Writer
	metrics  *telemetry.PaymentMetrics
	log      *slog.Logger

	// OnSettled is invoked after a webhook moves a payment to SUCCEEDED or
	// FAILED, so the order service can transition the order accordingly.
	OnSettled func(ctx context.Context, orderID string, succeeded bool)
}

func NewCoordinator(db *store.DB, payments *store.PaymentRepo, orders *store.OrderRepo, provider Provider, writer *outbox.Writer, metrics *telemetry.PaymentMetrics, log *slog.Logger) *Coordinator {
	return &Coordinator{db: db, payments: payments, orders: orders, provider: provider, writer: writer, metrics: metrics, log: log}
}

// CreatePayment opens a provider intent and persists the payment row with
// the created event, all idempotent on idempotencyKey. The order must be
// CREATED and amountCents must match its total (spec §3, §4.7).
func (c *Coordinator) CreatePayment(ctx context.Context, orderID string, amountCents int64, currency, idempotencyKey string) (*domain.Payment, error) {
	if existing, err := c.payments.GetByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderCreated {
		return nil, domain.NewError(domain.KindConflict,
			fmt.Sprintf("order %s is %s, not CREATED", orderID, order.Status), nil)
	}
	if order.TotalCents != amountCents {
		return nil, domain.NewError(domain.KindInvalidInput,
			fmt.Sprintf("payment amount %d does not match order total %d", amountCents, order.TotalCents), nil)
	}

	intent, err := c.provider.CreateIntent(ctx, amountCents, currency, idempotencyKey)
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		OrderID:        orderID,
		IdempotencyKey: idempotencyKey,
		ProviderIntent: intent.ID,
		AmountCents:    amountCents,
		Currency:       currency,
	}
	err = c.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := c.payments.Create(ctx, tx, payment); err != nil {
			return err
		}
		return c.writer.Append(ctx, tx, payment.ID, domain.EventPaymentCreated, "", "", payment)
	})
	if err != nil {
		return nil, err
	}
	c.metrics.Created.Inc()
	return payment, nil
}

// ProcessWebhook verifies the delivery's signature, maps the provider
// status, and applies it to the payment exactly once per webhook_event_id.
func (c *Coordinator) ProcessWebhook(ctx context.Context, paymentID, eventID string, payload []byte, signatureHeader, webhookSecret, providerStatus string) error {
	if err := c.provider.VerifyWebhookSignature(payload, signatureHeader, webhookSecret); err != nil {
		return err
	}

	status, known := mapStripeStatus(providerStatus)
	if !known {
		return nil
	}
	newStatus := domain.PaymentStatus(status)

	payment, err := c.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.HasSeenWebhook(eventID) {
		c.metrics.WebhookDups.Inc()
		return nil
	}

	var eventType string
	switch newStatus {
	case domain.PaymentFailed:
		eventType = domain.EventPaymentFailed
	case domain.PaymentRefunded:
		eventType = domain.EventPaymentRefunded
	default:
		eventType = domain.EventPaymentSucceeded
	}

	err = c.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := c.payments.ApplyWebhook(ctx, tx, paymentID, eventID, newStatus); err != nil {
			return err
		}
		return c.writer.Append(ctx, tx, paymentID, eventType, "", "", map[string]string{
			"payment_id": paymentID, "order_id": payment.OrderID,
		})
	})
	if err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			c.metrics.WebhookDups.Inc()
			return nil
		}
		return err
	}

	switch newStatus {
	case domain.PaymentSucceeded:
		c.metrics.Succeeded.Inc()
	case domain.PaymentFailed:
		c.metrics.Failed.Inc()
	}
	if c.OnSettled != nil && (newStatus == domain.PaymentSucceeded || newStatus == domain.PaymentFailed) {
		c.OnSettled(ctx, payment.OrderID, newStatus == domain.PaymentSucceeded)
	}
	return nil
}
