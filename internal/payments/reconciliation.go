package payments

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/nordkit/commerce-core/internal/domain"
	"github.com/nordkit/commerce-core/internal/outbox"
	"github.com/nordkit/commerce-core/internal/store"
	"github.com/nordkit/commerce-core/internal/telemetry"
)

// Reconciler periodically compares non-terminal payments against the
// provider's own view, correcting any drift a missed webhook would
// otherwise leave stuck (spec §4.7, §4.8 reconciliation job).
type Reconciler struct {
	db       *store.DB
	payments *store.PaymentRepo
	provider Provider
	writer   *outbox.Writer
	metrics  *telemetry.PaymentMetrics
	log      *slog.Logger

	OnSettled func(ctx context.Context, orderID string, succeeded bool)
}

func NewReconciler(db *store.DB, payments *store.PaymentRepo, provider Provider, writer *outbox.Writer, metrics *telemetry.PaymentMetrics, log *slog.Logger) *Reconciler {
	return &Reconciler{db: db, payments: payments, provider: provider, writer: writer, metrics: metrics, log: log}
}

// isTerminal reports whether a payment status needs no further reconciliation.
func isTerminal(status domain.PaymentStatus) bool {
	return status == domain.PaymentSucceeded || status == domain.PaymentFailed || status == domain.PaymentRefunded
}

// ReconcileOne fetches the provider's current status for a non-terminal
// payment and, on drift, applies it and emits payment.reconciled.v1 in the
// same transaction as the status update.
func (r *Reconciler) ReconcileOne(ctx context.Context, paymentID string) (drifted bool, err error) {
	payment, err := r.payments.GetByID(ctx, paymentID)
	if err != nil {
		return false, err
	}
	if isTerminal(payment.Status) {
		return false, nil
	}

	intent, err := r.provider.GetIntent(ctx, payment.ProviderIntent)
	if err != nil {
		return false, err
	}
	status, known := mapStripeStatus(intent.Status)
	if !known {
		return false, nil
	}
	newStatus := domain.PaymentStatus(status)
	if newStatus == payment.Status {
		return false, nil
	}

	eventID := "reconciliation:" + intent.ID
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.payments.ApplyWebhook(ctx, tx, paymentID, eventID, newStatus); err != nil {
			return err
		}
		return r.writer.Append(ctx, tx, paymentID, domain.EventPaymentReconciled, "", "", map[string]string{
			"payment_id": paymentID, "order_id": payment.OrderID,
			"old_status": string(payment.Status), "new_status": string(newStatus),
		})
	})
	if err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			return false, nil
		}
		return false, err
	}

	r.metrics.Reconciled.Inc()
	r.log.Info("reconciliation corrected payment status",
		slog.String("payment_id", paymentID), slog.String("status", status))
	if r.OnSettled != nil {
		r.OnSettled(ctx, payment.OrderID, newStatus == domain.PaymentSucceeded)
	}
	return true, nil
}
