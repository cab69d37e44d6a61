package worker

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nordkit/commerce-core/internal/queue"
)

// WebhookRetryWorker consumes the webhook-retry queue: deliveries that
// failed processing on first attempt are retried with exponential
// backoff before landing in the dead-letter queue (spec §4.10).
type WebhookRetryWorker struct {
	ch          *amqp.Channel
	queueName   string
	handle      func(ctx context.Context, job queue.Job) error
	baseDelay   time.Duration
	capDelay    time.Duration
	maxAttempts int
	log         *slog.Logger
}

func NewWebhookRetryWorker(ch *amqp.Channel, queueName string, handle func(ctx context.Context, job queue.Job) error, baseDelay, capDelay time.Duration, maxAttempts int, log *slog.Logger) *WebhookRetryWorker {
	return &WebhookRetryWorker{
		ch: ch, queueName: queueName, handle: handle,
		baseDelay: baseDelay, capDelay: capDelay, maxAttempts: maxAttempts, log: log,
	}
}

// Run consumes queueName until ctx is cancelled or the channel closes.
func (w *WebhookRetryWorker) Run(ctx context.Context) error {
	deliveries, err := w.ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info("webhook retry worker stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.process(ctx, d)
		}
	}
}

func (w *WebhookRetryWorker) process(ctx context.Context, d amqp.Delivery) {
	job, err := queue.Unmarshal(d.Body)
	if err != nil {
		w.log.Error("webhook retry worker bad job payload", slog.Any("error", err))
		d.Nack(false, false)
		return
	}

	if err := w.handle(ctx, job); err != nil {
		attempt := job.Attempts + 1
		if n, ok := d.Headers["x-retry-count"].(int32); ok {
			attempt += int(n)
		}
		w.log.Warn("webhook retry attempt failed", slog.String("job_id", job.ID), slog.Int("attempt", attempt), slog.Any("error", err))
		delay := queue.Backoff(attempt, w.baseDelay, w.capDelay)
		time.Sleep(delay)
		if retryErr := queue.HandleRetry(w.ch, w.queueName, d, w.log); retryErr != nil {
			w.log.Error("webhook retry requeue failed", slog.String("job_id", job.ID), slog.Any("error", retryErr))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		w.log.Error("webhook retry ack failed", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}
