package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DLQHandler inspects and replays dead-lettered jobs for a set of queues.
type DLQHandler struct {
	ch *amqp.Channel
}

func NewDLQHandler(ch *amqp.Channel) *DLQHandler {
	return &DLQHandler{ch: ch}
}

// Count reports the dead-letter depth for a queue, used by the monitoring
// poller's aggregate health computation (spec §4.11).
func (h *DLQHandler) Count(queueName string) (int, error) {
	q, err := h.ch.QueueInspect(queueName + ".dlq")
	if err != nil {
		return 0, fmt.Errorf("inspect dlq %s: %w", queueName, err)
	}
	return q.Messages, nil
}

// Drain pulls up to limit dead-lettered jobs without acking them, so a
// caller can inspect and decide whether to requeue or discard each one.
func (h *DLQHandler) Drain(ctx context.Context, queueName string, limit int) ([]Job, []amqp.Delivery, error) {
	var jobs []Job
	var deliveries []amqp.Delivery
	for i := 0; i < limit; i++ {
		msg, ok, err := h.ch.Get(queueName+".dlq", false)
		if err != nil {
			return jobs, deliveries, fmt.Errorf("get from dlq %s: %w", queueName, err)
		}
		if !ok {
			break
		}
		job, err := Unmarshal(msg.Body)
		if err != nil {
			msg.Nack(false, false)
			continue
		}
		jobs = append(jobs, job)
		deliveries = append(deliveries, msg)
	}
	return jobs, deliveries, nil
}

// Retry re-publishes a drained job onto its original queue with a reset
// attempt counter, then acknowledges the dead-letter delivery.
func (h *DLQHandler) Retry(job Job, delivery amqp.Delivery) error {
	job.Attempts = 0
	if err := Publish(h.ch, job); err != nil {
		return err
	}
	return delivery.Ack(false)
}

// Discard permanently acknowledges a drained job without requeueing it.
func (h *DLQHandler) Discard(delivery amqp.Delivery) error {
	return delivery.Ack(false)
}
