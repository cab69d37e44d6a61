package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nordkit/commerce-core/internal/broker"
)

// OutboxConsumer reads published domain events back off the stream broker
// and dispatches them to a handler, de-duplicating by event_id so a
// redelivered message (the at-least-once guarantee in spec §4.1) is
// applied at most once downstream.
type OutboxConsumer struct {
	sb       *broker.StreamBroker
	rdb      *redis.Client
	handle   func(ctx context.Context, msg broker.Message) error
	log      *slog.Logger
	topic    string
	group    string
	consumer string
	seenTTL  time.Duration
}

func NewOutboxConsumer(sb *broker.StreamBroker, rdb *redis.Client, handle func(ctx context.Context, msg broker.Message) error, log *slog.Logger, topic, group, consumer string) *OutboxConsumer {
	return &OutboxConsumer{
		sb: sb, rdb: rdb, handle: handle, log: log,
		topic: topic, group: group, consumer: consumer,
		seenTTL: 24 * time.Hour,
	}
}

// Run reads from the consumer group, first replaying any pending
// (crash-redelivered) messages, then new ones, until ctx is cancelled.
func (c *OutboxConsumer) Run(ctx context.Context) {
	if err := c.sb.EnsureGroup(ctx, c.topic, c.group); err != nil {
		c.log.Error("outbox consumer failed to ensure consumer group", slog.Any("error", err))
		return
	}

	if pending, err := c.sb.ReadPending(ctx, c.topic, c.group, c.consumer, 50); err == nil {
		for _, m := range pending {
			c.handleOne(ctx, m)
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info("outbox consumer stopping")
			return
		default:
		}

		msgs, err := c.sb.Read(ctx, c.topic, c.group, c.consumer, 20, 2*time.Second)
		if err != nil {
			c.log.Warn("outbox consumer read failed", slog.Any("error", err))
			continue
		}
		for _, m := range msgs {
			c.handleOne(ctx, m)
		}
	}
}

func (c *OutboxConsumer) handleOne(ctx context.Context, msg broker.Message) {
	key := "consumed:" + c.group + ":" + msg.Envelope.EventID
	first, err := c.rdb.SetNX(ctx, key, 1, c.seenTTL).Result()
	if err != nil {
		c.log.Warn("outbox consumer idempotency check failed", slog.String("event_id", msg.Envelope.EventID), slog.Any("error", err))
	} else if !first {
		c.ack(ctx, msg.ID)
		return
	}

	if err := c.handle(ctx, msg); err != nil {
		c.log.Error("outbox consumer handler failed", slog.String("event_id", msg.Envelope.EventID), slog.Any("error", err))
		if delErr := c.rdb.Del(ctx, key).Err(); delErr != nil {
			c.log.Warn("outbox consumer failed to clear idempotency key", slog.String("event_id", msg.Envelope.EventID), slog.Any("error", delErr))
		}
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *OutboxConsumer) ack(ctx context.Context, id string) {
	if err := c.sb.Ack(ctx, c.topic, c.group, id); err != nil {
		c.log.Error("outbox consumer ack failed", slog.String("id", id), slog.Any("error", err))
	}
}
