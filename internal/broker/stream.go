// Package broker implements the Stream Broker (SB) contract over Redis
// Streams: an append-only per-topic log with broker-assigned monotonic IDs
// and consumer-group delivery, at-least-once, no cross-topic ordering.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nordkit/commerce-core/internal/domain"
)

// StreamBroker publishes envelopes to and consumes them from Redis Streams.
type StreamBroker struct {
	rdb *redis.Client
}

func NewStreamBroker(rdb *redis.Client) *StreamBroker {
	return &StreamBroker{rdb: rdb}
}

// Publish appends env to topic's stream, returning the broker-assigned
// stream ID.
func (b *StreamBroker) Publish(ctx context.Context, topic string, env domain.Envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{"envelope": raw},
	}).Result()
	if err != nil {
		return "", domain.NewError(domain.KindTransientUpstream, "publish to stream broker failed", err)
	}
	return id, nil
}

// EnsureGroup creates the consumer group for topic if it doesn't already
// exist, starting from the beginning of the stream.
func (b *StreamBroker) EnsureGroup(ctx context.Context, topic, group string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("ensure consumer group %s/%s: %w", topic, group, err)
	}
	return nil
}

// Message is one delivery read from a consumer group, carrying its stream
// ID for later acknowledgement.
type Message struct {
	ID       string
	Envelope domain.Envelope
}

// Read blocks up to block for up to count new messages delivered to
// consumer within group, using ">" so redelivered-but-unacked messages
// from a crashed consumer are not returned here (use ReadPending for that).
func (b *StreamBroker) Read(ctx context.Context, topic, group, consumer string, count int, block time.Duration) ([]Message, error) {
	res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{topic, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewError(domain.KindTransientUpstream, "read from stream broker failed", err)
	}
	return decodeMessages(res)
}

// ReadPending re-delivers messages already claimed by consumer but never
// acked, for crash recovery on worker restart.
func (b *StreamBroker) ReadPending(ctx context.Context, topic, group, consumer string, count int) ([]Message, error) {
	res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{topic, "0"},
		Count:    int64(count),
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending from stream broker: %w", err)
	}
	return decodeMessages(res)
}

func decodeMessages(res []redis.XStream) ([]Message, error) {
	var out []Message
	for _, stream := range res {
		for _, m := range stream.Messages {
			raw, ok := m.Values["envelope"].(string)
			if !ok {
				continue
			}
			var env domain.Envelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				return nil, fmt.Errorf("decode envelope %s: %w", m.ID, err)
			}
			out = append(out, Message{ID: m.ID, Envelope: env})
		}
	}
	return out, nil
}

// Ack acknowledges a message, removing it from the group's pending list.
func (b *StreamBroker) Ack(ctx context.Context, topic, group, id string) error {
	if err := b.rdb.XAck(ctx, topic, group, id).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}
