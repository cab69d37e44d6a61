package queue

import (
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nordkit/commerce-core/internal/domain"
)

const maxRetryCount = 5

// Connect opens a channel against the named RabbitMQ broker, returning a
// closer that tears down the connection and channel together.
func Connect(user, pass, host, port string) (*amqp.Channel, func() error, error) {
	conn, err := amqp.Dial(fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	closer := func() error {
		chErr := ch.Close()
		connErr := conn.Close()
		if chErr != nil {
			return chErr
		}
		return connErr
	}
	return ch, closer, nil
}

// DeclareQueue declares queueName plus its dead-letter exchange and queue,
// binding queueName's DLX routing so NACKed messages land in "<queueName>.dlq".
func DeclareQueue(ch *amqp.Channel, queueName string) error {
	dlx := queueName + ".dlx"
	dlq := queueName + ".dlq"

	if err := ch.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx %s: %w", dlx, err)
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, queueName, dlx, false, nil); err != nil {
		return fmt.Errorf("bind dlq %s: %w", dlq, err)
	}

	_, err := ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": queueName,
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	return nil
}

// Publish enqueues job onto its queue as a persistent message.
func Publish(ch *amqp.Channel, job Job) error {
	raw, err := Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return ch.Publish("", job.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         raw,
	})
}

// HandleRetry inspects a failed delivery's retry-count header and either
// requeues it with an incremented header or NACKs it to the dead-letter
// exchange once maxRetryCount is exceeded.
func HandleRetry(ch *amqp.Channel, queueName string, d amqp.Delivery, log *slog.Logger) error {
	retryCount := 0
	if v, ok := d.Headers["x-retry-count"]; ok {
		if n, ok := v.(int32); ok {
			retryCount = int(n)
		}
	}

	if retryCount >= maxRetryCount {
		log.Warn("job exceeded max retries, sending to dead letter", slog.String("queue", queueName))
		return d.Nack(false, false)
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-retry-count"] = int32(retryCount + 1)

	if err := ch.Publish("", queueName, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Headers:      headers,
	}); err != nil {
		return domain.NewError(domain.KindTransientUpstream, "requeue after failure failed", err)
	}
	return d.Ack(false)
}
