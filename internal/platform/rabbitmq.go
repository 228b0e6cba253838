package platform

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConnection is a hub dealing with the rabbitmq channel backing the
// event-appended fan-out exchange and the projection-dispatch queue,
// grounded on common/mrabbitmq but ported to rabbitmq/amqp091-go — the
// teacher's streadway/amqp is unmaintained and absent from the rest of the
// retrieval pack.
type RabbitMQConnection struct {
	ConnectionStringSource string
	EventsExchange         string
	ProjectionsQueue       string

	conn      *amqp.Connection
	channel   *amqp.Channel
	Connected bool
	Logger    Logger
}

// Connect dials rabbitmq, opens a channel and declares the topology the
// engine depends on: a fanout exchange events carry are appended to, and a
// durable queue the projection worker consumes from.
func (rc *RabbitMQConnection) Connect(ctx context.Context) error {
	logger := rc.logger()
	logger.Info("connecting to rabbitmq")

	conn, err := amqp.Dial(rc.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(rc.EventsExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare events exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(rc.ProjectionsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare projections queue: %w", err)
	}

	if err := ch.QueueBind(rc.ProjectionsQueue, "", rc.EventsExchange, false, nil); err != nil {
		return fmt.Errorf("bind projections queue: %w", err)
	}

	rc.conn = conn
	rc.channel = ch
	rc.Connected = true

	logger.Info("connected to rabbitmq")

	return nil
}

// GetChannel returns the channel, connecting lazily if necessary.
func (rc *RabbitMQConnection) GetChannel(ctx context.Context) (*amqp.Channel, error) {
	if !rc.Connected {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	if rc.channel == nil {
		return nil, errors.New("rabbitmq channel not established")
	}

	return rc.channel, nil
}

// PublishEventAppended fans out an event-appended notification to every
// bound consumer (projection worker, subscription dispatcher).
func (rc *RabbitMQConnection) PublishEventAppended(ctx context.Context, body []byte) error {
	ch, err := rc.GetChannel(ctx)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, rc.EventsExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Close tears down the channel and connection.
func (rc *RabbitMQConnection) Close() error {
	if rc.channel != nil {
		_ = rc.channel.Close()
	}

	if rc.conn != nil {
		return rc.conn.Close()
	}

	return nil
}

func (rc *RabbitMQConnection) logger() Logger {
	if rc.Logger != nil {
		return rc.Logger
	}

	return &NoneLogger{}
}
