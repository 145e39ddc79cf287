package amqpqueue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection is the part of an AMQP connection the backend needs.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Channel is the part of an AMQP channel the backend needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error)
	IsClosed() bool
	Close() error
}

// Confirmation resolves to the broker's ack or nack of one publishing.
type Confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// Wrap adapts a driver connection. A nil conn yields nil.
func Wrap(conn *amqp.Connection) Connection {
	if conn == nil {
		return nil
	}
	return amqpConnection{conn}
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return amqpChannel{ch}, nil
}

type amqpChannel struct {
	*amqp.Channel
}

func (c amqpChannel) PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error) {
	conf, err := c.Channel.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	// The driver returns nil when the channel is not in confirm mode.
	if conf == nil {
		return nil, ErrNotConfirmed
	}
	return conf, nil
}
