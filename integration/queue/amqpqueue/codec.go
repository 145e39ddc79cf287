package amqpqueue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/eventbridge/core/queue"
)

const contentType = "application/json"

// ToPublishing encodes msg as a persistent publishing whose MessageId is the message key.
func ToPublishing(msg queue.Message) (amqp.Publishing, error) {
	data, err := queue.Encode(msg)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.Key,
		Timestamp:    msg.ReceivedAt,
		Body:         data,
	}, nil
}

// FromDelivery decodes d. Ack acknowledges it; Nack requeues it on the broker.
func FromDelivery(d amqp.Delivery) (queue.Delivery, error) {
	msg, err := queue.Decode(d.Body)
	if err != nil {
		return queue.Delivery{}, err
	}
	return queue.NewDelivery(msg,
		func(context.Context) error { return d.Ack(false) },
		func(context.Context) error { return d.Nack(false, true) },
	), nil
}
