package messaging

import (
	"context"
)

// Delivery is a single message handed to a consumer. The consumer must
// terminate every delivery with exactly one of Ack or Reject; the broker
// will redeliver unterminated messages after the claim window.
type Delivery interface {
	// ID identifies the message within its stream.
	ID() string
	// Payload returns the raw message body.
	Payload() []byte
	// Ack marks the message as processed.
	Ack(ctx context.Context) error
	// Reject discards the message without requeueing it. The broker moves
	// the payload to the configured dead-letter stream, if any.
	Reject(ctx context.Context) error
}

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, stream string, message interface{}) error
	// Consume joins the named consumer group on a stream and returns a
	// channel of deliveries. One delivery is in flight per consumer at a
	// time; the channel closes when ctx is cancelled.
	Consume(ctx context.Context, stream, group, consumer string) (<-chan Delivery, error)
	Close() error
}

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, stream string, message interface{}) error
}
