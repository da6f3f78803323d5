package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/notification-service/pkg/circuitbreaker"
	"github.com/jwalitptl/notification-service/pkg/messaging"
)

const payloadField = "payload"

type Config struct {
	URL              string
	MaxRetries       int
	RetryBackoff     time.Duration
	PoolSize         int
	MinIdleConns     int
	DeadLetterStream string
	// ClaimMinIdle is how long a pending delivery may sit unacknowledged on a
	// dead consumer before another consumer claims it.
	ClaimMinIdle time.Duration
	BlockTimeout time.Duration
}

// Broker implements messaging.Broker on Redis Streams with consumer groups.
// Messages persist in the stream and deliveries are tracked per consumer
// group, so the contract is durable, at-least-once, manually acknowledged.
type Broker struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zerolog.Logger
	config Config
}

func New(config Config, logger *zerolog.Logger) (*Broker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	if config.BlockTimeout <= 0 {
		config.BlockTimeout = 5 * time.Second
	}
	if config.ClaimMinIdle <= 0 {
		config.ClaimMinIdle = time.Minute
	}

	cb := circuitbreaker.New(circuitbreaker.Settings{
		Name:        "redis-stream-broker",
		MaxFailures: 5,
		Timeout:     10 * time.Second,
	})

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Broker{
		client: client,
		cb:     cb,
		logger: logger,
		config: config,
	}, nil
}

func (b *Broker) Publish(ctx context.Context, stream string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.cb.Execute(func() error {
		return b.client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{payloadField: payload},
		}).Err()
	})
}

func (b *Broker) Consume(ctx context.Context, stream, group, consumer string) (<-chan messaging.Delivery, error) {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	// Unbuffered channel: the next message is not read from Redis until the
	// previous delivery has been handed to the consumer (prefetch 1).
	deliveries := make(chan messaging.Delivery)

	go func() {
		defer close(deliveries)
		for {
			if ctx.Err() != nil {
				return
			}

			msg, ok := b.next(ctx, stream, group, consumer)
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case deliveries <- b.delivery(stream, group, msg):
			}
		}
	}()

	return deliveries, nil
}

// next fetches one message, preferring deliveries abandoned by dead
// consumers over new stream entries.
func (b *Broker) next(ctx context.Context, stream, group, consumer string) (redis.XMessage, bool) {
	claimed, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  b.config.ClaimMinIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err == nil && len(claimed) > 0 {
		return claimed[0], true
	}
	if err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
		b.logger.Warn().Err(err).Str("stream", stream).Msg("xautoclaim failed")
	}

	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    b.config.BlockTimeout,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			b.logger.Warn().Err(err).Str("stream", stream).Msg("xreadgroup failed")
		}
		return redis.XMessage{}, false
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return redis.XMessage{}, false
	}
	return streams[0].Messages[0], true
}

func (b *Broker) delivery(stream, group string, msg redis.XMessage) *streamDelivery {
	var payload []byte
	if raw, ok := msg.Values[payloadField]; ok {
		switch v := raw.(type) {
		case string:
			payload = []byte(v)
		case []byte:
			payload = v
		}
	}
	if payload == nil {
		payload, _ = json.Marshal(msg.Values)
	}
	return &streamDelivery{
		broker:  b,
		stream:  stream,
		group:   group,
		id:      msg.ID,
		payload: payload,
	}
}

func (b *Broker) Close() error {
	return b.client.Close()
}

type streamDelivery struct {
	broker  *Broker
	stream  string
	group   string
	id      string
	payload []byte
}

func (d *streamDelivery) ID() string      { return d.id }
func (d *streamDelivery) Payload() []byte { return d.payload }

func (d *streamDelivery) Ack(ctx context.Context) error {
	return d.broker.client.XAck(ctx, d.stream, d.group, d.id).Err()
}

// Reject acknowledges the message so it is never redelivered, copying the
// payload to the dead-letter stream when one is configured.
func (d *streamDelivery) Reject(ctx context.Context) error {
	if dls := d.broker.config.DeadLetterStream; dls != "" {
		err := d.broker.client.XAdd(ctx, &redis.XAddArgs{
			Stream: dls,
			Values: map[string]interface{}{
				payloadField: d.payload,
				"origin":     d.stream,
				"origin_id":  d.id,
			},
		}).Err()
		if err != nil {
			return fmt.Errorf("failed to dead-letter message %s: %w", d.id, err)
		}
	}
	return d.broker.client.XAck(ctx, d.stream, d.group, d.id).Err()
}
