package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisChannel is the pub/sub channel carrying throw events between instances
const RedisChannel = "steadystream:throws"

// RedisBus fans events out to every service instance through Redis pub/sub.
// Publishing does not deliver locally; each instance, including the publisher,
// receives the event back from Redis in Run.
type RedisBus struct {
	rdb    *redis.Client
	broker *Broker
	log    logrus.FieldLogger
}

// NewRedisBus creates a bus forwarding Redis messages into broker
func NewRedisBus(rdb *redis.Client, broker *Broker, log logrus.FieldLogger) *RedisBus {
	return &RedisBus{rdb: rdb, broker: broker, log: log}
}

// Publish sends ev to all instances
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, RedisChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Run subscribes to the channel and forwards messages until ctx is done
func (b *RedisBus) Run(ctx context.Context) error {
	pubsub := b.rdb.Subscribe(ctx, RedisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", RedisChannel, err)
	}
	b.log.WithField("channel", RedisChannel).Info("Subscribed to Redis throw events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.WithError(err).Warn("Dropping malformed throw event")
				continue
			}
			b.broker.Publish(ctx, ev)
		}
	}
}
