package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fjod/cartsync/internal/metrics"
	"github.com/fjod/cartsync/pkg/circuitbreaker"
	"github.com/fjod/cartsync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisChannel = "cartsync:events"

// RedisBridge relays events between instances. Publish sends to a Redis
// channel; Run subscribes to the same channel and hands every event,
// including this instance's own, to the local publisher. With the bridge in
// place the local hub must only be fed through Run.
type RedisBridge struct {
	client  *redis.Client
	channel string
	local   Publisher
	breaker *circuitbreaker.Breaker
	ready   chan struct{}
}

func NewRedisBridge(client *redis.Client, channel string, local Publisher) *RedisBridge {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBridge{
		client:  client,
		channel: channel,
		local:   local,
		breaker: circuitbreaker.New(circuitbreaker.Settings{Name: "redis-events"}),
		ready:   make(chan struct{}),
	}
}

func (b *RedisBridge) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	err = b.breaker.Do(func() error {
		return b.client.Publish(ctx, b.channel, data).Err()
	})
	metrics.NotificationResult("redis", ev.Type, err)
	if err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Ready is closed once the subscription is confirmed.
func (b *RedisBridge) Ready() <-chan struct{} {
	return b.ready
}

// Run forwards subscribed events to the local publisher until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe failed: %w", err)
	}
	close(b.ready)
	logger.Info().Str("channel", b.channel).Msg("redis event bridge subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn().Err(err).Msg("dropping malformed event from redis")
				continue
			}
			if err := b.local.Publish(ctx, ev); err != nil {
				logger.Warn().Err(err).Str("event", ev.Type).Msg("failed to deliver bridged event")
			}
		}
	}
}
