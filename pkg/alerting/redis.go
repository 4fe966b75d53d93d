package alerting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// publisher is the slice of the Redis client the publisher needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes alerts as JSON on a Redis pub/sub channel, for
// downstream pagers and dashboards to subscribe to.
type RedisPublisher struct {
	client  publisher
	channel string
}

// NewRedisPublisher builds a publisher over an existing client.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// NotifyTamper publishes the alert. Publish succeeds even with zero
// subscribers; durability is the log notifier's job.
func (p *RedisPublisher) NotifyTamper(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("alerting: marshal alert: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("alerting: publish to %s: %w", p.channel, err)
	}
	return nil
}
