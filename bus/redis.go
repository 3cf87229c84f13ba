package bus

import (
	"context"
	"fmt"

	"climate-monitor/models"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher publishes alerts as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = EventAlert
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, alert models.Alert) error {
	payload, err := encodeAlert(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}
