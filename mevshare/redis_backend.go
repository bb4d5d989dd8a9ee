package mevshare

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// EventBackend receives hint events watched off the stream, for fan-out to
// local consumers.
type EventBackend interface {
	PublishEvent(ctx context.Context, event *Event) error
}

type RedisEventBackend struct {
	client     *redis.Client
	pubChannel string
}

func NewRedisEventBackend(redisClient *redis.Client, pubChannel string) *RedisEventBackend {
	return &RedisEventBackend{
		client:     redisClient,
		pubChannel: pubChannel,
	}
}

func (b *RedisEventBackend) PublishEvent(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.pubChannel, data).Err()
}
