package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polyinsider/tracker/internal/store"
)

// DefaultRedisChannel is the pub/sub channel alerts are published on.
const DefaultRedisChannel = "polyinsider:alerts"

// RedisSink publishes JSON envelopes on a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects to addr and verifies it with a PING.
func NewRedisSink(ctx context.Context, addr, password, channel string) (*RedisSink, error) {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	return &RedisSink{client: client, channel: channel}, nil
}

// NewRedisSinkFromClient wraps an existing client without a connectivity check.
func NewRedisSinkFromClient(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel}
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Notify(ctx context.Context, ev store.Event) error {
	data, err := marshalEnvelope(ev)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisSink) Close() error {
	return r.client.Close()
}
