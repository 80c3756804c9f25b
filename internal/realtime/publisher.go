// Package realtime pushes order messages to subscribers over Redis pub/sub and websockets.
package realtime

import (
	"context"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher publishes to a Redis channel named Prefix + channel.
type RedisPublisher struct {
	Client *redis.Client
	Prefix string
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.Client.Publish(ctx, p.Prefix+channel, payload).Err()
}

// Discard drops every message. Used when no Redis is configured.
type Discard struct {
	Log *zap.Logger
}

func (d Discard) Publish(_ context.Context, channel string, payload []byte) error {
	d.Log.Debug("realtime push discarded", zap.String("channel", channel), zap.Int("bytes", len(payload)))
	return nil
}
