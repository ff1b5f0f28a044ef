package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const IncomingMessagesChannel = "incoming:messages"

// RedisPublisher fans intake events out to other processes. A nil publisher is a no-op.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher returns nil when url is empty.
func NewRedisPublisher(ctx context.Context, url string) (*RedisPublisher, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	zap.L().Info("redis: connected", zap.String("addr", opts.Addr))
	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload any) error {
	if p == nil {
		return nil
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channel, buf).Err()
}

func (p *RedisPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
