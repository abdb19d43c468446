package storecache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel carries newline-separated cache keys.
const Channel = "storefront:store-cache:invalidate"

// RedisBus broadcasts invalidations over redis pub/sub.
type RedisBus struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisBus returns nil, nil when url is empty: the cache then runs
// instance-local and relies on ttl expiry for cross-instance staleness.
func NewRedisBus(url string, log *zap.Logger) (*RedisBus, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &RedisBus{client: redis.NewClient(opts), log: log}, nil
}

// NewRedisBusFromClient wraps an existing client; Close closes it.
func NewRedisBusFromClient(client *redis.Client, log *zap.Logger) *RedisBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBus{client: client, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, keys ...Key) error {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.String())
	}
	return b.client.Publish(ctx, Channel, strings.Join(parts, "\n")).Err()
}

// Subscribe drops every key announced on the channel from c until ctx is
// done. Our own publishes come back too; dropping twice is harmless. When
// redis is unreachable the subscription keeps reconnecting in the background.
func (b *RedisBus) Subscribe(ctx context.Context, c *Cache) error {
	sub := b.client.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		b.log.Warn("store cache invalidation subscribe failed, retrying",
			zap.String("channel", Channel), zap.Error(err))
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c.Drop(decodeKeys(msg.Payload, b.log)...)
		}
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

func decodeKeys(payload string, log *zap.Logger) []Key {
	var keys []Key
	for _, line := range strings.Split(payload, "\n") {
		if line == "" {
			continue
		}
		k, err := ParseKey(line)
		if err != nil {
			log.Warn("ignoring malformed invalidation", zap.String("key", line), zap.Error(err))
			continue
		}
		keys = append(keys, k)
	}
	return keys
}
