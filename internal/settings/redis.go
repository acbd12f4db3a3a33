package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisHash is the hash all settings are stored under.
const DefaultRedisHash = "streamlytics:settings"

// RedisStore keeps settings in a single Redis hash.
type RedisStore struct {
	Client *redis.Client
	Hash   string
}

var _ Store = (*RedisStore)(nil)

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(ctx context.Context, addr string) (*RedisStore, error) {
	return newRedisStore(ctx, redis.NewClient(&redis.Options{Addr: addr}))
}

// newRedisStore instruments and pings client. client is closed on failure.
func newRedisStore(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	rs := &RedisStore{Client: client, Hash: DefaultRedisHash}

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(client); err != nil {
		rs.Close()
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		rs.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", client.Options().Addr))
	return rs, nil
}

func (r *RedisStore) hash() string {
	if r.Hash == "" {
		return DefaultRedisHash
	}
	return r.Hash
}

func (r *RedisStore) PutString(ctx context.Context, key, value string) error {
	if err := r.Client.HSet(ctx, r.hash(), key, value).Err(); err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) GetString(ctx context.Context, key string) (string, error) {
	v, err := r.Client.HGet(ctx, r.hash(), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisStore) GetStrings(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := r.Client.HMGet(ctx, r.hash(), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get settings: %w", err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
