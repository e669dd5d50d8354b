package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/config"

	"github.com/redis/go-redis/v9"
)

const KeyPrefix = "atlas:cache:"

// NewRedisClient connects to Redis, retrying the ping while the server comes up.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return client, nil
		}
		log.Printf("redis ping attempt %d/%d failed: %v", i+1, attempts, lastErr)
		if i < attempts-1 {
			time.Sleep(2 * time.Second)
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("redis ping failed after %d attempts: %w", attempts, lastErr)
}

// RedisBackend stores entries as plain string keys with an expiry.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client, prefix: KeyPrefix}
}

func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (b *RedisBackend) Store(ctx context.Context, key string, data []byte, retention time.Duration) error {
	return b.client.Set(ctx, b.prefix+key, data, retention).Err()
}
