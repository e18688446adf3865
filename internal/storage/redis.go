package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	shared bool
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	if redisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient shares a client already used by the cache. The
// caller keeps ownership: Close leaves the client open.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, shared: true}
}

func (r *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

func (r *RedisStore) Save(ctx context.Context, key string, blob []byte) error {
	return r.client.Set(ctx, key, blob, 0).Err()
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Close() error {
	if r.shared {
		return nil
	}
	return r.client.Close()
}
