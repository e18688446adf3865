// Package storage persists the dashboard as one opaque blob under a
// namespaced key. Backends differ only in where the bytes live.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"finboard/backend-go/internal/config"
)

// BlobStore is a single-key document store. Load returns (nil, nil) when
// nothing has been saved under key yet.
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
	Name() string
	Close() error
}

type openOptions struct {
	redisClient *redis.Client
}

type Option func(*openOptions)

// WithRedisClient makes the redis backend reuse client instead of dialing
// REDIS_URL again.
func WithRedisClient(client *redis.Client) Option {
	return func(o *openOptions) { o.redisClient = client }
}

// Open builds the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (BlobStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	var (
		store BlobStore
		err   error
	)
	switch backend {
	case "", "file":
		store, err = NewFileStore(cfg.StoreDir)
	case "memory":
		store = NewMemoryStore()
	case "sqlite":
		store, err = NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		if o.redisClient != nil {
			store = NewRedisStoreFromClient(o.redisClient)
		} else {
			store, err = NewRedisStore(ctx, cfg.RedisURL)
		}
	case "postgres":
		store, err = NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}
	logger.Info("widget store opened", zap.String("backend", store.Name()))
	return store, nil
}
