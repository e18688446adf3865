package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

type MemoryCache struct {
	mu        sync.Mutex
	items     map[string]memItem
	now       func() time.Time
	lastSweep time.Time
}

// memorySweepEvery bounds how often Set scans for expired keys that were
// never read again.
const memorySweepEvery = time.Minute

type memItem struct {
	val []byte
	exp time.Time
}

// NewCache connects to Redis when redisURL parses and answers PING within
// two seconds; otherwise it falls back to an in-process cache.
func NewCache(redisURL string, logger *zap.Logger) Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if redisURL == "" {
		logger.Info("cache backend", zap.String("backend", "memory"))
		return NewMemoryCache()
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, using memory cache", zap.Error(err))
		return NewMemoryCache()
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using memory cache", zap.Error(err))
		_ = client.Close()
		return NewMemoryCache()
	}
	logger.Info("cache backend", zap.String("backend", "redis"), zap.String("addr", opt.Addr))
	return NewRedisCache(client)
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Client exposes the connection so the redis widget store can share it.
func (r *RedisCache) Client() *redis.Client { return r.client }

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memItem), now: time.Now}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, val, ttl).Err()
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !it.exp.IsZero() && m.now().After(it.exp) {
		delete(m.items, key)
		return nil, false
	}
	return it.val, true
}

func (m *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= memorySweepEvery {
		for k, it := range m.items {
			if !it.exp.IsZero() && now.After(it.exp) {
				delete(m.items, k)
			}
		}
		m.lastSweep = now
	}
	exp := time.Time{}
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	m.items[key] = memItem{val: val, exp: exp}
	return nil
}

func MarshalCache(v any) ([]byte, error) {
	return json.Marshal(v)
}

func UnmarshalCache(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
