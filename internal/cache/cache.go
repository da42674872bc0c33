// Package cache is an optional Redis read-through cache for dashboard
// statistics. A nil *Cache is valid and always misses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aldoetobex/debt-recovery-backend/internal/config"
)

const keyPrefix = "drb:"

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects when REDIS_ADDR is set and returns nil otherwise.
func New(cfg config.RedisConfig, logger *zap.Logger) *Cache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}
	return NewWithClient(client, cfg.StatsTTL, logger)
}

func NewWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func (c *Cache) Close() {
	if c != nil && c.client != nil {
		_ = c.client.Close()
	}
}

// Invalidate drops keys; failures are logged only.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Remember returns the cached value for key or computes, stores and returns it.
// Redis failures degrade to calling load.
func Remember[T any](ctx context.Context, c *Cache, key string, load func() (T, error)) (T, error) {
	if c == nil {
		return load()
	}

	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == nil {
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			return v, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if b, jerr := json.Marshal(v); jerr == nil {
		if serr := c.client.Set(ctx, keyPrefix+key, b, c.ttl).Err(); serr != nil {
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return v, nil
}
