package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores JSON-encoded values under a key prefix.
type Redis[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// DialRedis connects to url and verifies the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedis[V any](client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Redis[V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis[V]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis cache read failed", "key", key, "error", err)
		}
		return zero, false
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		r.logger.Warn("redis cache entry is corrupt", "key", key, "error", err)
		return zero, false
	}
	return v, true
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("redis cache write failed", "key", key, "error", err)
	}
}
