// Package cache stores JSON-encoded upstream responses with a TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"northpointtriallaw.com/opsdash/internal/metrics"
)

// JSON is a keyed JSON cache. Get reports whether the key was present.
type JSON interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Redis struct {
	client *redis.Client
	name   string
	logger zerolog.Logger
}

// NewRedis connects to rawURL (redis://...) and pings it.
func NewRedis(ctx context.Context, rawURL, name string, logger zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info().Str("addr", opts.Addr).Str("cache", name).Msg("redis cache initialized")
	return &Redis{client: client, name: name, logger: logger}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues(r.name, "miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues(r.name, "error").Inc()
		return false, fmt.Errorf("get %s cache: %w", r.name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheLookups.WithLabelValues(r.name, "error").Inc()
		return false, fmt.Errorf("decode %s cache: %w", r.name, err)
	}

	metrics.CacheLookups.WithLabelValues(r.name, "hit").Inc()
	r.logger.Debug().Str("cache", r.name).Msg("cache hit")
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s cache: %w", r.name, err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("set %s cache: %w", r.name, err)
	}
	return nil
}

func (r *Redis) key(raw string) string {
	return Key(r.name, raw)
}

// Key namespaces a hashed form of raw under prefix.
func Key(prefix, raw string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(raw))))
	return "opsdash:" + prefix + ":" + hex.EncodeToString(sum[:])
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
