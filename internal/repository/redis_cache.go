package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

var cacheTracer = otel.Tracer("recgetup/redis-cache")

// scanBatch is the COUNT hint for SCAN during pattern invalidation
const scanBatch = 100

// RedisCacheRepository stores JSON values in Redis. Every operation is traced.
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

func startCacheSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "redis"), attribute.String("db.operation", op))
	return cacheTracer.Start(ctx, "cache."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

// Get decodes the value stored at key into dest
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	ctx, span := startCacheSpan(ctx, "get", attribute.String("cache.key", key))
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return ErrCacheMiss
	case err != nil:
		span.RecordError(err)
		return fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	span.SetAttributes(attribute.Bool("cache.hit", true), attribute.Int("cache.bytes", len(data)))
	if err := json.Unmarshal(data, dest); err != nil {
		// A value we cannot decode is as good as absent
		span.RecordError(err)
		return fmt.Errorf("%w: undecodable value at %s: %v", ErrCacheMiss, key, err)
	}
	return nil
}

// Set stores value as JSON under key for ttl
func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	ctx, span := startCacheSpan(ctx, "set",
		attribute.String("cache.key", key),
		attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Delete removes keys
func (r *RedisCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, span := startCacheSpan(ctx, "del", attribute.Int("cache.key_count", len(keys)))
	defer span.End()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// DeleteByPattern removes every key matching a glob pattern. It walks the
// keyspace with SCAN so Redis is never blocked by a single KEYS call.
func (r *RedisCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	ctx, span := startCacheSpan(ctx, "del_pattern", attribute.String("cache.pattern", pattern))
	defer span.End()

	var (
		batch   []string
		removed int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return err
		}
		removed += len(batch)
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatch {
			if err := flush(); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to delete keys matching %s: %w", pattern, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to scan keys matching %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete keys matching %s: %w", pattern, err)
	}

	span.SetAttributes(attribute.Int("cache.matched_keys", removed))
	return nil
}
