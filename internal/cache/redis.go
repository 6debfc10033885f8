package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "portal:query:"

// Redis keeps snapshots in Redis so several client processes share them.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL of zero keeps snapshots until they are replaced or evicted.
	TTL time.Duration
}

// NewRedis returns a Cache backed by Redis.
func NewRedis(opts RedisOptions) *Store {
	return New(newRedisBackend(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), opts.Prefix, opts.TTL))
}

func newRedisBackend(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(id string) string { return r.prefix + id }

func (r *Redis) Get(ctx context.Context, id string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, id string, value []byte) error {
	if err := r.client.Set(ctx, r.key(id), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", id, err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
