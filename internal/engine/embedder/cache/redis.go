package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares vectors between machines through Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// OpenRedis connects to addr and verifies the connection. A zero ttl keeps
// entries forever.
func OpenRedis(ctx context.Context, addr, prefix string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: redis %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "cultura:emb:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *RedisStore) Get(ctx context.Context, keys []string) (map[string][]float32, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	vals, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: redis mget: %w", err)
	}
	out := make(map[string][]float32, len(keys))
	for i, val := range vals {
		s, ok := val.(string)
		if !ok {
			continue
		}
		v, err := decode([]byte(s))
		if err != nil {
			return nil, err
		}
		out[keys[i]] = v
	}
	return out, nil
}

func (r *RedisStore) Put(ctx context.Context, vecs map[string][]float32) error {
	if len(vecs) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for k, v := range vecs {
		pipe.Set(ctx, r.prefix+k, encode(v), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
