package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV is the production KV backed by a shared Redis instance.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to Redis from a redis:// URL and verifies the
// connection with a ping.
func NewRedisKV(ctx context.Context, url string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache.NewRedisKV: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache.NewRedisKV: ping: %w", err)
	}
	return &RedisKV{client: client}, nil
}

// Close releases the underlying connection pool.
func (r *RedisKV) Close() error { return r.client.Close() }

// Get reads a key; the second return is false on a miss.
func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

// Set writes a key with a TTL.
func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Del removes a key.
func (r *RedisKV) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// SetNX sets a key only if it does not exist; used for short-TTL locks.
func (r *RedisKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return ok, nil
}

// Publish sends a payload on a pub/sub channel.
func (r *RedisKV) Publish(ctx context.Context, channel, payload string) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %q: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of raw payloads published on channel. The
// channel closes when ctx is cancelled.
func (r *RedisKV) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	sub := r.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("redis subscribe %q: %w", channel, err)
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		src := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, open := <-src:
				if !open {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// Slow consumer: drop rather than block the reader.
				}
			}
		}
	}()
	return out, nil
}
