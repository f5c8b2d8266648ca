package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "lovrank:cache:"

// fieldSep joins key columns into one hash field.
const fieldSep = "\x1f"

// RedisDurable stores a table as a Redis hash, one field per key. Several
// tables share one client.
type RedisDurable struct {
	client *redis.Client
	key    string
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return client, nil
}

// NewRedisDurable returns the table mirror for table.
func NewRedisDurable(client *redis.Client, table string) *RedisDurable {
	return &RedisDurable{
		client: client,
		key:    redisPrefix + table,
	}
}

func (r *RedisDurable) Load(ctx context.Context, fn func(key []string, value string) error) error {
	var cursor uint64
	for {
		fields, next, err := r.client.HScan(ctx, r.key, cursor, "*", 1000).Result()
		if err != nil {
			return fmt.Errorf("scanning %s: %w", r.key, err)
		}

		for i := 0; i+1 < len(fields); i += 2 {
			if err := fn(strings.Split(fields[i], fieldSep), fields[i+1]); err != nil {
				return err
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Append uses HSETNX so a concurrent writer never replaces an entry.
func (r *RedisDurable) Append(ctx context.Context, key []string, value string) error {
	if err := r.client.HSetNX(ctx, r.key, strings.Join(key, fieldSep), value).Err(); err != nil {
		return fmt.Errorf("saving to %s: %w", r.key, err)
	}
	return nil
}

// Delete removes the whole table.
func (r *RedisDurable) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("deleting %s: %w", r.key, err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner.
func (r *RedisDurable) Close() error {
	return nil
}
