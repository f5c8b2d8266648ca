package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/lovbench/lovrank/internal/config"
)

// Backend opens the durable mirror of each cache table according to the
// configured cache kind.
type Backend struct {
	kind  string
	dir   string
	redis *redis.Client
}

// NewBackend creates a backend for cfg. A redis backend connects eagerly.
func NewBackend(cfg config.CacheConfig) (*Backend, error) {
	b := &Backend{kind: cfg.Kind, dir: cfg.Dir}

	switch cfg.Kind {
	case "csv", "memory":
	case "redis":
		client, err := NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.redis = client
	default:
		return nil, fmt.Errorf("unknown cache kind %q", cfg.Kind)
	}

	return b, nil
}

// Open returns the durable mirror for table.
func (b *Backend) Open(table string) (Durable, error) {
	switch b.kind {
	case "csv":
		return OpenCSVFile(filepath.Join(b.dir, table+".csv"))
	case "redis":
		return NewRedisDurable(b.redis, table), nil
	default:
		return Discard{}, nil
	}
}

// Clear drops the stored rows of tables, so the next run computes them
// again. Clearing a table that was never written is not an error.
func (b *Backend) Clear(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if !slices.Contains(Tables, table) {
			return fmt.Errorf("unknown cache table %q", table)
		}
		switch b.kind {
		case "csv":
			if err := os.Remove(filepath.Join(b.dir, table+".csv")); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing %s: %w", table, err)
			}
		case "redis":
			if err := NewRedisDurable(b.redis, table).Delete(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the shared redis client, if any.
func (b *Backend) Close() error {
	if b.redis != nil {
		return b.redis.Close()
	}
	return nil
}
