// Package cache provides the two-tier cache shared by every scorer: an
// in-memory map mirrored to an append-only durable table that is
// preloaded on construction.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lovbench/lovrank/internal/pkg/logger"
)

// Durable cache tables.
const (
	TableMaxFrequencies  = "maximum_frequencies"
	TableTF              = "tf"
	TableIDF             = "idf"
	TableVSM             = "vsm"
	TableLOVTermsMatch   = "lov_terms_match"
	TableLOVTermsPopular = "lov_terms_popularity"
	TableLOVVocabsMatch  = "lov_vocabs_match"
)

// Tables lists every durable cache table.
var Tables = []string{
	TableMaxFrequencies,
	TableTF,
	TableIDF,
	TableVSM,
	TableLOVTermsMatch,
	TableLOVTermsPopular,
	TableLOVVocabsMatch,
}

// Durable is the append-only mirror of a cache table.
type Durable interface {
	// Load calls fn for every stored row, oldest first.
	Load(ctx context.Context, fn func(key []string, value string) error) error
	// Append stores one row.
	Append(ctx context.Context, key []string, value string) error
	Close() error
}

// Store is a two-tier cache. Entries are never evicted or overwritten:
// the first value stored for a key wins, in memory and on disk.
type Store[K comparable, V any] struct {
	name    string
	keys    KeyCodec[K]
	values  ValueCodec[V]
	durable Durable
	log     *logger.Logger

	mu    sync.RWMutex
	items map[K]V
	group singleflight.Group
}

// New creates a cache table and preloads it from durable. Rows that do
// not decode are skipped with a warning; the first row of a key wins.
func New[K comparable, V any](ctx context.Context, name string, keys KeyCodec[K], values ValueCodec[V], durable Durable, log *logger.Logger) (*Store[K, V], error) {
	if durable == nil {
		durable = Discard{}
	}
	if log == nil {
		log = logger.Default()
	}

	s := &Store[K, V]{
		name:    name,
		keys:    keys,
		values:  values,
		durable: durable,
		log:     log.WithComponent("cache." + name),
		items:   make(map[K]V),
	}

	skipped := 0
	err := durable.Load(ctx, func(row []string, raw string) error {
		k, err := keys.Decode(row)
		if err != nil {
			skipped++
			return nil
		}
		v, err := values.Decode(raw)
		if err != nil {
			skipped++
			return nil
		}
		if _, ok := s.items[k]; !ok {
			s.items[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("preloading cache %s: %w", name, err)
	}

	if skipped > 0 {
		s.log.Warn("Skipped undecodable cache rows", "rows", skipped)
	}
	s.log.Debug("Cache preloaded", "entries", len(s.items))

	return s, nil
}

// Name returns the table name.
func (s *Store[K, V]) Name() string {
	return s.name
}

// Len returns the number of cached entries.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the cached value for k.
func (s *Store[K, V]) Get(k K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[k]
	return v, ok
}

// Put stores v under k unless k is already cached, in which case the
// cached value is kept and returned.
func (s *Store[K, V]) Put(ctx context.Context, k K, v V) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[k]; ok {
		return existing, nil
	}
	if err := s.durable.Append(ctx, s.keys.Encode(k), s.values.Encode(v)); err != nil {
		return v, fmt.Errorf("persisting %s entry: %w", s.name, err)
	}
	s.items[k] = v
	return v, nil
}

// GetOrCompute returns the cached value for k, computing and persisting
// it on a miss. Concurrent misses for the same key compute once.
func (s *Store[K, V]) GetOrCompute(ctx context.Context, k K, compute func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := s.Get(k); ok {
		return v, nil
	}

	flightKey := strings.Join(s.keys.Encode(k), "\x1f")
	res, err, _ := s.group.Do(flightKey, func() (interface{}, error) {
		if v, ok := s.Get(k); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return v, err
		}
		return s.Put(ctx, k, v)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Close closes the durable mirror.
func (s *Store[K, V]) Close() error {
	return s.durable.Close()
}
