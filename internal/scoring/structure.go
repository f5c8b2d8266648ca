package scoring

import (
	"context"
	"fmt"
	"sync"

	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
)

// Count identifies one structural count of a term.
type Count int

const (
	CountSubClasses Count = iota
	CountSuperClasses
	CountSubProperties
	CountSuperProperties
	CountRelations
	CountSiblings
)

func (c Count) String() string {
	switch c {
	case CountSubClasses:
		return "subclasses"
	case CountSuperClasses:
		return "superclasses"
	case CountSubProperties:
		return "subproperties"
	case CountSuperProperties:
		return "superproperties"
	case CountRelations:
		return "relations"
	case CountSiblings:
		return "siblings"
	default:
		return fmt.Sprintf("count(%d)", int(c))
	}
}

type countKey struct {
	count Count
	term  model.Term
}

// Structure memoises the structural counts of terms.
type Structure struct {
	store kstore.Store

	mu     sync.Mutex
	counts map[countKey]int
}

// NewStructure creates a structure scorer.
func NewStructure(store kstore.Store) *Structure {
	return &Structure{store: store, counts: make(map[countKey]int)}
}

// Count returns the count c of t.
func (s *Structure) Count(ctx context.Context, c Count, t model.Term) (int, error) {
	key := countKey{c, t}
	s.mu.Lock()
	n, ok := s.counts[key]
	s.mu.Unlock()
	if ok {
		return n, nil
	}

	var err error
	switch c {
	case CountSubClasses:
		n, err = s.store.CountSubClasses(ctx, t)
	case CountSuperClasses:
		n, err = s.store.CountSuperClasses(ctx, t)
	case CountSubProperties:
		n, err = s.store.CountSubProperties(ctx, t)
	case CountSuperProperties:
		n, err = s.store.CountSuperProperties(ctx, t)
	case CountRelations:
		n, err = s.store.CountRelations(ctx, t)
	case CountSiblings:
		n, err = s.store.CountSiblings(ctx, t)
	default:
		return 0, fmt.Errorf("unknown count %v", c)
	}
	if err != nil {
		return 0, fmt.Errorf("counting %s of %s: %w", c, t, err)
	}

	s.mu.Lock()
	s.counts[key] = n
	s.mu.Unlock()
	return n, nil
}

// Density weights.
const (
	DensitySubClasses   = 1.0
	DensitySuperClasses = 0.25
	DensityRelations    = 0.5
	DensitySiblings     = 0.5
)

// Density returns the weighted sum of the class neighbourhood counts of t.
func (s *Structure) Density(ctx context.Context, t model.Term) (float64, error) {
	weights := []struct {
		count  Count
		weight float64
	}{
		{CountSubClasses, DensitySubClasses},
		{CountSuperClasses, DensitySuperClasses},
		{CountRelations, DensityRelations},
		{CountSiblings, DensitySiblings},
	}

	density := 0.0
	for _, w := range weights {
		n, err := s.Count(ctx, w.count, t)
		if err != nil {
			return 0, err
		}
		density += w.weight * float64(n)
	}
	return density, nil
}
