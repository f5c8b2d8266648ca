package scoring

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gonum.org/v1/gonum/graph/network"

	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
)

// Betweenness ranks the nodes and lines of an ontology's undirected
// structural graph. Centrality is computed over the whole graph; only
// terms in the ontology's own namespace are reported. Classes collect
// their node centrality and properties the centrality of the lines they
// label, summed over all occurrences.
type Betweenness struct {
	store    kstore.Store
	prefixes *model.Prefixes

	mu     sync.Mutex
	scores map[model.Ontology]map[model.Term]float64
}

// NewBetweenness creates a betweenness scorer.
func NewBetweenness(store kstore.Store, prefixes *model.Prefixes) *Betweenness {
	return &Betweenness{
		store:    store,
		prefixes: prefixes,
		scores:   make(map[model.Ontology]map[model.Term]float64),
	}
}

// Score returns the betweenness of t in o, 0 when t is not ranked.
func (b *Betweenness) Score(ctx context.Context, t model.Term, o model.Ontology) (float64, error) {
	scores, err := b.All(ctx, o)
	if err != nil {
		return 0, err
	}
	return scores[t], nil
}

// All returns every reported betweenness score of o.
func (b *Betweenness) All(ctx context.Context, o model.Ontology) (map[model.Term]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.scores[o]; ok {
		return s, nil
	}

	triples, err := b.store.OntologyGraph(ctx, o, false)
	if err != nil {
		return nil, fmt.Errorf("loading graph of %s: %w", o, err)
	}

	s := make(map[model.Term]float64)
	if prefix := b.prefixes.TermPrefix(o); prefix != "" {
		g := OntologyGraph(triples, false)
		add := func(key string, score float64) {
			if strings.HasPrefix(key, prefix) {
				s[model.Term{URI: key}] += score
			}
		}

		// gonum counts every undirected path in both directions
		for id, score := range network.Betweenness(g.ug) {
			add(g.Key(id), score/2)
		}
		for pair, score := range network.EdgeBetweenness(g.ug) {
			labels := g.labels(pair[0], pair[1])
			if len(labels) == 0 {
				continue
			}
			share := score / 2 / float64(len(labels))
			for _, label := range labels {
				add(label, share)
			}
		}
	}

	b.scores[o] = s
	return s, nil
}
