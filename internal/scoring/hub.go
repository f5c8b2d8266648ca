package scoring

import (
	"context"
	"fmt"
	"sync"

	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
)

// HubSummary holds the hub scores of one ontology's terms and their
// extremes, taken from the same PageRank pass.
type HubSummary struct {
	Scores map[model.Term]float64
	Min    float64
	Max    float64
}

// Hub computes DWRank hub scores: PageRank over the reversed ontology
// graph, restricted to the ontology's own terms.
type Hub struct {
	store    kstore.Store
	prefixes *model.Prefixes
	pagerank PageRank

	mu      sync.Mutex
	summary map[model.Ontology]HubSummary
}

// NewHub creates a hub scorer.
func NewHub(store kstore.Store, prefixes *model.Prefixes) *Hub {
	return &Hub{
		store:    store,
		prefixes: prefixes,
		pagerank: NewPageRank(),
		summary:  make(map[model.Ontology]HubSummary),
	}
}

// Summary returns the cached hub scores of o, computing them on first use.
func (h *Hub) Summary(ctx context.Context, o model.Ontology) (HubSummary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.summary[o]; ok {
		return s, nil
	}

	triples, err := h.store.OntologyGraph(ctx, o, true)
	if err != nil {
		return HubSummary{}, fmt.Errorf("loading reversed graph of %s: %w", o, err)
	}

	terms, err := h.store.AllTerms(ctx, o)
	if err != nil {
		return HubSummary{}, fmt.Errorf("listing terms of %s: %w", o, err)
	}

	s := HubSummary{Scores: make(map[model.Term]float64, len(terms))}
	for key, score := range h.pagerank.Run(OntologyGraph(triples, true)) {
		if model.IsBlankNode(key) || h.prefixes.OntologyOf(key) != o {
			continue
		}
		s.Scores[model.Term{URI: key}] = score
	}
	// Terms the graph never reaches still count, with a score of 0.
	for _, t := range terms {
		if _, ok := s.Scores[t]; !ok {
			s.Scores[t] = 0
		}
	}

	first := true
	for _, score := range s.Scores {
		if first || score < s.Min {
			s.Min = score
		}
		if first || score > s.Max {
			s.Max = score
		}
		first = false
	}

	h.summary[o] = s
	return s, nil
}

// Score returns the hub score of t within o, 0 when t is not in the graph.
func (h *Hub) Score(ctx context.Context, t model.Term, o model.Ontology) (float64, error) {
	s, err := h.Summary(ctx, o)
	if err != nil {
		return 0, err
	}
	return s.Scores[t], nil
}
