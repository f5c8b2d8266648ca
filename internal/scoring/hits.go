package scoring

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

// HITSIterations is the fixed number of HITS rounds.
const HITSIterations = 100

// emptyOntology is recorded for queries whose induced graph has no edges.
var emptyOntology = model.Ontology{}

// Relations supplies the ontology relation graph HITS runs on.
type Relations func(ctx context.Context) ([]kstore.Pair, error)

// OwlImportRelations returns the explicit owl:imports pairs of store.
func OwlImportRelations(store kstore.Store) Relations {
	return func(ctx context.Context) ([]kstore.Pair, error) {
		return store.OwlImports(ctx, false)
	}
}

// ImplicitImportRelations returns the usage-derived import pairs of store.
func ImplicitImportRelations(store kstore.Store) Relations {
	return func(ctx context.Context) ([]kstore.Pair, error) {
		return store.OwlImports(ctx, true)
	}
}

// VoafRelations returns the VOAF pairs of store.
func VoafRelations(store kstore.Store) Relations {
	return store.VoafRelations
}

type hitsScore struct {
	authority float64
	hub       float64
}

// HITS computes authority and hub scores per query over the subgraph of
// a relation graph induced by the ontologies matching the query.
type HITS struct {
	store     kstore.Store
	relations Relations
	log       *logger.Logger

	once     sync.Once
	pairs    []kstore.Pair
	pairsErr error

	mu     sync.Mutex
	scores map[string]map[model.Ontology]hitsScore
}

// NewHITS creates a HITS scorer over the given relations.
func NewHITS(store kstore.Store, relations Relations, log *logger.Logger) *HITS {
	if log == nil {
		log = logger.Default()
	}
	return &HITS{
		store:     store,
		relations: relations,
		log:       log.WithComponent("hits"),
		scores:    make(map[string]map[model.Ontology]hitsScore),
	}
}

// Authority returns the authority score of o for q.
func (h *HITS) Authority(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
	s, err := h.score(ctx, q, o)
	return s.authority, err
}

// Hub returns the hub score of o for q.
func (h *HITS) Hub(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
	s, err := h.score(ctx, q, o)
	return s.hub, err
}

func (h *HITS) score(ctx context.Context, q model.Query, o model.Ontology) (hitsScore, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := q.Key()
	scores, ok := h.scores[key]
	if !ok {
		var err error
		scores, err = h.run(ctx, q)
		if err != nil {
			return hitsScore{}, err
		}
		h.scores[key] = scores
	}
	return scores[o], nil
}

func (h *HITS) run(ctx context.Context, q model.Query) (map[model.Ontology]hitsScore, error) {
	h.once.Do(func() {
		h.pairs, h.pairsErr = h.relations(ctx)
	})
	if h.pairsErr != nil {
		return nil, fmt.Errorf("loading relation graph: %w", h.pairsErr)
	}

	matched, err := h.store.OntologyQueryMatch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("matching ontologies: %w", err)
	}
	inMatch := make(map[model.Ontology]bool, len(matched))
	for _, o := range matched {
		inMatch[o] = true
	}

	var induced []kstore.Pair
	for _, p := range h.pairs {
		if inMatch[p.From] && inMatch[p.To] {
			induced = append(induced, p)
		}
	}

	if len(induced) == 0 {
		h.log.Debug("Query led to no relation edges", "query", q.String())
		return map[model.Ontology]hitsScore{emptyOntology: {}}, nil
	}

	g := RelationGraph(induced)
	auth, hub := runHITS(g, HITSIterations)

	out := make(map[model.Ontology]hitsScore, g.Len())
	for i := 0; i < g.Len(); i++ {
		out[model.Ontology{URI: g.Key(int64(i))}] = hitsScore{authority: auth[i], hub: hub[i]}
	}
	return out, nil
}

// runHITS iterates simultaneous authority and hub updates, normalising
// each vector to unit length.
func runHITS(g *Graph, iterations int) (auth, hub []float64) {
	n := g.Len()
	auth = make([]float64, n)
	hub = make([]float64, n)
	for i := range auth {
		auth[i] = 1
		hub[i] = 1
	}

	type link struct {
		from, to int
		weight   float64
	}
	var links []link
	for u := 0; u < n; u++ {
		for _, v := range g.successors(int64(u)) {
			links = append(links, link{u, int(v), float64(g.multiplicity(int64(u), v))})
		}
	}

	nextAuth := make([]float64, n)
	nextHub := make([]float64, n)
	for iter := 0; iter < iterations; iter++ {
		clear(nextAuth)
		clear(nextHub)
		for _, l := range links {
			nextAuth[l.to] += hub[l.from] * l.weight
			nextHub[l.from] += auth[l.to] * l.weight
		}
		normalize(nextAuth)
		normalize(nextHub)
		auth, nextAuth = nextAuth, auth
		hub, nextHub = nextHub, hub
	}
	return auth, hub
}

func normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
}
