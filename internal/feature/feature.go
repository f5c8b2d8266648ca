// Package feature defines the ranking features and their registry.
//
// A feature is either an importance feature (query independent, computed
// in batch over a set of entities) or a relevance feature (scored per
// query and entity). Its domain says whether it scores ontologies or
// terms. Callers dispatch on Kind and Domain and then assert the matching
// capability interface.
package feature

import (
	"context"
	"sync"

	"github.com/lovbench/lovrank/internal/model"
)

// Kind separates query independent from query dependent features.
type Kind int

const (
	Importance Kind = iota
	Relevance
)

func (k Kind) String() string {
	if k == Relevance {
		return "relevance"
	}
	return "importance"
}

// Domain is the entity type a feature scores.
type Domain int

const (
	OntologyDomain Domain = iota
	TermDomain
)

func (d Domain) String() string {
	if d == TermDomain {
		return "term"
	}
	return "ontology"
}

// Feature is identified by its name.
type Feature interface {
	Name() string
	Kind() Kind
	Domain() Domain
}

// OntologyImportance scores ontologies independent of the query.
type OntologyImportance interface {
	Feature
	// ComputeScores computes and caches the scores of set.
	ComputeScores(ctx context.Context, set []model.Ontology) (map[model.Ontology]float64, error)
	// Score returns the cached score of o, 0 when o was not computed.
	Score(ctx context.Context, o model.Ontology) (float64, error)
}

// TermImportance scores terms independent of the query.
type TermImportance interface {
	Feature
	ComputeScores(ctx context.Context, set []model.Term) (map[model.Term]float64, error)
	Score(ctx context.Context, t model.Term) (float64, error)
}

// OntologyRelevance scores an ontology for a query.
type OntologyRelevance interface {
	Feature
	Score(ctx context.Context, q model.Query, o model.Ontology) (float64, error)
}

// TermRelevance scores a term for a query.
type TermRelevance interface {
	Feature
	Score(ctx context.Context, q model.Query, t model.Term) (float64, error)
}

// Equal reports whether two features are the same feature.
func Equal(a, b Feature) bool {
	return a.Name() == b.Name()
}

type base struct {
	name   string
	kind   Kind
	domain Domain
}

func (b base) Name() string   { return b.name }
func (b base) Kind() Kind     { return b.kind }
func (b base) Domain() Domain { return b.domain }

// ontologyImportance caches ontology scores. The first Score call on an
// uncomputed feature computes every ontology of the collection.
type ontologyImportance struct {
	base
	compute func(ctx context.Context, set []model.Ontology) (map[model.Ontology]float64, error)
	all     func(ctx context.Context) ([]model.Ontology, error)

	mu       sync.Mutex
	computed bool
	scores   map[model.Ontology]float64
}

func newOntologyImportance(name string, all func(context.Context) ([]model.Ontology, error),
	compute func(context.Context, []model.Ontology) (map[model.Ontology]float64, error)) *ontologyImportance {
	return &ontologyImportance{
		base:    base{name: name, kind: Importance, domain: OntologyDomain},
		compute: compute,
		all:     all,
		scores:  make(map[model.Ontology]float64),
	}
}

func (f *ontologyImportance) ComputeScores(ctx context.Context, set []model.Ontology) (map[model.Ontology]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.computeLocked(ctx, set)
}

func (f *ontologyImportance) computeLocked(ctx context.Context, set []model.Ontology) (map[model.Ontology]float64, error) {
	scores, err := f.compute(ctx, set)
	if err != nil {
		return nil, err
	}
	out := make(map[model.Ontology]float64, len(set))
	for _, o := range set {
		out[o] = scores[o]
		f.scores[o] = scores[o]
	}
	f.computed = true
	return out, nil
}

func (f *ontologyImportance) Score(ctx context.Context, o model.Ontology) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.computed {
		set, err := f.all(ctx)
		if err != nil {
			return 0, err
		}
		if _, err := f.computeLocked(ctx, set); err != nil {
			return 0, err
		}
	}
	return f.scores[o], nil
}

// termImportance caches term scores per owning ontology. A term whose
// ontology has not been seen triggers computation of that ontology's
// terms.
type termImportance struct {
	base
	ontologyOf func(model.Term) model.Ontology
	terms      func(ctx context.Context, o model.Ontology) ([]model.Term, error)
	compute    func(ctx context.Context, o model.Ontology, terms []model.Term) (map[model.Term]float64, error)

	mu     sync.Mutex
	seen   map[model.Ontology]bool
	scores map[model.Term]float64
}

func (f *termImportance) ComputeScores(ctx context.Context, set []model.Term) (map[model.Term]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	groups := make(map[model.Ontology][]model.Term)
	var order []model.Ontology
	for _, t := range set {
		o := f.ontologyOf(t)
		if _, ok := groups[o]; !ok {
			order = append(order, o)
		}
		groups[o] = append(groups[o], t)
	}

	out := make(map[model.Term]float64, len(set))
	for _, o := range order {
		scores, err := f.compute(ctx, o, groups[o])
		if err != nil {
			return nil, err
		}
		for _, t := range groups[o] {
			out[t] = scores[t]
			f.scores[t] = scores[t]
		}
	}
	return out, nil
}

func (f *termImportance) Score(ctx context.Context, t model.Term) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.scores[t]; ok {
		return s, nil
	}
	o := f.ontologyOf(t)
	if f.seen[o] {
		return 0, nil
	}

	terms, err := f.terms(ctx, o)
	if err != nil {
		return 0, err
	}
	scores, err := f.compute(ctx, o, terms)
	if err != nil {
		return 0, err
	}
	for k, v := range scores {
		if _, ok := f.scores[k]; !ok {
			f.scores[k] = v
		}
	}
	f.seen[o] = true
	return f.scores[t], nil
}

type ontologyRelevance struct {
	base
	score func(ctx context.Context, q model.Query, o model.Ontology) (float64, error)
}

func (f *ontologyRelevance) Score(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
	return f.score(ctx, q, o)
}

type termRelevance struct {
	base
	score func(ctx context.Context, q model.Query, t model.Term) (float64, error)
}

func (f *termRelevance) Score(ctx context.Context, q model.Query, t model.Term) (float64, error) {
	return f.score(ctx, q, t)
}
