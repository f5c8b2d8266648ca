package feature

import (
	"context"
	"fmt"

	"github.com/lovbench/lovrank/internal/cache"
	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/errors"
	"github.com/lovbench/lovrank/internal/pkg/logger"
	"github.com/lovbench/lovrank/internal/scoring"
)

// LOVScores answers LOV search API scores.
type LOVScores interface {
	TermMatch(ctx context.Context, q model.Query, t model.Term) (float64, error)
	TermPopularity(ctx context.Context, q model.Query, t model.Term) (float64, error)
	VocabMatch(ctx context.Context, q model.Query, o model.Ontology) (float64, error)
}

// LabelSearcher answers full-text label searches keyed by subject URI.
type LabelSearcher interface {
	Search(ctx context.Context, q model.Query) (map[string]float64, error)
}

// Deps holds the scorers shared by the features of one run.
type Deps struct {
	Store       kstore.Store
	Prefixes    *model.Prefixes
	Stats       *scoring.TermStats
	Structure   *scoring.Structure
	Hub         *scoring.Hub
	Betweenness *scoring.Betweenness
	HITSImports *scoring.HITS
	HITSVoaf    *scoring.HITS
	VSM         *cache.Store[cache.Pair, float64]

	// LOV and Labels are optional; their features are only registered
	// when set.
	LOV    LOVScores
	Labels LabelSearcher

	Log *logger.Logger
}

// NewDeps builds the scorers over store. Durable tables are opened on
// backend, which may be nil.
func NewDeps(ctx context.Context, store kstore.Store, prefixes *model.Prefixes, backend *cache.Backend, log *logger.Logger) (*Deps, error) {
	if log == nil {
		log = logger.Default()
	}

	stats, err := scoring.NewTermStats(ctx, store, backend, log)
	if err != nil {
		return nil, fmt.Errorf("creating term statistics: %w", err)
	}

	var durable cache.Durable = cache.Discard{}
	if backend != nil {
		if durable, err = backend.Open(cache.TableVSM); err != nil {
			return nil, fmt.Errorf("opening %s: %w", cache.TableVSM, err)
		}
	}
	vsm, err := cache.New(ctx, cache.TableVSM, cache.PairKeys, cache.Floats, durable, log)
	if err != nil {
		return nil, err
	}

	return &Deps{
		Store:       store,
		Prefixes:    prefixes,
		Stats:       stats,
		Structure:   scoring.NewStructure(store),
		Hub:         scoring.NewHub(store, prefixes),
		Betweenness: scoring.NewBetweenness(store, prefixes),
		HITSImports: scoring.NewHITS(store, scoring.OwlImportRelations(store), log),
		HITSVoaf:    scoring.NewHITS(store, scoring.VoafRelations(store), log),
		VSM:         vsm,
		Log:         log.WithComponent("features"),
	}, nil
}

// Close closes the durable tables held by d.
func (d *Deps) Close() error {
	var first error
	if d.Stats != nil {
		first = d.Stats.Close()
	}
	if d.VSM != nil {
		if err := d.VSM.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Registry holds the features of a run in registration order.
type Registry struct {
	features []Feature
	byName   map[string]Feature
}

// NewRegistry registers every feature d can serve.
func NewRegistry(d *Deps) *Registry {
	r := &Registry{byName: make(map[string]Feature)}

	r.add(
		PageRankImports(d),
		PageRankImplicitImports(d),
		PageRankVoaf(d),
		Authorativeness(d),
		MaxHub(d),
		MinHub(d),

		TFOntology(d),
		IDFOntology(d),
		TFIDFOntology(d),
		BM25Ontology(d),
		VSMOntology(d),
		BetweennessOntology(d),
		ClassMatch(d),
		PropertyMatch(d),
		DensityOntology(d),
		SemanticSimilarity(d),
		HITSAuthorityImports(d),
		HITSHubImports(d),
		HITSAuthorityVoaf(d),
		HITSHubVoaf(d),
	)
	if d.LOV != nil {
		r.add(LOVOntologyMatch(d))
	}

	r.add(
		TFTerm(d),
		IDFTerm(d),
		TFIDFTerm(d),
		BM25Term(d),
		StructureCount(d, "Subclasses_T", scoring.CountSubClasses),
		StructureCount(d, "Superclasses_T", scoring.CountSuperClasses),
		StructureCount(d, "Subproperties_T", scoring.CountSubProperties),
		StructureCount(d, "Superproperties_T", scoring.CountSuperProperties),
		StructureCount(d, "Siblings_T", scoring.CountSiblings),
		StructureCount(d, "Relations_T", scoring.CountRelations),
		DensityTerm(d),
		BetweennessTerm(d),
		HubTerm(d),

		BooleanMatch(d),
		TextRelevancy(d),
		QueryLength(),
	)
	if d.Labels != nil {
		r.add(LabelSearch(d))
	}
	if d.LOV != nil {
		r.add(LOVTermMatch(d), LOVTermPopularity(d))
	}
	r.add(VSMTerm())

	return r
}

func (r *Registry) add(features ...Feature) {
	for _, f := range features {
		if _, ok := r.byName[f.Name()]; ok {
			continue
		}
		r.features = append(r.features, f)
		r.byName[f.Name()] = f
	}
}

// All returns every registered feature.
func (r *Registry) All() []Feature {
	return append([]Feature(nil), r.features...)
}

// Get returns the feature called name.
func (r *Registry) Get(name string) (Feature, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// Names returns the registered feature names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.features))
	for i, f := range r.features {
		names[i] = f.Name()
	}
	return names
}

// ForKind returns the features able to score entities of the given
// search kind: every feature for term search, the ontology domain only
// for ontology search.
func (r *Registry) ForKind(kind model.QueryKind) []Feature {
	if kind != model.OntologySearch {
		return r.All()
	}
	var out []Feature
	for _, f := range r.features {
		if f.Domain() == OntologyDomain {
			out = append(out, f)
		}
	}
	return out
}

// Select returns the named features in the given order, or ForKind(kind)
// when names is empty. Duplicates are dropped.
func (r *Registry) Select(names []string, kind model.QueryKind) ([]Feature, error) {
	if len(names) == 0 {
		return r.ForKind(kind), nil
	}

	seen := make(map[string]bool, len(names))
	out := make([]Feature, 0, len(names))
	for _, n := range names {
		f, ok := r.byName[n]
		if !ok {
			return nil, errors.ValidationError(fmt.Sprintf("unknown feature %q", n))
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, f)
	}
	return out, nil
}
