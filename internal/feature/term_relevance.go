package feature

import (
	"context"
	"fmt"
	"sync"

	"github.com/lovbench/lovrank/internal/model"
)

func termRelevanceFeature(name string, score func(context.Context, model.Query, model.Term) (float64, error)) *termRelevance {
	return &termRelevance{
		base:  base{name: name, kind: Relevance, domain: TermDomain},
		score: score,
	}
}

// BooleanMatch is 1 when the term matches the query in its ontology.
func BooleanMatch(d *Deps) TermRelevance {
	return termRelevanceFeature("Boolean_Match_T", func(ctx context.Context, q model.Query, t model.Term) (float64, error) {
		terms, err := d.Store.TermQueryMatch(ctx, q, d.Prefixes.OntologyOf(t.URI), model.AnyType)
		if err != nil {
			return 0, fmt.Errorf("Boolean_Match_T: %w", err)
		}
		for _, m := range terms {
			if m == t {
				return 1, nil
			}
		}
		return 0, nil
	})
}

// TextRelevancy counts the query words found in the matching labels of
// the term.
func TextRelevancy(d *Deps) TermRelevance {
	return termRelevanceFeature("Text_Relevancy_T", func(ctx context.Context, q model.Query, t model.Term) (float64, error) {
		labels, err := d.Store.TermQueryMatchLabels(ctx, q, t)
		if err != nil {
			return 0, fmt.Errorf("Text_Relevancy_T: %w", err)
		}
		n := 0
		for _, w := range q.Words {
			if anyContainsFold(labels, w) {
				n++
			}
		}
		return float64(n), nil
	})
}

// QueryLength is the number of query words.
func QueryLength() TermRelevance {
	return termRelevanceFeature("Query_Length_Q", func(_ context.Context, q model.Query, _ model.Term) (float64, error) {
		return float64(len(q.Words)), nil
	})
}

// LabelSearch is the full-text score of the term's labels. Results are
// kept per query.
func LabelSearch(d *Deps) TermRelevance {
	var (
		mu      sync.Mutex
		results = make(map[string]map[string]float64)
	)
	return termRelevanceFeature("LabelSearch_T", func(ctx context.Context, q model.Query, t model.Term) (float64, error) {
		mu.Lock()
		defer mu.Unlock()

		hits, ok := results[q.Key()]
		if !ok {
			var err error
			if hits, err = d.Labels.Search(ctx, q); err != nil {
				return 0, fmt.Errorf("LabelSearch_T: %w", err)
			}
			results[q.Key()] = hits
		}
		return hits[t.URI], nil
	})
}

func lovTermFeature(d *Deps, name string, score func(context.Context, model.Query, model.Term) (float64, error)) *termRelevance {
	return termRelevanceFeature(name, func(ctx context.Context, q model.Query, t model.Term) (float64, error) {
		v, err := score(ctx, q, t)
		if err != nil {
			d.Log.Warn("LOV score unavailable, using 0", "feature", name, "query", q.String(), "error", err)
			return 0, nil
		}
		return v, nil
	})
}

// LOVTermMatch is the LOV term search match score.
func LOVTermMatch(d *Deps) TermRelevance {
	return lovTermFeature(d, "LOV_Match_T", d.LOV.TermMatch)
}

// LOVTermPopularity is the LOV term search popularity score.
func LOVTermPopularity(d *Deps) TermRelevance {
	return lovTermFeature(d, "LOV_Popularity_T", d.LOV.TermPopularity)
}

// VSMTerm is kept for column compatibility and always scores 0.
func VSMTerm() TermRelevance {
	return termRelevanceFeature("VSM_Term", func(context.Context, model.Query, model.Term) (float64, error) {
		return 0, nil
	})
}
