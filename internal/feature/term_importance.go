package feature

import (
	"context"
	"fmt"

	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/scoring"
)

func newTermImportance(d *Deps, name string, compute func(context.Context, model.Ontology, []model.Term) (map[model.Term]float64, error)) *termImportance {
	return &termImportance{
		base: base{name: name, kind: Importance, domain: TermDomain},
		ontologyOf: func(t model.Term) model.Ontology {
			return d.Prefixes.OntologyOf(t.URI)
		},
		terms:   d.Store.AllTerms,
		compute: compute,
		seen:    make(map[model.Ontology]bool),
		scores:  make(map[model.Term]float64),
	}
}

// perTerm lifts a per-term score into a batch computation.
func perTerm(d *Deps, name string, score func(context.Context, model.Term, model.Ontology) (float64, error)) *termImportance {
	return newTermImportance(d, name, func(ctx context.Context, o model.Ontology, terms []model.Term) (map[model.Term]float64, error) {
		out := make(map[model.Term]float64, len(terms))
		for _, t := range terms {
			v, err := score(ctx, t, o)
			if err != nil {
				return nil, fmt.Errorf("%s of %s: %w", name, t, err)
			}
			out[t] = v
		}
		return out, nil
	})
}

// TFTerm is the augmented term frequency of a term in its ontology.
func TFTerm(d *Deps) TermImportance {
	return perTerm(d, "TF_T", d.Stats.TF)
}

// IDFTerm is the inverse document frequency of a term.
func IDFTerm(d *Deps) TermImportance {
	return perTerm(d, "IDF_T", func(ctx context.Context, t model.Term, _ model.Ontology) (float64, error) {
		return d.Stats.IDF(ctx, t)
	})
}

// TFIDFTerm is tf times idf of a term in its ontology.
func TFIDFTerm(d *Deps) TermImportance {
	return perTerm(d, "TF_IDF_T", d.Stats.TFIDF)
}

// BM25Term is the BM25 weight of a term in its ontology.
func BM25Term(d *Deps) TermImportance {
	return perTerm(d, "BM25_T", d.Stats.BM25)
}

// StructureCount counts one kind of structural neighbour of a term.
func StructureCount(d *Deps, name string, c scoring.Count) TermImportance {
	return perTerm(d, name, func(ctx context.Context, t model.Term, _ model.Ontology) (float64, error) {
		n, err := d.Structure.Count(ctx, c, t)
		return float64(n), err
	})
}

// DensityTerm is the weighted sum of a term's structural counts.
func DensityTerm(d *Deps) TermImportance {
	return perTerm(d, "Density_T", func(ctx context.Context, t model.Term, _ model.Ontology) (float64, error) {
		return d.Structure.Density(ctx, t)
	})
}

// BetweennessTerm is the betweenness centrality of a term in the graph of
// its ontology.
func BetweennessTerm(d *Deps) TermImportance {
	return perTerm(d, "Betweenness_T", d.Betweenness.Score)
}

// HubTerm is the DWRank hub score of a term.
func HubTerm(d *Deps) TermImportance {
	return perTerm(d, "Hub_T", d.Hub.Score)
}
