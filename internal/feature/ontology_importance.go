package feature

import (
	"context"
	"fmt"

	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/scoring"
)

// pageRank scores ontologies by PageRank over a relation graph. Ontologies
// outside the graph score 0.
func pageRank(d *Deps, name string, relations scoring.Relations, normalize bool) *ontologyImportance {
	return newOntologyImportance(name, d.Store.AllOntologies, func(ctx context.Context, _ []model.Ontology) (map[model.Ontology]float64, error) {
		pairs, err := relations(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: loading relations: %w", name, err)
		}

		scores := make(map[model.Ontology]float64)
		for key, score := range scoring.NewPageRank().Run(scoring.RelationGraph(pairs)) {
			scores[model.Ontology{URI: key}] = score
		}
		if normalize {
			scores = scoring.ZScore(scores)
		}
		return scores, nil
	})
}

// PageRankImports is PageRank over explicit owl:imports.
func PageRankImports(d *Deps) OntologyImportance {
	return pageRank(d, "PageRank_OwlImports_O", scoring.OwlImportRelations(d.Store), false)
}

// PageRankImplicitImports is PageRank over usage-derived imports.
func PageRankImplicitImports(d *Deps) OntologyImportance {
	return pageRank(d, "PageRank_ImplicitImports_O", scoring.ImplicitImportRelations(d.Store), false)
}

// PageRankVoaf is PageRank over the VOAF relations of the catalogue.
func PageRankVoaf(d *Deps) OntologyImportance {
	return pageRank(d, "PageRank_Voaf_O", scoring.VoafRelations(d.Store), false)
}

// Authorativeness is the DWRank authority: z-score normalised PageRank
// over implicit imports.
func Authorativeness(d *Deps) OntologyImportance {
	return pageRank(d, "Authorativeness_O", scoring.ImplicitImportRelations(d.Store), true)
}

func hubExtreme(d *Deps, name string, pick func(scoring.HubSummary) float64) *ontologyImportance {
	return newOntologyImportance(name, d.Store.AllOntologies, func(ctx context.Context, set []model.Ontology) (map[model.Ontology]float64, error) {
		scores := make(map[model.Ontology]float64, len(set))
		for _, o := range set {
			s, err := d.Hub.Summary(ctx, o)
			if err != nil {
				return nil, err
			}
			scores[o] = pick(s)
		}
		return scores, nil
	})
}

// MaxHub is the largest hub score of an ontology's terms.
func MaxHub(d *Deps) OntologyImportance {
	return hubExtreme(d, "Max_Hub_O", func(s scoring.HubSummary) float64 { return s.Max })
}

// MinHub is the smallest hub score of an ontology's terms.
func MinHub(d *Deps) OntologyImportance {
	return hubExtreme(d, "Min_Hub_O", func(s scoring.HubSummary) float64 { return s.Min })
}
