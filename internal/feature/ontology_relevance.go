package feature

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/lovbench/lovrank/internal/cache"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/scoring"
)

// Class and property match weights.
const (
	ExactMatchWeight   = 0.6
	PartialMatchWeight = 0.4
)

func ontologyRelevanceFeature(name string, score func(context.Context, model.Query, model.Ontology) (float64, error)) *ontologyRelevance {
	return &ontologyRelevance{
		base:  base{name: name, kind: Relevance, domain: OntologyDomain},
		score: score,
	}
}

// sumOverMatches sums a per-term statistic over the terms of o matching q.
func sumOverMatches(d *Deps, name string, stat func(context.Context, model.Term, model.Ontology) (float64, error)) *ontologyRelevance {
	return ontologyRelevanceFeature(name, func(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
		terms, err := d.Store.TermQueryMatch(ctx, q, o, model.AnyType)
		if err != nil {
			return 0, fmt.Errorf("%s: matching terms: %w", name, err)
		}
		sum := 0.0
		for _, t := range terms {
			v, err := stat(ctx, t, o)
			if err != nil {
				return 0, err
			}
			sum += v
		}
		return sum, nil
	})
}

// meanOverClasses averages a per-class score over the classes of o
// matching q.
func meanOverClasses(d *Deps, name string, score func(context.Context, model.Term, model.Ontology) (float64, error)) *ontologyRelevance {
	return ontologyRelevanceFeature(name, func(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
		classes, err := d.Store.TermQueryMatch(ctx, q, o, model.ClassType)
		if err != nil {
			return 0, fmt.Errorf("%s: matching classes: %w", name, err)
		}
		if len(classes) == 0 {
			return 0, nil
		}
		sum := 0.0
		for _, t := range classes {
			v, err := score(ctx, t, o)
			if err != nil {
				return 0, err
			}
			sum += v
		}
		return sum / float64(len(classes)), nil
	})
}

// TFOntology sums the tf of the matched terms.
func TFOntology(d *Deps) OntologyRelevance {
	return sumOverMatches(d, "TF_O", d.Stats.TF)
}

// IDFOntology sums the idf of the matched terms.
func IDFOntology(d *Deps) OntologyRelevance {
	return sumOverMatches(d, "IDF_O", func(ctx context.Context, t model.Term, _ model.Ontology) (float64, error) {
		return d.Stats.IDF(ctx, t)
	})
}

// TFIDFOntology sums the tf-idf of the matched terms.
func TFIDFOntology(d *Deps) OntologyRelevance {
	return sumOverMatches(d, "TF_IDF_O", d.Stats.TFIDF)
}

// BM25Ontology sums the BM25 of the matched terms.
func BM25Ontology(d *Deps) OntologyRelevance {
	return sumOverMatches(d, "BM25_O", d.Stats.BM25)
}

// BetweennessOntology averages the betweenness of the matched classes.
func BetweennessOntology(d *Deps) OntologyRelevance {
	return meanOverClasses(d, "Betweenness_O", d.Betweenness.Score)
}

// DensityOntology averages the density of the matched classes.
func DensityOntology(d *Deps) OntologyRelevance {
	return meanOverClasses(d, "Density_O", func(ctx context.Context, t model.Term, _ model.Ontology) (float64, error) {
		return d.Structure.Density(ctx, t)
	})
}

// labelMatch weighs exact and partial label hits of every query word.
func labelMatch(name string, labels func(context.Context, model.Query, model.Ontology) (map[model.Term][]string, error)) *ontologyRelevance {
	return ontologyRelevanceFeature(name, func(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
		matched, err := labels(ctx, q, o)
		if err != nil {
			return 0, fmt.Errorf("%s: matching labels: %w", name, err)
		}

		exact, partial := 0, 0
		for _, w := range q.Words {
			lower := strings.ToLower(w)
			for _, ls := range matched {
				switch {
				case hasLabel(ls, lower):
					exact++
				case anyContainsFold(ls, w):
					partial++
				}
			}
		}
		return ExactMatchWeight*float64(exact) + PartialMatchWeight*float64(partial), nil
	})
}

// ClassMatch scores label matches of classes.
func ClassMatch(d *Deps) OntologyRelevance {
	return labelMatch("Class_Match_O", d.Store.ClassQueryMatchLabels)
}

// PropertyMatch scores label matches of properties.
func PropertyMatch(d *Deps) OntologyRelevance {
	return labelMatch("Property_Match_O", d.Store.PropertyQueryMatchLabels)
}

// SemanticSimilarity is the mean shortest path length between the matched
// classes in the undirected ontology graph. A single match scores 1.
func SemanticSimilarity(d *Deps) OntologyRelevance {
	var (
		mu    sync.Mutex
		paths = make(map[model.Ontology]*scoring.ShortestPaths)
	)
	shortest := func(ctx context.Context, o model.Ontology) (*scoring.ShortestPaths, error) {
		mu.Lock()
		defer mu.Unlock()
		if sp, ok := paths[o]; ok {
			return sp, nil
		}
		triples, err := d.Store.OntologyGraph(ctx, o, false)
		if err != nil {
			return nil, fmt.Errorf("loading graph of %s: %w", o, err)
		}
		sp := scoring.NewShortestPaths(scoring.OntologyGraph(triples, false))
		paths[o] = sp
		return sp, nil
	}

	return ontologyRelevanceFeature("Semantic_Similarity_O", func(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
		classes, err := d.Store.TermQueryMatch(ctx, q, o, model.ClassType)
		if err != nil {
			return 0, fmt.Errorf("Semantic_Similarity_O: matching classes: %w", err)
		}
		switch len(classes) {
		case 0:
			return 0, nil
		case 1:
			return 1, nil
		}

		sp, err := shortest(ctx, o)
		if err != nil {
			return 0, err
		}

		sum, pairs := 0.0, 0
		for i := 0; i < len(classes)-1; i++ {
			for j := i + 1; j < len(classes); j++ {
				from, to := classes[i].URI, classes[j].URI
				if !sp.Has(from) || !sp.Has(to) {
					pairs++
					continue
				}
				if from == to {
					sum++
					continue
				}
				sum += sp.Distance(from, to)
				pairs++
			}
		}
		if pairs == 0 {
			return 0, nil
		}
		return sum / float64(pairs), nil
	})
}

// VSMOntology is the cosine similarity between the query vector and the
// tf-idf vector of the ontology. Scores are cached per (query, ontology).
func VSMOntology(d *Deps) OntologyRelevance {
	var (
		mu      sync.Mutex
		matches = make(map[string]map[model.Ontology][]model.Term)
	)
	wordMatch := func(ctx context.Context, word string) (map[model.Ontology][]model.Term, error) {
		mu.Lock()
		defer mu.Unlock()
		if m, ok := matches[word]; ok {
			return m, nil
		}
		m, err := d.Store.QueryMatch(ctx, model.WordQuery(word))
		if err != nil {
			return nil, fmt.Errorf("VSM_O: matching %q: %w", word, err)
		}
		matches[word] = m
		return m, nil
	}

	compute := func(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
		freq := make(map[string]int, len(q.Words))
		maxFreq := 0
		for _, w := range q.Words {
			freq[w]++
			maxFreq = max(maxFreq, freq[w])
		}

		vsm, queryNorm := 0.0, 0.0
		for _, w := range q.Words {
			m, err := wordMatch(ctx, w)
			if err != nil {
				return 0, err
			}

			ontologyWeight, queryWeight := 0.0, 0.0
			if terms := m[o]; len(terms) > 0 {
				for _, t := range terms {
					v, err := d.Stats.TFIDF(ctx, t, o)
					if err != nil {
						return 0, err
					}
					ontologyWeight += v
				}
				n, err := d.Stats.CountOntologies(ctx)
				if err != nil {
					return 0, err
				}
				queryWeight = float64(freq[w]) / float64(maxFreq) * math.Log(float64(n)/float64(len(m)))
			}

			queryNorm += queryWeight * queryWeight
			vsm += ontologyWeight * queryWeight
		}

		if vsm > 0 {
			ontologyNorm, err := d.Stats.OntologyNorm(ctx, o)
			if err != nil {
				return 0, err
			}
			if queryNorm = math.Sqrt(queryNorm); ontologyNorm > 0 && queryNorm > 0 {
				vsm /= ontologyNorm * queryNorm
			}
		}
		return vsm, nil
	}

	return ontologyRelevanceFeature("VSM_O", func(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
		return d.VSM.GetOrCompute(ctx, cache.Pair{q.String(), o.URI}, func(ctx context.Context) (float64, error) {
			return compute(ctx, q, o)
		})
	})
}

func hitsFeature(name string, score func(context.Context, model.Query, model.Ontology) (float64, error)) *ontologyRelevance {
	return ontologyRelevanceFeature(name, score)
}

// HITSAuthorityImports is the HITS authority over explicit imports.
func HITSAuthorityImports(d *Deps) OntologyRelevance {
	return hitsFeature("HITS_Authority_OwlImports_O", d.HITSImports.Authority)
}

// HITSHubImports is the HITS hub over explicit imports.
func HITSHubImports(d *Deps) OntologyRelevance {
	return hitsFeature("HITS_Hub_OwlImports_O", d.HITSImports.Hub)
}

// HITSAuthorityVoaf is the HITS authority over VOAF relations.
func HITSAuthorityVoaf(d *Deps) OntologyRelevance {
	return hitsFeature("HITS_Authority_Voaf_O", d.HITSVoaf.Authority)
}

// HITSHubVoaf is the HITS hub over VOAF relations.
func HITSHubVoaf(d *Deps) OntologyRelevance {
	return hitsFeature("HITS_Hub_Voaf_O", d.HITSVoaf.Hub)
}

// LOVOntologyMatch is the LOV vocabulary search score. API failures are
// logged and score 0.
func LOVOntologyMatch(d *Deps) OntologyRelevance {
	const name = "LOV_Match_O"
	return ontologyRelevanceFeature(name, func(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
		v, err := d.LOV.VocabMatch(ctx, q, o)
		if err != nil {
			d.Log.Warn("LOV score unavailable, using 0", "feature", name, "query", q.String(), "error", err)
			return 0, nil
		}
		return v, nil
	})
}

func hasLabel(labels []string, lower string) bool {
	for _, l := range labels {
		if l == lower {
			return true
		}
	}
	return false
}

func anyContainsFold(labels []string, word string) bool {
	w := strings.ToLower(word)
	for _, l := range labels {
		if strings.Contains(strings.ToLower(l), w) {
			return true
		}
	}
	return false
}
