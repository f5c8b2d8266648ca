// Package scoring implements the statistical and graph scorers behind the
// ranking features: term statistics, PageRank, HITS, DWRank hubs,
// betweenness and structural counts.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/lovbench/lovrank/internal/cache"
	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

// BM25 parameters.
const (
	BM25K = 2.0
	BM25B = 0.75
)

// TermStats computes tf, idf, BM25 and ontology norms. Maximum
// frequencies, tf and idf values are cached in durable tables; collection
// level counts and norms are kept in memory.
type TermStats struct {
	store kstore.Store
	log   *logger.Logger

	maxFreq *cache.Store[string, int]
	tf      *cache.Store[cache.Pair, float64]
	idf     *cache.Store[string, float64]

	mu         sync.Mutex
	ontologies int
	avgSize    float64
	haveCounts bool
	sizes      map[model.Ontology]int
	norms      map[model.Ontology]float64
}

// NewTermStats opens the statistic tables on backend and preloads them.
func NewTermStats(ctx context.Context, store kstore.Store, backend *cache.Backend, log *logger.Logger) (*TermStats, error) {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("termstats")

	open := func(table string) (cache.Durable, error) {
		if backend == nil {
			return cache.Discard{}, nil
		}
		return backend.Open(table)
	}

	d, err := open(cache.TableMaxFrequencies)
	if err != nil {
		return nil, err
	}
	maxFreq, err := cache.New(ctx, cache.TableMaxFrequencies, cache.StringKeys, cache.Ints, d, log)
	if err != nil {
		return nil, err
	}

	d, err = open(cache.TableTF)
	if err != nil {
		return nil, err
	}
	tf, err := cache.New(ctx, cache.TableTF, cache.PairKeys, cache.Floats, d, log)
	if err != nil {
		return nil, err
	}

	d, err = open(cache.TableIDF)
	if err != nil {
		return nil, err
	}
	idf, err := cache.New(ctx, cache.TableIDF, cache.StringKeys, cache.Floats, d, log)
	if err != nil {
		return nil, err
	}

	return &TermStats{
		store:   store,
		log:     log,
		maxFreq: maxFreq,
		tf:      tf,
		idf:     idf,
		sizes:   make(map[model.Ontology]int),
		norms:   make(map[model.Ontology]float64),
	}, nil
}

// Close flushes and closes the durable tables.
func (s *TermStats) Close() error {
	var first error
	for _, c := range []interface{ Close() error }{s.maxFreq, s.tf, s.idf} {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MaximumFrequency returns the largest raw term frequency in o.
func (s *TermStats) MaximumFrequency(ctx context.Context, o model.Ontology) (int, error) {
	return s.maxFreq.GetOrCompute(ctx, o.URI, func(ctx context.Context) (int, error) {
		return s.store.MaximumFrequency(ctx, o)
	})
}

// TF returns the augmented term frequency 0.5 + 0.5*freq/maxFreq of t in
// o. A term that does not occur in o scores 0.
func (s *TermStats) TF(ctx context.Context, t model.Term, o model.Ontology) (float64, error) {
	return s.tf.GetOrCompute(ctx, cache.Pair{t.URI, o.URI}, func(ctx context.Context) (float64, error) {
		freq, err := s.store.TermFrequency(ctx, t, o)
		if err != nil {
			return 0, fmt.Errorf("term frequency of %s in %s: %w", t, o, err)
		}
		maxFreq, err := s.MaximumFrequency(ctx, o)
		if err != nil {
			return 0, fmt.Errorf("maximum frequency of %s: %w", o, err)
		}
		if freq == 0 || maxFreq == 0 {
			s.log.Error("Term does not occur in ontology, tf set to 0", "term", t.URI, "ontology", o.URI)
			return 0, nil
		}
		return 0.5 + 0.5*float64(freq)/float64(maxFreq), nil
	})
}

// IDF returns ln(N / n_t) where N is the number of ontologies and n_t the
// number containing t. A term found in no ontology scores 0.
func (s *TermStats) IDF(ctx context.Context, t model.Term) (float64, error) {
	return s.idf.GetOrCompute(ctx, t.URI, func(ctx context.Context) (float64, error) {
		containing, err := s.store.CountOntologiesContainingTerm(ctx, t)
		if err != nil {
			return 0, fmt.Errorf("counting ontologies containing %s: %w", t, err)
		}
		if containing == 0 {
			s.log.Error("Term belongs to no ontology, idf set to 0", "term", t.URI)
			return 0, nil
		}
		total, _, err := s.counts(ctx)
		if err != nil {
			return 0, err
		}
		return math.Log(float64(total) / float64(containing)), nil
	})
}

// TFIDF returns TF(t, o) * IDF(t).
func (s *TermStats) TFIDF(ctx context.Context, t model.Term, o model.Ontology) (float64, error) {
	tf, err := s.TF(ctx, t, o)
	if err != nil {
		return 0, err
	}
	idf, err := s.IDF(ctx, t)
	if err != nil {
		return 0, err
	}
	return tf * idf, nil
}

// BM25 returns idf * (tf*k + 1) / (tf + k*(1 - b + b*|o|/avg|o|)).
func (s *TermStats) BM25(ctx context.Context, t model.Term, o model.Ontology) (float64, error) {
	tf, err := s.TF(ctx, t, o)
	if err != nil {
		return 0, err
	}
	idf, err := s.IDF(ctx, t)
	if err != nil {
		return 0, err
	}
	size, err := s.size(ctx, o)
	if err != nil {
		return 0, err
	}
	_, avg, err := s.counts(ctx)
	if err != nil {
		return 0, err
	}

	lengthNorm := 1 - BM25B
	if avg > 0 {
		lengthNorm += BM25B * float64(size) / avg
	}
	return idf * (tf*BM25K + 1) / (tf + BM25K*lengthNorm), nil
}

// OntologyNorm returns the euclidean norm of the tf-idf vector of o.
func (s *TermStats) OntologyNorm(ctx context.Context, o model.Ontology) (float64, error) {
	s.mu.Lock()
	norm, ok := s.norms[o]
	s.mu.Unlock()
	if ok {
		return norm, nil
	}

	terms, err := s.store.AllTerms(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("listing terms of %s: %w", o, err)
	}
	sum := 0.0
	for _, t := range terms {
		w, err := s.TFIDF(ctx, t, o)
		if err != nil {
			return 0, err
		}
		sum += w * w
	}
	norm = math.Sqrt(sum)

	s.mu.Lock()
	s.norms[o] = norm
	s.mu.Unlock()
	return norm, nil
}

// CountOntologies returns the memoised number of ontologies.
func (s *TermStats) CountOntologies(ctx context.Context) (int, error) {
	n, _, err := s.counts(ctx)
	return n, err
}

func (s *TermStats) counts(ctx context.Context) (int, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.haveCounts {
		return s.ontologies, s.avgSize, nil
	}

	n, err := s.store.CountOntologies(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("counting ontologies: %w", err)
	}
	avg, err := s.store.AverageOntologySize(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("average ontology size: %w", err)
	}
	s.ontologies, s.avgSize, s.haveCounts = n, avg, true
	return n, avg, nil
}

func (s *TermStats) size(ctx context.Context, o model.Ontology) (int, error) {
	s.mu.Lock()
	n, ok := s.sizes[o]
	s.mu.Unlock()
	if ok {
		return n, nil
	}

	n, err := s.store.OntologySize(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("size of %s: %w", o, err)
	}
	s.mu.Lock()
	s.sizes[o] = n
	s.mu.Unlock()
	return n, nil
}
