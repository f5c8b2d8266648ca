// Package search provides full-text search over the literal labels of the
// collection, backing the label search relevance feature.
package search

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

const (
	// labelsField holds the concatenated literals of a subject.
	labelsField = "labels"

	// DefaultBatchSize is the number of documents committed at once.
	DefaultBatchSize = 1000

	// MaxResults bounds the hits returned for one query.
	MaxResults = 10000
)

type labelDocument struct {
	Labels string `json:"labels"`
}

// LabelIndex is a bleve index with one document per subject URI.
type LabelIndex struct {
	index bleve.Index
	log   *logger.Logger
}

// OpenLabelIndex opens the index at path, creating it when missing. An
// empty path keeps the index in memory.
func OpenLabelIndex(path string, log *logger.Logger) (*LabelIndex, error) {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("labels")

	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("creating in-memory label index: %w", err)
		}
		return &LabelIndex{index: idx, log: log}, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening label index %s: %w", path, err)
		}
		return &LabelIndex{index: idx, log: log}, nil
	}

	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("creating label index %s: %w", path, err)
	}
	return &LabelIndex{index: idx, log: log}, nil
}

func newMapping() mapping.IndexMapping {
	labels := bleve.NewTextFieldMapping()
	labels.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(labelsField, labels)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Build indexes the literals of every subject in store. It returns the
// number of documents written.
func (l *LabelIndex) Build(ctx context.Context, store kstore.Store) (int, error) {
	literals, err := store.Literals(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading literals: %w", err)
	}

	subjects := make([]string, 0, len(literals))
	for s := range literals {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	batch := l.index.NewBatch()
	written := 0
	for _, s := range subjects {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		doc := labelDocument{Labels: strings.Join(literals[s], " ")}
		if err := batch.Index(s, doc); err != nil {
			return written, fmt.Errorf("indexing %s: %w", s, err)
		}
		if batch.Size() >= DefaultBatchSize {
			if err := l.index.Batch(batch); err != nil {
				return written, fmt.Errorf("committing batch: %w", err)
			}
			written += batch.Size()
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := l.index.Batch(batch); err != nil {
			return written, fmt.Errorf("committing batch: %w", err)
		}
		written += batch.Size()
	}

	l.log.Info("Label index built", "documents", written)
	return written, nil
}

// Search returns the relevance score of every subject whose labels match
// any word of q.
func (l *LabelIndex) Search(ctx context.Context, q model.Query) (map[string]float64, error) {
	scores := make(map[string]float64)
	if len(q.Words) == 0 {
		return scores, nil
	}

	words := make([]query.Query, 0, len(q.Words))
	for _, w := range q.Words {
		mq := bleve.NewMatchQuery(w)
		mq.SetField(labelsField)
		words = append(words, mq)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(words...), MaxResults, 0, false)
	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching labels for %q: %w", q.Text(), err)
	}
	for _, hit := range res.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}

// Count returns the number of indexed documents.
func (l *LabelIndex) Count() (uint64, error) {
	return l.index.DocCount()
}

// Close closes the index.
func (l *LabelIndex) Close() error {
	return l.index.Close()
}
