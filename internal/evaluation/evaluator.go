// Package evaluation treats each feature column of an extracted matrix as
// a ranker and measures it against the ground truth.
package evaluation

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/lovbench/lovrank/internal/groundtruth"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/errors"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

// Scores is a combined feature table read back from disk.
type Scores struct {
	Kind     model.QueryKind
	Features []string

	queries []model.Query
	// rows[query key] holds the entities of a query with one score per
	// feature column.
	rows map[string][]scoredEntity
}

type scoredEntity struct {
	entity string
	scores []float64
}

// Queries returns the queries of the table in first-seen order.
func (s *Scores) Queries() []model.Query {
	return slices.Clone(s.queries)
}

// ReadScoresFile reads a combined CSV written by the extractor.
func ReadScoresFile(path string, kind model.QueryKind) (*Scores, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IOError("opening feature table", err)
	}
	defer f.Close()
	return ReadScores(f, kind)
}

// ReadScores reads a "Query,RankingElement,<feature>..." table.
func ReadScores(r io.Reader, kind model.QueryKind) (*Scores, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "reading feature table header", err)
	}
	if len(header) < 3 || header[0] != "Query" || header[1] != "RankingElement" {
		return nil, errors.ValidationError(fmt.Sprintf("unexpected feature table header %v", header))
	}

	s := &Scores{
		Kind:     kind,
		Features: slices.Clone(header[2:]),
		rows:     make(map[string][]scoredEntity),
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.CodeValidation, "malformed feature table", err)
		}

		q := parseQuery(kind, rec[0])
		e := scoredEntity{entity: rec[1], scores: make([]float64, len(s.Features))}
		for i := range s.Features {
			v, err := strconv.ParseFloat(rec[2+i], 64)
			if err != nil {
				return nil, errors.ValidationError(fmt.Sprintf("line %d: invalid %s score %q", line, s.Features[i], rec[2+i]))
			}
			e.scores[i] = v
		}

		k := q.Key()
		if _, ok := s.rows[k]; !ok {
			s.queries = append(s.queries, q)
		}
		s.rows[k] = append(s.rows[k], e)
	}
	return s, nil
}

func parseQuery(kind model.QueryKind, s string) model.Query {
	if kind == model.OntologySearch {
		return model.ParseOntologyQuery(s)
	}
	return model.ParseTermQuery(s)
}

// Evaluator scores feature rankings against relevance judgments.
type Evaluator struct {
	judgments *groundtruth.Table
	ks        []int
	log       *logger.Logger
}

// NewEvaluator creates an evaluator reporting metrics at the cutoffs ks.
func NewEvaluator(judgments *groundtruth.Table, ks []int, log *logger.Logger) *Evaluator {
	if len(ks) == 0 {
		ks = DefaultKs
	}
	if log == nil {
		log = logger.Default()
	}
	return &Evaluator{judgments: judgments, ks: ks, log: log.WithComponent("evaluation")}
}

// Rank orders the entities of q by the score of feature, highest first.
// Equal scores are ordered by entity URI.
func (e *Evaluator) Rank(s *Scores, feature string, q model.Query) ([]Ranked, error) {
	col := slices.Index(s.Features, feature)
	if col < 0 {
		return nil, errors.ValidationError(fmt.Sprintf("feature %s is not in the table", feature))
	}

	entities := s.rows[q.Key()]
	ranking := make([]Ranked, len(entities))
	for i, se := range entities {
		rel, _ := e.judgments.Relevance(q, se.entity)
		ranking[i] = Ranked{Entity: se.entity, Score: se.scores[col], Relevance: rel}
	}
	slices.SortFunc(ranking, func(a, b Ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Entity, b.Entity)
	})
	return ranking, nil
}

// EvaluateQuery evaluates the ranking of one feature for one query.
func (e *Evaluator) EvaluateQuery(s *Scores, feature string, q model.Query) (*QueryResult, error) {
	ranking, err := e.Rank(s, feature, q)
	if err != nil {
		return nil, err
	}

	relevances := make([]int, len(ranking))
	for i, r := range ranking {
		relevances[i] = r.Relevance
	}

	result := &QueryResult{
		Feature:   feature,
		Query:     q.String(),
		Ranking:   ranking,
		NDCG:      make(map[int]float64),
		Recall:    make(map[int]float64),
		Precision: make(map[int]float64),
		MRR:       MRR(relevances, RelevanceThreshold),
		AP:        AveragePrecision(relevances, RelevanceThreshold),
	}
	for _, k := range e.ks {
		result.NDCG[k] = NDCG(relevances, k)
		result.Recall[k] = Recall(relevances, k, RelevanceThreshold)
		result.Precision[k] = Precision(relevances, k, RelevanceThreshold)
	}
	return result, nil
}

// EvaluateFeature evaluates one feature over every query of s.
func (e *Evaluator) EvaluateFeature(s *Scores, feature string) ([]*QueryResult, error) {
	results := make([]*QueryResult, 0, len(s.queries))
	for _, q := range s.queries {
		r, err := e.EvaluateQuery(s, feature, q)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Evaluate summarises every feature column of s in column order.
func (e *Evaluator) Evaluate(s *Scores) ([]*Summary, error) {
	if s.Kind != e.judgments.Kind {
		return nil, errors.ValidationError(fmt.Sprintf("feature table is %s mode but ground truth is %s mode", s.Kind, e.judgments.Kind))
	}

	summaries := make([]*Summary, 0, len(s.Features))
	for _, f := range s.Features {
		results, err := e.EvaluateFeature(s, f)
		if err != nil {
			return nil, err
		}
		summary := Summarize(f, results)
		e.log.Debug("Evaluated feature", "feature", f, "queries", summary.QueryCount, "map", summary.MAP)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Summarize aggregates results across queries.
func Summarize(feature string, results []*QueryResult) *Summary {
	summary := &Summary{
		Feature:       feature,
		QueryCount:    len(results),
		MeanNDCG:      make(map[int]float64),
		MeanRecall:    make(map[int]float64),
		MeanPrecision: make(map[int]float64),
	}
	if len(results) == 0 {
		return summary
	}

	for _, r := range results {
		summary.MeanMRR += r.MRR
		summary.MAP += r.AP

		for k, v := range r.NDCG {
			summary.MeanNDCG[k] += v
		}
		for k, v := range r.Recall {
			summary.MeanRecall[k] += v
		}
		for k, v := range r.Precision {
			summary.MeanPrecision[k] += v
		}
	}

	n := float64(len(results))
	summary.MeanMRR /= n
	summary.MAP /= n

	for k := range summary.MeanNDCG {
		summary.MeanNDCG[k] /= n
	}
	for k := range summary.MeanRecall {
		summary.MeanRecall[k] /= n
	}
	for k := range summary.MeanPrecision {
		summary.MeanPrecision[k] /= n
	}
	return summary
}
