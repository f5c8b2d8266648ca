package extraction

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/lovbench/lovrank/internal/groundtruth"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/errors"
)

// Matrix holds the feature scores of every ground-truth row.
type Matrix struct {
	kind     model.QueryKind
	rows     []groundtruth.Row
	features []string
	scores   map[string]map[string]float64
}

// NewMatrix creates an empty matrix over the rows of table with one
// column per feature, in the given order.
func NewMatrix(table *groundtruth.Table, features ...string) *Matrix {
	m := &Matrix{
		kind:   table.Kind,
		rows:   table.Rows(),
		scores: make(map[string]map[string]float64, len(features)),
	}
	for _, f := range features {
		m.column(f)
	}
	return m
}

func (m *Matrix) column(feature string) map[string]float64 {
	col, ok := m.scores[feature]
	if !ok {
		col = make(map[string]float64, len(m.rows))
		m.scores[feature] = col
		m.features = append(m.features, feature)
	}
	return col
}

func cellKey(r groundtruth.Row) string {
	return r.Query.Key() + "\x00" + r.Entity
}

// Set records the score of feature for row r. A feature not given to
// NewMatrix gets a new last column.
func (m *Matrix) Set(feature string, r groundtruth.Row, score float64) {
	m.column(feature)[cellKey(r)] = score
}

// Score returns the recorded score of feature for row r.
func (m *Matrix) Score(feature string, r groundtruth.Row) (float64, bool) {
	v, ok := m.scores[feature][cellKey(r)]
	return v, ok
}

// Features returns the feature columns in order.
func (m *Matrix) Features() []string {
	return slices.Clone(m.features)
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return len(m.rows)
}

// SortedRows returns the rows ordered by query string. Rows of the same
// query keep their ground-truth order.
func (m *Matrix) SortedRows() []groundtruth.Row {
	rows := slices.Clone(m.rows)
	slices.SortStableFunc(rows, func(a, b groundtruth.Row) int {
		return strings.Compare(a.Query.String(), b.Query.String())
	})
	return rows
}

func (m *Matrix) cell(feature string, r groundtruth.Row) (string, error) {
	v, ok := m.Score(feature, r)
	if !ok {
		return "", errors.InvariantError(fmt.Sprintf("no %s score for (%s, %s)", feature, r.Query, r.Entity))
	}
	return formatScore(v), nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteFeature writes the "Query,RankingElement,Score" table of one
// feature.
func (m *Matrix) WriteFeature(w io.Writer, feature string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Query", "RankingElement", "Score"}); err != nil {
		return err
	}
	for _, r := range m.SortedRows() {
		score, err := m.cell(feature, r)
		if err != nil {
			return err
		}
		if err := cw.Write([]string{r.Query.String(), r.Entity, score}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCombined writes every feature column in one table.
func (m *Matrix) WriteCombined(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Query", "RankingElement"}, m.features...)); err != nil {
		return err
	}

	record := make([]string, 2+len(m.features))
	for _, r := range m.SortedRows() {
		record[0], record[1] = r.Query.String(), r.Entity
		for i, f := range m.features {
			score, err := m.cell(f, r)
			if err != nil {
				return err
			}
			record[2+i] = score
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CombinedFileName returns the name of the combined table for kind.
func CombinedFileName(kind model.QueryKind) string {
	if kind == model.OntologySearch {
		return "OntologyRankingBenchmark.csv"
	}
	return "TermRankingBenchmark.csv"
}
