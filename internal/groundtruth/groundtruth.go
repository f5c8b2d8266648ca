// Package groundtruth reads relevance judgments of the form
// (query, entity, relevance) and keeps them as an immutable table.
package groundtruth

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/errors"
)

// Bounds of the relevance judgment scale.
const (
	MinRelevance = 0
	MaxRelevance = 4
)

// Row is one relevance judgment. Entity is a term URI in term mode and an
// ontology URI in ontology mode.
type Row struct {
	Query     model.Query
	Entity    string
	Relevance int
}

// Term returns the entity as a term.
func (r Row) Term() model.Term {
	return model.Term{URI: r.Entity}
}

// Ontology returns the entity as an ontology.
func (r Row) Ontology() model.Ontology {
	return model.Ontology{URI: r.Entity}
}

// Table holds the rows of one ground-truth file. A (query, entity) pair
// appears once; a later judgment replaces an earlier one in place.
type Table struct {
	Kind model.QueryKind

	rows  []Row
	index map[string]int
}

// NewTable creates an empty table for queries of kind.
func NewTable(kind model.QueryKind) *Table {
	return &Table{Kind: kind, index: make(map[string]int)}
}

func rowKey(q model.Query, entity string) string {
	return q.Key() + "\x00" + entity
}

// Add records a judgment.
func (t *Table) Add(r Row) {
	k := rowKey(r.Query, r.Entity)
	if i, ok := t.index[k]; ok {
		t.rows[i] = r
		return
	}
	t.index[k] = len(t.rows)
	t.rows = append(t.rows, r)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the rows in insertion order.
func (t *Table) Rows() []Row {
	return append([]Row(nil), t.rows...)
}

// Relevance returns the judgment for (q, entity).
func (t *Table) Relevance(q model.Query, entity string) (int, bool) {
	i, ok := t.index[rowKey(q, entity)]
	if !ok {
		return 0, false
	}
	return t.rows[i].Relevance, true
}

// Queries returns the distinct queries in first-seen order.
func (t *Table) Queries() []model.Query {
	seen := make(map[string]bool)
	var out []model.Query
	for _, r := range t.rows {
		if k := r.Query.Key(); !seen[k] {
			seen[k] = true
			out = append(out, r.Query)
		}
	}
	return out
}

// Entities returns the distinct entity URIs in first-seen order.
func (t *Table) Entities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.rows {
		if !seen[r.Entity] {
			seen[r.Entity] = true
			out = append(out, r.Entity)
		}
	}
	return out
}

// ReadTerms reads a term ground truth. Term URIs are canonicalised through
// prefixes. Rows with an empty query are skipped; limit > 0 stops after
// that many rows.
func ReadTerms(path string, prefixes *model.Prefixes, limit int) (*Table, error) {
	return read(path, model.TermSearch, limit, func(query, entity string) (model.Query, string, error) {
		q := model.ParseTermQuery(query)
		return q, model.NewTerm(prefixes, entity).URI, nil
	})
}

// ReadOntologies reads an ontology ground truth whose entity column holds
// vocabulary prefixes such as "foaf". Queries use the "words//tags//lang"
// form; rows without search words are skipped.
func ReadOntologies(path string, prefixes *model.Prefixes, limit int) (*Table, error) {
	return read(path, model.OntologySearch, limit, func(query, entity string) (model.Query, string, error) {
		q := model.ParseOntologyQuery(query)
		if len(q.Words) == 0 || model.IsFullURI(entity) {
			return q, entity, nil
		}
		o, ok := prefixes.OntologyForPrefix(entity)
		if !ok {
			return q, "", errors.ValidationError(fmt.Sprintf("unknown vocabulary prefix %q", entity))
		}
		return q, o.URI, nil
	})
}

type parseFunc func(query, entity string) (model.Query, string, error)

func read(path string, kind model.QueryKind, limit int, parse parseFunc) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IOError("opening ground truth", err)
	}
	defer f.Close()

	t, err := readRows(f, kind, limit, parse)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// readRows reads ground-truth rows from r. A first line whose relevance
// column is not a number is taken as a header and skipped.
func readRows(r io.Reader, kind model.QueryKind, limit int, parse parseFunc) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	t := NewTable(kind)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.CodeValidation, "malformed ground truth", err)
		}
		if len(rec) < 3 {
			return nil, errors.ValidationError(fmt.Sprintf("line %d: want 3 columns, got %d", line, len(rec)))
		}

		relevance, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, errors.ValidationError(fmt.Sprintf("line %d: invalid relevance %q", line, rec[2]))
		}
		if relevance < MinRelevance || relevance > MaxRelevance {
			return nil, errors.ValidationError(fmt.Sprintf("line %d: relevance %d outside %d..%d", line, relevance, MinRelevance, MaxRelevance)).
				WithDetail("line", strconv.Itoa(line))
		}

		q, entity, err := parse(rec[0], strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(q.Words) == 0 {
			continue
		}

		t.Add(Row{Query: q, Entity: entity, Relevance: relevance})
		if limit > 0 && t.Len() >= limit {
			break
		}
	}
	return t, nil
}
