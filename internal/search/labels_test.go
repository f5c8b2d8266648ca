package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

type literalStore struct {
	kstore.Store
	literals map[string][]string
}

func (s literalStore) Literals(context.Context) (map[string][]string, error) {
	return s.literals, nil
}

var testLiterals = map[string][]string{
	"http://schema.org/Person":         {"Person", "A person (alive, dead, undead, or fictional)."},
	"http://xmlns.com/foaf/0.1/Person": {"Person"},
	"http://schema.org/Place":          {"Place", "Entities that have a somewhat fixed, physical extension."},
	"http://schema.org/name":           {"name", "The name of the item."},
}

func buildIndex(t *testing.T, path string) *LabelIndex {
	t.Helper()
	idx, err := OpenLabelIndex(path, logger.Discard())
	if err != nil {
		t.Fatalf("OpenLabelIndex() error = %v", err)
	}
	n, err := idx.Build(context.Background(), literalStore{literals: testLiterals})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if n != len(testLiterals) {
		t.Errorf("Build() wrote %d documents, want %d", n, len(testLiterals))
	}
	return idx
}

func TestLabelIndex_Search(t *testing.T) {
	idx := buildIndex(t, "")
	defer idx.Close()
	ctx := context.Background()

	tests := []struct {
		name    string
		query   string
		want    []string
		wantNot []string
	}{
		{
			name:    "single word",
			query:   "person",
			want:    []string{"http://schema.org/Person", "http://xmlns.com/foaf/0.1/Person"},
			wantNot: []string{"http://schema.org/Place", "http://schema.org/name"},
		},
		{
			name:  "any word matches",
			query: "place name",
			want:  []string{"http://schema.org/Place", "http://schema.org/name"},
		},
		{
			name:    "no match",
			query:   "zebra",
			wantNot: []string{"http://schema.org/Person"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Search(ctx, model.ParseTermQuery(tt.query))
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			for _, uri := range tt.want {
				if got[uri] <= 0 {
					t.Errorf("Search(%q)[%s] = %v, want > 0", tt.query, uri, got[uri])
				}
			}
			for _, uri := range tt.wantNot {
				if _, ok := got[uri]; ok {
					t.Errorf("Search(%q) unexpectedly matched %s", tt.query, uri)
				}
			}
		})
	}
}

func TestLabelIndex_EmptyQuery(t *testing.T) {
	idx := buildIndex(t, "")
	defer idx.Close()

	got, err := idx.Search(context.Background(), model.ParseTermQuery("   "))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search() = %v, want empty", got)
	}
}

func TestLabelIndex_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.bleve")
	idx := buildIndex(t, path)
	if err := idx.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenLabelIndex(path, logger.Discard())
	if err != nil {
		t.Fatalf("OpenLabelIndex() error = %v", err)
	}
	defer reopened.Close()

	n, err := reopened.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != uint64(len(testLiterals)) {
		t.Errorf("Count() = %d, want %d", n, len(testLiterals))
	}
}
