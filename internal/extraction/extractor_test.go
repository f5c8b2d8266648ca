package extraction

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lovbench/lovrank/internal/bus"
	"github.com/lovbench/lovrank/internal/feature"
	"github.com/lovbench/lovrank/internal/groundtruth"
	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/errors"
	"github.com/lovbench/lovrank/internal/pkg/hash"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

var prefixes = model.NewPrefixes(
	model.Prefix{OntologyPrefix: "schema", OntologyURI: "http://schema.org/", TermPrefix: "http://schema.org/"},
	model.Prefix{OntologyPrefix: "foaf", OntologyURI: "http://xmlns.com/foaf/0.1/", TermPrefix: "http://xmlns.com/foaf/0.1/"},
)

type named struct {
	name   string
	kind   feature.Kind
	domain feature.Domain
}

func (n named) Name() string           { return n.name }
func (n named) Kind() feature.Kind     { return n.kind }
func (n named) Domain() feature.Domain { return n.domain }

type queryLength struct{ named }

func (queryLength) Score(_ context.Context, q model.Query, _ model.Term) (float64, error) {
	return float64(len(q.Words)), nil
}

type ontologyRank struct {
	named
	scores   map[model.Ontology]float64
	computed []model.Ontology
}

func (f *ontologyRank) ComputeScores(_ context.Context, set []model.Ontology) (map[model.Ontology]float64, error) {
	f.computed = set
	return f.scores, nil
}

func (f *ontologyRank) Score(_ context.Context, o model.Ontology) (float64, error) {
	return f.scores[o], nil
}

type termRank struct{ named }

func (termRank) ComputeScores(_ context.Context, set []model.Term) (map[model.Term]float64, error) {
	return nil, nil
}

func (termRank) Score(_ context.Context, t model.Term) (float64, error) {
	return float64(len(t.URI)), nil
}

func termTable(rows ...groundtruth.Row) *groundtruth.Table {
	t := groundtruth.NewTable(model.TermSearch)
	for _, r := range rows {
		t.Add(r)
	}
	return t
}

func row(query, entity string) groundtruth.Row {
	return groundtruth.Row{Query: model.ParseTermQuery(query), Entity: entity, Relevance: 1}
}

func TestExtractor_OutputOrdering(t *testing.T) {
	table := termTable(
		row("zebra", "http://schema.org/Zebra"),
		row("apple", "http://schema.org/Apple"),
		row("apple tree", "http://schema.org/Tree"),
	)
	features := []feature.Feature{
		queryLength{named{"Query_Length_Q", feature.Relevance, feature.TermDomain}},
	}

	dir := t.TempDir()
	m, err := New(features, prefixes, nil, logger.Discard()).Run(context.Background(), table, Options{OutputDir: dir, Workers: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(m.Dir, "TermRankingBenchmark.csv"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "Query,RankingElement,Query_Length_Q\n" +
		"apple,http://schema.org/Apple,1\n" +
		"apple tree,http://schema.org/Tree,2\n" +
		"zebra,http://schema.org/Zebra,1\n"
	if string(data) != want {
		t.Errorf("combined CSV =\n%s\nwant\n%s", data, want)
	}

	single, err := os.ReadFile(filepath.Join(m.Dir, "Query_Length_Q.csv"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(single)), "\n")
	if len(lines) != 4 || lines[0] != "Query,RankingElement,Score" || !strings.HasPrefix(lines[1], "apple,") {
		t.Errorf("feature CSV = %q", lines)
	}
}

func TestExtractor_TermModeUsesOwningOntology(t *testing.T) {
	schema := model.Ontology{URI: "http://schema.org/"}
	foaf := model.Ontology{URI: "http://xmlns.com/foaf/0.1/"}
	rank := &ontologyRank{
		named:  named{"PageRank_OwlImports_O", feature.Importance, feature.OntologyDomain},
		scores: map[model.Ontology]float64{schema: 2, foaf: 5},
	}
	table := termTable(
		row("person", "http://schema.org/Person"),
		row("person", "http://xmlns.com/foaf/0.1/Person"),
		row("place", "http://schema.org/Place"),
	)

	m, err := New([]feature.Feature{rank}, prefixes, nil, logger.Discard()).Score(context.Background(), "run", table)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if len(rank.computed) != 2 {
		t.Errorf("ComputeScores() got %v, want the 2 owning ontologies", rank.computed)
	}
	for _, r := range table.Rows() {
		want := 2.0
		if strings.Contains(r.Entity, "foaf") {
			want = 5
		}
		if got, _ := m.Score(rank.Name(), r); got != want {
			t.Errorf("score of %s = %v, want %v", r.Entity, got, want)
		}
	}
}

func TestExtractor_OntologyModeRejectsTermFeatures(t *testing.T) {
	table := groundtruth.NewTable(model.OntologySearch)
	table.Add(groundtruth.Row{Query: model.ParseOntologyQuery("person"), Entity: "http://schema.org/", Relevance: 2})

	features := []feature.Feature{termRank{named{"TF_T", feature.Importance, feature.TermDomain}}}
	_, err := New(features, prefixes, nil, logger.Discard()).Score(context.Background(), "run", table)
	if !errors.IsValidation(err) {
		t.Errorf("Score() error = %v, want validation error", err)
	}
}

func TestMatrix_MissingScoreIsInvariant(t *testing.T) {
	table := termTable(row("apple", "a"), row("zebra", "z"))
	m := NewMatrix(table)
	m.Set("TF_T", table.Rows()[0], 1)

	var buf bytes.Buffer
	if err := m.WriteCombined(&buf); !errors.IsInvariant(err) {
		t.Errorf("WriteCombined() error = %v, want invariant violation", err)
	}
	if err := m.WriteFeature(&buf, "TF_T"); !errors.IsInvariant(err) {
		t.Errorf("WriteFeature() error = %v, want invariant violation", err)
	}

	_, err := WriteAll(context.Background(), t.TempDir(), m, 1)
	if !errors.IsInvariant(err) {
		t.Errorf("WriteAll() error = %v, want invariant violation", err)
	}
}

func TestMatrix_ColumnOrder(t *testing.T) {
	table := termTable(row("apple", "a"))
	m := NewMatrix(table, "B")
	r := table.Rows()[0]
	m.Set("A", r, 0)
	m.Set("B", r, 0.5)
	m.Set("B", r, 0.25)

	var buf bytes.Buffer
	if err := m.WriteCombined(&buf); err != nil {
		t.Fatalf("WriteCombined() error = %v", err)
	}
	if want := "Query,RankingElement,B,A\napple,a,0.25,0\n"; buf.String() != want {
		t.Errorf("WriteCombined() = %q, want %q", buf.String(), want)
	}
}

func TestExtractor_ManifestAndEvents(t *testing.T) {
	dir := t.TempDir()
	gt := filepath.Join(dir, "gt.csv")
	if err := os.WriteFile(gt, []byte("q,e,r\napple,http://schema.org/Apple,1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	table, err := groundtruth.ReadTerms(gt, prefixes, 0)
	if err != nil {
		t.Fatalf("ReadTerms() error = %v", err)
	}

	b := bus.NewMemoryBus(logger.Discard())
	var completed atomic.Int32
	b.Subscribe(context.Background(), bus.TopicFeatureCompleted, func(ctx context.Context, e bus.Event) error {
		completed.Add(1)
		return nil
	})

	features := []feature.Feature{
		queryLength{named{"Query_Length_Q", feature.Relevance, feature.TermDomain}},
		termRank{named{"TF_T", feature.Importance, feature.TermDomain}},
	}
	m, err := New(features, prefixes, b, logger.Discard()).Run(context.Background(), table, Options{
		OutputDir:   filepath.Join(dir, "out"),
		GroundTruth: gt,
		Workers:     1,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	b.Close()

	if got := completed.Load(); got != 2 {
		t.Errorf("received %d feature completed events, want 2", got)
	}

	read, err := ReadManifest(filepath.Join(m.Dir, ManifestFile))
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	sum, _ := hash.File(gt)
	if read.RunID != m.RunID || read.Mode != "term" || read.Rows != 1 || read.GroundTruthSHA256 != sum {
		t.Errorf("manifest = %+v", read)
	}
	if len(read.Files) != 3 || read.Files[2] != "TermRankingBenchmark.csv" {
		t.Errorf("manifest files = %v", read.Files)
	}
	if filepath.Base(m.Dir) != "term" || filepath.Base(filepath.Dir(m.Dir)) != m.RunID {
		t.Errorf("run dir = %s", m.Dir)
	}
}

func TestMatrix_EmptyTableKeepsColumns(t *testing.T) {
	m := NewMatrix(termTable(), "TF_T", "BM25_T")

	var buf bytes.Buffer
	if err := m.WriteCombined(&buf); err != nil {
		t.Fatalf("WriteCombined() error = %v", err)
	}
	if want := "Query,RankingElement,TF_T,BM25_T\n"; buf.String() != want {
		t.Errorf("WriteCombined() = %q, want %q", buf.String(), want)
	}
	if got := m.Features(); len(got) != 2 || got[0] != "TF_T" {
		t.Errorf("Features() = %v", got)
	}
}

const ontologyFixture = `
<http://schema.org/Person> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/2002/07/owl#Class> <http://schema.org/> .
<http://schema.org/Person> <http://www.w3.org/2000/01/rdf-schema#label> "Person" <http://schema.org/> .
<http://schema.org/Person> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://schema.org/Thing> <http://schema.org/> .
<http://schema.org/Thing> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/2002/07/owl#Class> <http://schema.org/> .
<http://schema.org/knows> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/2002/07/owl#ObjectProperty> <http://schema.org/> .
<http://schema.org/knows> <http://www.w3.org/2000/01/rdf-schema#domain> <http://schema.org/Person> <http://schema.org/> .
<http://xmlns.com/foaf/0.1/Person> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/2002/07/owl#Class> <http://xmlns.com/foaf/0.1/> .
<http://xmlns.com/foaf/0.1/Person> <http://www.w3.org/2000/01/rdf-schema#label> "Person" <http://xmlns.com/foaf/0.1/> .
<http://xmlns.com/foaf/0.1/> <http://www.w3.org/2002/07/owl#imports> <http://schema.org/> <http://xmlns.com/foaf/0.1/> .
`

func TestExtractor_DefaultOntologyFeatures(t *testing.T) {
	ctx := context.Background()
	store := kstore.NewMemory(prefixes, kstore.MatchLOV)
	err := kstore.ReadNQuads(ctx, strings.NewReader(ontologyFixture), func(q kstore.Quad) error {
		store.Add(q)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadNQuads() error = %v", err)
	}

	deps, err := feature.NewDeps(ctx, store, prefixes, nil, logger.Discard())
	if err != nil {
		t.Fatalf("NewDeps() error = %v", err)
	}
	defer deps.Close()

	table := groundtruth.NewTable(model.OntologySearch)
	table.Add(groundtruth.Row{Query: model.ParseOntologyQuery("person"), Entity: "http://schema.org/", Relevance: 2})
	table.Add(groundtruth.Row{Query: model.ParseOntologyQuery("person"), Entity: "http://xmlns.com/foaf/0.1/", Relevance: 1})

	features, err := feature.NewRegistry(deps).Select(nil, table.Kind)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	m, err := New(features, prefixes, nil, logger.Discard()).Score(ctx, "run", table)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if len(m.Features()) != len(features) {
		t.Errorf("matrix has %d columns, want %d", len(m.Features()), len(features))
	}
	for _, name := range m.Features() {
		if strings.HasSuffix(name, "_T") {
			t.Errorf("term feature %s scored in ontology mode", name)
		}
	}
	var buf bytes.Buffer
	if err := m.WriteCombined(&buf); err != nil {
		t.Fatalf("WriteCombined() error = %v", err)
	}
}
