package kstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/lovbench/lovrank/internal/model"
)

// Quad is one statement of the collection. Blank nodes are bare labels
// without a ':'; Literal marks Object as a literal value.
type Quad struct {
	Graph     string
	Subject   string
	Predicate string
	Object    string
	Literal   bool
}

type graphIndex struct {
	quads     []Quad
	bySubject map[string][]int
	byObject  map[string][]int
	byNode    map[string][]int
	types     map[string]map[string]bool
}

func newGraphIndex() *graphIndex {
	return &graphIndex{
		bySubject: make(map[string][]int),
		byObject:  make(map[string][]int),
		byNode:    make(map[string][]int),
		types:     make(map[string]map[string]bool),
	}
}

func (g *graphIndex) add(q Quad) {
	i := len(g.quads)
	g.quads = append(g.quads, q)
	g.bySubject[q.Subject] = append(g.bySubject[q.Subject], i)

	g.byNode[q.Subject] = append(g.byNode[q.Subject], i)
	if q.Predicate != q.Subject {
		g.byNode[q.Predicate] = append(g.byNode[q.Predicate], i)
	}
	if !q.Literal {
		g.byObject[q.Object] = append(g.byObject[q.Object], i)
		if q.Object != q.Subject && q.Object != q.Predicate {
			g.byNode[q.Object] = append(g.byNode[q.Object], i)
		}
	}

	if q.Predicate == RDFType && !q.Literal {
		set, ok := g.types[q.Subject]
		if !ok {
			set = make(map[string]bool)
			g.types[q.Subject] = set
		}
		set[q.Object] = true
	}
}

func (g *graphIndex) hasType(s string, tt model.TermType) bool {
	for typ := range g.types[s] {
		switch tt {
		case model.ClassType:
			if classTypes[typ] {
				return true
			}
		case model.PropertyType:
			if propertyTypes[typ] {
				return true
			}
		default:
			if classTypes[typ] || propertyTypes[typ] {
				return true
			}
		}
	}
	return false
}

// typed returns the sorted IRI subjects typed as a class or property.
func (g *graphIndex) typed(tt model.TermType) []string {
	var out []string
	for s := range g.types {
		if !model.IsBlankNode(s) && g.hasType(s, tt) {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// objects returns the distinct objects of s via any of preds.
func (g *graphIndex) objects(s string, preds ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, i := range g.bySubject[s] {
		q := g.quads[i]
		if q.Literal || !contains(preds, q.Predicate) || seen[q.Object] {
			continue
		}
		seen[q.Object] = true
		out = append(out, q.Object)
	}
	return out
}

// subjects returns the distinct subjects pointing at o via any of preds.
func (g *graphIndex) subjects(o string, preds ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, i := range g.byObject[o] {
		q := g.quads[i]
		if !contains(preds, q.Predicate) || seen[q.Subject] {
			continue
		}
		seen[q.Subject] = true
		out = append(out, q.Subject)
	}
	return out
}

// literals returns the literal values of s for the given predicates.
func (g *graphIndex) literals(s string, preds map[string]bool) []string {
	var out []string
	for _, i := range g.bySubject[s] {
		q := g.quads[i]
		if q.Literal && preds[q.Predicate] {
			out = append(out, q.Object)
		}
	}
	return out
}

// frequency counts the triples mentioning any of uris.
func (g *graphIndex) frequency(uris ...string) int {
	if len(uris) == 1 {
		return len(g.byNode[uris[0]])
	}
	seen := make(map[int]bool)
	for _, u := range uris {
		for _, i := range g.byNode[u] {
			seen[i] = true
		}
	}
	return len(seen)
}

// closure follows preds transitively from start, forward or backward.
func (g *graphIndex) closure(start string, forward bool, preds ...string) map[string]bool {
	reached := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]

		var next []string
		if forward {
			next = g.objects(x, preds...)
		} else {
			next = g.subjects(x, preds...)
		}
		for _, n := range next {
			if !reached[n] {
				reached[n] = true
				queue = append(queue, n)
			}
		}
	}
	return reached
}

// Memory is an indexed in-memory quad store. It is safe for concurrent
// readers once loading has finished.
type Memory struct {
	prefixes *model.Prefixes
	match    map[string]bool

	mu     sync.RWMutex
	graphs map[string]*graphIndex
}

// NewMemory creates an empty store resolving URIs through p.
func NewMemory(p *model.Prefixes, mode MatchMode) *Memory {
	if p == nil {
		p = model.NewPrefixes()
	}
	return &Memory{
		prefixes: p,
		match:    mode.Predicates(),
		graphs:   make(map[string]*graphIndex),
	}
}

// Add indexes quads.
func (m *Memory) Add(quads ...Quad) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range quads {
		g, ok := m.graphs[q.Graph]
		if !ok {
			g = newGraphIndex()
			m.graphs[q.Graph] = g
		}
		g.add(q)
	}
}

// Len returns the number of quads in the store.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, g := range m.graphs {
		n += len(g.quads)
	}
	return n
}

// Quads calls fn for every quad until fn returns an error.
func (m *Memory) Quads(fn func(Quad) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, name := range m.graphNames() {
		for _, q := range m.graphs[name].quads {
			if err := fn(q); err != nil {
				return err
			}
		}
	}
	return nil
}

// Prefixes returns the prefix table the store resolves URIs with.
func (m *Memory) Prefixes() *model.Prefixes {
	return m.prefixes
}

func (m *Memory) graphNames() []string {
	names := make([]string, 0, len(m.graphs))
	for name := range m.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isOntologyGraph(name string) bool {
	return name != "" && name != MetadataGraph
}

func (m *Memory) ontologies() []model.Ontology {
	var out []model.Ontology
	for _, name := range m.graphNames() {
		if isOntologyGraph(name) {
			out = append(out, model.Ontology{URI: name})
		}
	}
	return out
}

func (m *Memory) graph(o model.Ontology) *graphIndex {
	if !isOntologyGraph(o.URI) {
		return nil
	}
	return m.graphs[o.URI]
}

// uris returns the term URI and its alternative spelling, if any.
func (m *Memory) uris(t model.Term) []string {
	if alt := m.prefixes.AlternativeURI(t); alt != "" && alt != t.URI {
		return []string{t.URI, alt}
	}
	return []string{t.URI}
}

func (m *Memory) termGraph(t model.Term) *graphIndex {
	return m.graph(m.prefixes.OntologyOf(t.URI))
}

func (m *Memory) AllOntologies(ctx context.Context) ([]model.Ontology, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ontologies(), ctx.Err()
}

func (m *Memory) AllTerms(ctx context.Context, o model.Ontology) ([]model.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(o)
	if g == nil {
		return nil, ctx.Err()
	}

	prefix := m.prefixes.TermPrefix(o)
	alt := m.prefixes.AltTermPrefix(o)

	seen := make(map[model.Term]bool)
	var out []model.Term
	for _, s := range g.typed(model.AnyType) {
		owned := false
		switch {
		case prefix != "":
			owned = strings.HasPrefix(s, prefix) || (alt != "" && strings.HasPrefix(s, alt))
		default:
			owned = m.prefixes.OntologyOf(s) == o
		}
		if !owned {
			continue
		}
		t := model.NewTerm(m.prefixes, s)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, ctx.Err()
}

func (m *Memory) TermFrequency(ctx context.Context, t model.Term, o model.Ontology) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(o)
	if g == nil {
		return 0, ctx.Err()
	}
	return g.frequency(m.uris(t)...), ctx.Err()
}

func (m *Memory) MaximumFrequency(ctx context.Context, o model.Ontology) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(o)
	if g == nil {
		return 0, ctx.Err()
	}
	best := 0
	for _, s := range g.typed(model.AnyType) {
		best = max(best, g.frequency(s))
	}
	return best, ctx.Err()
}

func (m *Memory) CountOntologies(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ontologies()), ctx.Err()
}

func (m *Memory) CountOntologiesContainingTerm(ctx context.Context, t model.Term) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uris := m.uris(t)
	n := 0
	for name, g := range m.graphs {
		if !isOntologyGraph(name) {
			continue
		}
		for _, u := range uris {
			if len(g.byNode[u]) > 0 {
				n++
				break
			}
		}
	}
	return n, ctx.Err()
}

func (m *Memory) OntologySize(ctx context.Context, o model.Ontology) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(o)
	if g == nil {
		return 0, ctx.Err()
	}
	return len(g.quads) * 3, ctx.Err()
}

func (m *Memory) AverageOntologySize(ctx context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count, triples := 0, 0
	for name, g := range m.graphs {
		if isOntologyGraph(name) {
			count++
			triples += len(g.quads)
		}
	}
	if count == 0 {
		return 0, ctx.Err()
	}
	return float64(triples*3) / float64(count), ctx.Err()
}

// effectiveType intersects the query's type filter with tt.
func effectiveType(q model.Query, tt model.TermType) (model.TermType, bool) {
	switch {
	case q.Type == model.AnyType:
		return tt, true
	case tt == model.AnyType || tt == q.Type:
		return q.Type, true
	default:
		return model.AnyType, false
	}
}

// containsAnyFold reports whether s contains any of words, ignoring case.
func containsAnyFold(s string, words []string) bool {
	ls := strings.ToLower(s)
	for _, w := range words {
		if w != "" && strings.Contains(ls, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func (m *Memory) termMatches(g *graphIndex, s string, words []string) bool {
	if containsAnyFold(model.LocalName(s), words) {
		return true
	}
	for _, l := range g.literals(s, m.match) {
		if containsAnyFold(l, words) {
			return true
		}
	}
	return false
}

func (m *Memory) termQueryMatch(g *graphIndex, q model.Query, tt model.TermType) []model.Term {
	tt, ok := effectiveType(q, tt)
	if !ok || len(q.Words) == 0 {
		return nil
	}

	seen := make(map[model.Term]bool)
	var out []model.Term
	for _, s := range g.typed(tt) {
		if !m.termMatches(g, s, q.Words) {
			continue
		}
		t := model.NewTerm(m.prefixes, s)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (m *Memory) QueryMatch(ctx context.Context, q model.Query) (map[model.Ontology][]model.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[model.Ontology][]model.Term)
	for _, o := range m.ontologies() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if terms := m.termQueryMatch(m.graphs[o.URI], q, model.AnyType); len(terms) > 0 {
			out[o] = terms
		}
	}
	return out, nil
}

func (m *Memory) TermQueryMatch(ctx context.Context, q model.Query, o model.Ontology, tt model.TermType) ([]model.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(o)
	if g == nil {
		return nil, ctx.Err()
	}
	return m.termQueryMatch(g, q, tt), ctx.Err()
}

func (m *Memory) OntologyQueryMatch(ctx context.Context, q model.Query) ([]model.Ontology, error) {
	matches, err := m.QueryMatch(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]model.Ontology, 0, len(matches))
	for o := range matches {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

func (m *Memory) TermQueryMatchLabels(ctx context.Context, q model.Query, t model.Term) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.termGraph(t)
	if g == nil {
		return nil, ctx.Err()
	}

	seen := make(map[string]bool)
	var out []string
	add := func(label string) {
		if containsAnyFold(label, q.Words) && !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}

	add(t.LocalName())
	for _, u := range m.uris(t) {
		for _, l := range g.literals(u, m.match) {
			add(l)
		}
	}
	sort.Strings(out)
	return out, ctx.Err()
}

func (m *Memory) labelMatches(ctx context.Context, q model.Query, o model.Ontology, tt model.TermType) (map[model.Term][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[model.Term][]string)
	g := m.graph(o)
	if g == nil {
		return out, ctx.Err()
	}

	label := map[string]bool{RDFSLabel: true}
	for _, s := range g.typed(tt) {
		t := model.NewTerm(m.prefixes, s)
		for _, l := range g.literals(s, label) {
			if !containsAnyFold(l, q.Words) {
				continue
			}
			l = strings.ToLower(l)
			if !contains(out[t], l) {
				out[t] = append(out[t], l)
			}
		}
	}
	return out, ctx.Err()
}

func (m *Memory) ClassQueryMatchLabels(ctx context.Context, q model.Query, o model.Ontology) (map[model.Term][]string, error) {
	return m.labelMatches(ctx, q, o, model.ClassType)
}

func (m *Memory) PropertyQueryMatchLabels(ctx context.Context, q model.Query, o model.Ontology) (map[model.Term][]string, error) {
	return m.labelMatches(ctx, q, o, model.PropertyType)
}

func (m *Memory) countClosure(ctx context.Context, t model.Term, forward bool, pred string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.termGraph(t)
	if g == nil {
		return 0, ctx.Err()
	}
	reached := make(map[string]bool)
	for _, u := range m.uris(t) {
		for n := range g.closure(u, forward, pred) {
			reached[n] = true
		}
	}
	return len(reached), ctx.Err()
}

func (m *Memory) CountSubClasses(ctx context.Context, t model.Term) (int, error) {
	return m.countClosure(ctx, t, false, RDFSSubClassOf)
}

func (m *Memory) CountSuperClasses(ctx context.Context, t model.Term) (int, error) {
	return m.countClosure(ctx, t, true, RDFSSubClassOf)
}

func (m *Memory) CountSubProperties(ctx context.Context, t model.Term) (int, error) {
	return m.countClosure(ctx, t, false, RDFSSubPropOf)
}

func (m *Memory) CountSuperProperties(ctx context.Context, t model.Term) (int, error) {
	return m.countClosure(ctx, t, true, RDFSSubPropOf)
}

func (m *Memory) CountRelations(ctx context.Context, t model.Term) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.termGraph(t)
	if g == nil {
		return 0, ctx.Err()
	}
	props := make(map[string]bool)
	for _, u := range m.uris(t) {
		for _, p := range g.subjects(u, RDFDomain, RDFSDomain, SchemaDomainIncludes) {
			if g.hasType(p, model.PropertyType) {
				props[p] = true
			}
		}
	}
	return len(props), ctx.Err()
}

func (m *Memory) CountSiblings(ctx context.Context, t model.Term) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.termGraph(t)
	if g == nil {
		return 0, ctx.Err()
	}
	siblings := make(map[string]bool)
	for _, u := range m.uris(t) {
		for _, super := range g.objects(u, RDFSSubClassOf) {
			if super == OWLThing {
				continue
			}
			for _, s := range g.subjects(super, RDFSSubClassOf) {
				siblings[s] = true
			}
		}
	}
	return len(siblings), ctx.Err()
}

func (m *Memory) OntologyGraph(ctx context.Context, o model.Ontology, reversed bool) ([]Triple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(o)
	if g == nil {
		return nil, ctx.Err()
	}

	seen := make(map[Triple]bool)
	var out []Triple
	for _, p := range g.typed(model.PropertyType) {
		domains := g.objects(p, RDFSDomain, SchemaDomainIncludes)
		if len(domains) == 0 {
			domains = []string{SourceNode}
		}
		ranges := g.objects(p, RDFSRange, SchemaRangeIncludes)
		if len(ranges) == 0 {
			ranges = []string{SinkNode}
		}

		pred := model.NewTerm(m.prefixes, p)
		for _, d := range domains {
			for _, r := range ranges {
				tr := Triple{
					Subject:   model.NewTerm(m.prefixes, d),
					Predicate: pred,
					Object:    model.NewTerm(m.prefixes, r),
				}
				if reversed {
					tr.Subject, tr.Object = tr.Object, tr.Subject
				}
				if !seen[tr] {
					seen[tr] = true
					out = append(out, tr)
				}
			}
		}
	}
	return out, ctx.Err()
}

func (m *Memory) OwlImports(ctx context.Context, implicit bool) ([]Pair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[Pair]bool)
	var out []Pair
	add := func(p Pair) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, name := range m.graphNames() {
		g := m.graphs[name]
		for _, i := range g.byNode[OWLImports] {
			q := g.quads[i]
			if q.Predicate == OWLImports && !q.Literal {
				add(Pair{From: model.Ontology{URI: q.Subject}, To: model.Ontology{URI: q.Object}})
			}
		}
	}

	if implicit {
		for _, o := range m.ontologies() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for _, p := range m.implicitImports(o) {
				add(p)
			}
		}
	}
	return out, ctx.Err()
}

// implicitImports derives import pairs from the foreign IRIs an ontology uses.
func (m *Memory) implicitImports(o model.Ontology) []Pair {
	g := m.graphs[o.URI]
	prefix := m.prefixes.TermPrefix(o)

	foreign := func(x string) bool {
		if !model.IsFullURI(x) {
			return false
		}
		if (prefix != "" && strings.HasPrefix(x, prefix)) || strings.HasPrefix(x, o.URI) {
			return false
		}
		for _, ns := range builtinNamespaces {
			if strings.HasPrefix(x, ns) {
				return false
			}
		}
		return true
	}

	var out []Pair
	for _, q := range g.quads {
		nodes := []string{q.Subject, q.Predicate}
		if !q.Literal {
			nodes = append(nodes, q.Object)
		}

		hit := false
		for _, x := range nodes {
			if foreign(x) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}

		for _, x := range nodes {
			t := model.NewTerm(m.prefixes, x)
			if !model.IsFullURI(t.URI) || t.URI == o.URI {
				continue
			}
			if to := m.prefixes.OntologyOf(t.URI); !to.IsZero() && to != o {
				out = append(out, Pair{From: o, To: to})
			}
		}
	}
	return out
}

func (m *Memory) VoafRelations(ctx context.Context) ([]Pair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, ok := m.graphs[MetadataGraph]
	if !ok {
		return nil, ctx.Err()
	}

	known := make(map[model.Ontology]bool)
	for _, o := range m.ontologies() {
		known[o] = true
	}

	seen := make(map[Pair]bool)
	var out []Pair
	for _, vocab := range meta.subjects(VOAFVocabulary, RDFType) {
		dist, ok := latestDistribution(meta, vocab)
		if !ok {
			continue
		}
		from := model.Ontology{URI: vocab}
		for _, target := range meta.objects(dist, voafRelations...) {
			p := Pair{From: from, To: model.Ontology{URI: target}}
			if known[p.From] && known[p.To] && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From.URI < out[j].From.URI
		}
		return out[i].To.URI < out[j].To.URI
	})
	return out, ctx.Err()
}

// latestDistribution picks the distribution of vocab with the greatest
// dct:issued date. ISO dates compare lexically.
func latestDistribution(g *graphIndex, vocab string) (string, bool) {
	best, bestDate := "", ""
	for _, d := range g.objects(vocab, DCATDistrib) {
		for _, i := range g.bySubject[d] {
			q := g.quads[i]
			if q.Predicate != DCTIssued || !q.Literal {
				continue
			}
			date := q.Object
			if len(date) > 10 {
				date = date[:10]
			}
			if best == "" || date > bestDate {
				best, bestDate = d, date
			}
		}
	}
	return best, best != ""
}

func (m *Memory) Literals(ctx context.Context) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]string)
	for _, name := range m.graphNames() {
		if !isOntologyGraph(name) {
			continue
		}
		g := m.graphs[name]
		for _, q := range g.quads {
			if q.Literal && m.match[q.Predicate] && !model.IsBlankNode(q.Subject) {
				s := m.prefixes.Normalize(q.Subject)
				out[s] = append(out[s], q.Object)
			}
		}
	}
	return out, ctx.Err()
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
