package model

import (
	"net/url"
	"strings"
)

// QueryKind distinguishes term search queries from ontology search queries.
type QueryKind int

const (
	TermSearch QueryKind = iota
	OntologySearch
)

// String returns "term" or "ontology".
func (k QueryKind) String() string {
	if k == OntologySearch {
		return "ontology"
	}
	return "term"
}

// Query is a search query from the ground truth. Queries compare
// structurally through Key, never by identity.
type Query struct {
	Kind  QueryKind
	Words []string
	// Type filters term searches to classes or properties.
	Type   TermType
	Tags   string
	Vocabs string
	// Lang filters ontology searches by language.
	Lang string
}

// ParseTermQuery parses a whitespace separated term query.
func ParseTermQuery(s string) Query {
	return Query{Kind: TermSearch, Words: strings.Fields(s)}
}

// ParseOntologyQuery parses an ontology query of the form "words//tags//lang".
// Missing trailing parts are empty.
func ParseOntologyQuery(s string) Query {
	parts := strings.SplitN(s, "//", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return Query{
		Kind:  OntologySearch,
		Words: strings.Fields(parts[0]),
		Tags:  parts[1],
		Lang:  parts[2],
	}
}

// WordQuery returns a term query for a single word of q.
func WordQuery(word string) Query {
	return Query{Kind: TermSearch, Words: []string{word}}
}

// Text returns the search words joined by single spaces.
func (q Query) Text() string {
	return strings.Join(q.Words, " ")
}

// String returns the ground-truth spelling of the query.
func (q Query) String() string {
	if q.Kind == OntologySearch {
		return strings.Join([]string{q.Text(), q.Tags, q.Lang}, "//")
	}
	return q.Text()
}

// Key returns a string that is equal for two queries iff they are
// structurally equal. It is stable across process runs.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Kind.String())
	b.WriteByte(0x1f)
	b.WriteString(strings.Join(q.Words, "\x1e"))
	b.WriteByte(0x1f)
	b.WriteString(q.Type.String())
	b.WriteByte(0x1f)
	b.WriteString(q.Tags)
	b.WriteByte(0x1f)
	b.WriteString(q.Vocabs)
	b.WriteByte(0x1f)
	b.WriteString(q.Lang)
	return b.String()
}

// Equal reports structural equality.
func (q Query) Equal(other Query) bool {
	return q.Key() == other.Key()
}

// LOVAPIQuery returns the query string understood by the LOV search API.
func (q Query) LOVAPIQuery() string {
	var b strings.Builder
	b.WriteString("q=")
	b.WriteString(url.QueryEscape(q.Text()))

	if q.Kind == OntologySearch {
		if q.Tags != "" {
			b.WriteString("&tag=" + q.Tags)
		}
		if q.Lang != "" {
			b.WriteString("&lang=" + q.Lang)
		}
		return b.String()
	}

	if t := q.Type.String(); t != "" {
		b.WriteString("&type=" + t)
	}
	if q.Tags != "" {
		b.WriteString("&tag=" + q.Tags)
	}
	if q.Vocabs != "" {
		b.WriteString("&vocab=" + q.Vocabs)
	}
	return b.String()
}
