// Package model defines the value types shared by every scorer: ontologies,
// terms, queries and the prefix table that canonicalises their URIs.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Prefix describes one vocabulary of the collection.
type Prefix struct {
	OntologyPrefix string
	OntologyURI    string
	TermPrefix     string
	// AltTermPrefix is a second namespace some vocabularies publish terms under.
	AltTermPrefix string
}

// Prefixes resolves term and ontology URIs against the known vocabularies.
// A Prefixes value is immutable once built and safe for concurrent use.
type Prefixes struct {
	byPrefix map[string]Prefix
	byURI    map[string]Prefix
	entries  []Prefix
}

// NewPrefixes builds a table from the given entries. Later entries replace
// earlier ones with the same ontology prefix or URI.
func NewPrefixes(entries ...Prefix) *Prefixes {
	p := &Prefixes{
		byPrefix: make(map[string]Prefix, len(entries)),
		byURI:    make(map[string]Prefix, len(entries)),
	}
	for _, e := range entries {
		p.byPrefix[e.OntologyPrefix] = e
		p.byURI[e.OntologyURI] = e
	}
	for _, e := range p.byURI {
		p.entries = append(p.entries, e)
	}
	return p
}

type sparqlValue struct {
	Value string `json:"value"`
}

type prefixFile struct {
	Results struct {
		Bindings []struct {
			VocabPrefix sparqlValue  `json:"vocabPrefix"`
			VocabURI    sparqlValue  `json:"vocabURI"`
			TermPrefix  sparqlValue  `json:"termPrefix"`
			TermPrefix2 *sparqlValue `json:"termPrefix2"`
		} `json:"bindings"`
	} `json:"results"`
}

// LoadPrefixes reads the LOV prefix export (SPARQL JSON results).
func LoadPrefixes(path string) (*Prefixes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prefixes: %w", err)
	}
	return ParsePrefixes(data)
}

// ParsePrefixes parses the LOV prefix export.
func ParsePrefixes(data []byte) (*Prefixes, error) {
	var f prefixFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing prefixes: %w", err)
	}

	entries := make([]Prefix, 0, len(f.Results.Bindings))
	for _, b := range f.Results.Bindings {
		e := Prefix{
			OntologyPrefix: b.VocabPrefix.Value,
			OntologyURI:    b.VocabURI.Value,
			TermPrefix:     b.TermPrefix.Value,
		}
		if b.TermPrefix2 != nil {
			e.AltTermPrefix = b.TermPrefix2.Value
		}
		entries = append(entries, e)
	}
	return NewPrefixes(entries...), nil
}

// Len returns the number of known vocabularies.
func (p *Prefixes) Len() int {
	return len(p.byURI)
}

// Lookup returns the entry for an ontology URI.
func (p *Prefixes) Lookup(o Ontology) (Prefix, bool) {
	e, ok := p.byURI[o.URI]
	return e, ok
}

// LookupPrefix returns the entry for an ontology prefix such as "foaf".
func (p *Prefixes) LookupPrefix(prefix string) (Prefix, bool) {
	e, ok := p.byPrefix[prefix]
	return e, ok
}

// TermPrefix returns the preferred term namespace of o, or "" if unknown.
func (p *Prefixes) TermPrefix(o Ontology) string {
	return p.byURI[o.URI].TermPrefix
}

// AltTermPrefix returns the alternative term namespace of o, or "".
func (p *Prefixes) AltTermPrefix(o Ontology) string {
	return p.byURI[o.URI].AltTermPrefix
}

// OntologyForPrefix maps an ontology prefix to its ontology.
func (p *Prefixes) OntologyForPrefix(prefix string) (Ontology, bool) {
	e, ok := p.byPrefix[prefix]
	if !ok {
		return Ontology{}, false
	}
	return Ontology{URI: e.OntologyURI}, true
}

// IsFullURI reports whether uri is an absolute http(s) URI.
func IsFullURI(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// IsBlankNode reports whether uri is a blank node label.
func IsBlankNode(uri string) bool {
	return !strings.Contains(uri, ":")
}

// LocalName returns the part of uri after the last '/' or '#'.
func LocalName(uri string) string {
	return uri[splitPoint(uri)+1:]
}

func splitPoint(uri string) int {
	return max(strings.LastIndexByte(uri, '/'), strings.LastIndexByte(uri, '#'))
}

// Normalize returns the canonical form of a term URI. Compact "pfx:local"
// forms are expanded, terms published under an alternative namespace are
// moved to the preferred one, and blank nodes are returned unchanged.
func (p *Prefixes) Normalize(uri string) string {
	if IsFullURI(uri) {
		for _, e := range p.entries {
			if e.AltTermPrefix != "" && e.AltTermPrefix != e.TermPrefix && strings.HasPrefix(uri, e.AltTermPrefix) {
				return e.TermPrefix + uri[len(e.AltTermPrefix):]
			}
		}
		return uri
	}
	if IsBlankNode(uri) {
		return uri
	}

	pfx, local, _ := strings.Cut(uri, ":")
	e, ok := p.byPrefix[pfx]
	if !ok || e.TermPrefix == "" {
		return uri
	}
	return e.TermPrefix + local
}

// OntologyOf returns the ontology a term URI belongs to. The longest
// vocabulary URI whose term namespace prefixes the term wins; unknown
// vocabularies fall back to truncating the URI at its last '/' or '#'.
func (p *Prefixes) OntologyOf(uri string) Ontology {
	if !IsFullURI(uri) {
		uri = p.Normalize(uri)
	}

	best := ""
	for _, e := range p.entries {
		matches := e.TermPrefix != "" && strings.HasPrefix(uri, e.TermPrefix)
		if !matches && e.AltTermPrefix != "" {
			matches = strings.HasPrefix(uri, e.AltTermPrefix)
		}
		if matches && len(e.OntologyURI) > len(best) {
			best = e.OntologyURI
		}
	}
	if best != "" {
		return Ontology{URI: best}
	}

	cut := splitPoint(uri)
	if cut < 0 {
		return Ontology{}
	}
	return Ontology{URI: uri[:cut]}
}

// AlternativeURI returns the term's URI under its ontology's alternative
// namespace, or "" when the ontology has none.
func (p *Prefixes) AlternativeURI(t Term) string {
	alt := p.AltTermPrefix(p.OntologyOf(t.URI))
	if alt == "" {
		return ""
	}
	return alt + LocalName(t.URI)
}
