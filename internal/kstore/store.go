// Package kstore answers the structural, statistical and text-match
// questions the scorers ask about the vocabulary collection.
//
// Every ontology lives in its own named graph, named after the ontology
// URI. The LOV catalogue graph (MetadataGraph) carries VOAF metadata and is
// not an ontology itself.
package kstore

import (
	"context"

	"github.com/lovbench/lovrank/internal/model"
)

// Triple is one edge of an ontology graph.
type Triple struct {
	Subject   model.Term
	Predicate model.Term
	Object    model.Term
}

// Pair is a directed relation between two ontologies.
type Pair struct {
	From model.Ontology
	To   model.Ontology
}

// Store is the knowledge store consumed by every scorer.
type Store interface {
	// AllOntologies returns every ontology graph of the collection.
	AllOntologies(ctx context.Context) ([]model.Ontology, error)

	// AllTerms returns the typed classes and properties defined in o.
	AllTerms(ctx context.Context, o model.Ontology) ([]model.Term, error)

	// TermFrequency counts the triples of o mentioning t.
	TermFrequency(ctx context.Context, t model.Term, o model.Ontology) (int, error)

	// MaximumFrequency is the largest TermFrequency over the terms of o.
	MaximumFrequency(ctx context.Context, o model.Ontology) (int, error)

	CountOntologies(ctx context.Context) (int, error)
	CountOntologiesContainingTerm(ctx context.Context, t model.Term) (int, error)

	// OntologySize is the number of nodes (three per triple) of o.
	OntologySize(ctx context.Context, o model.Ontology) (int, error)
	AverageOntologySize(ctx context.Context) (float64, error)

	// QueryMatch returns the terms matching q grouped by ontology.
	QueryMatch(ctx context.Context, q model.Query) (map[model.Ontology][]model.Term, error)
	TermQueryMatch(ctx context.Context, q model.Query, o model.Ontology, tt model.TermType) ([]model.Term, error)
	OntologyQueryMatch(ctx context.Context, q model.Query) ([]model.Ontology, error)

	// TermQueryMatchLabels returns the local name and labels of t that
	// contain a query word.
	TermQueryMatchLabels(ctx context.Context, q model.Query, t model.Term) ([]string, error)
	ClassQueryMatchLabels(ctx context.Context, q model.Query, o model.Ontology) (map[model.Term][]string, error)
	PropertyQueryMatchLabels(ctx context.Context, q model.Query, o model.Ontology) (map[model.Term][]string, error)

	CountSubClasses(ctx context.Context, t model.Term) (int, error)
	CountSuperClasses(ctx context.Context, t model.Term) (int, error)
	CountSubProperties(ctx context.Context, t model.Term) (int, error)
	CountSuperProperties(ctx context.Context, t model.Term) (int, error)
	CountRelations(ctx context.Context, t model.Term) (int, error)
	CountSiblings(ctx context.Context, t model.Term) (int, error)

	// OntologyGraph returns domain -property-> range triples of o.
	// reversed swaps subject and object.
	OntologyGraph(ctx context.Context, o model.Ontology, reversed bool) ([]Triple, error)

	// OwlImports returns owl:imports pairs, or usage-derived pairs when
	// implicit is set.
	OwlImports(ctx context.Context, implicit bool) ([]Pair, error)
	VoafRelations(ctx context.Context) ([]Pair, error)

	// Literals maps every IRI subject to its label-like literal values.
	Literals(ctx context.Context) (map[string][]string, error)
}
