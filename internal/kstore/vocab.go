package kstore

import "fmt"

// Namespaces used by the store queries.
const (
	RDFNS     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS    = "http://www.w3.org/2000/01/rdf-schema#"
	OWLNS     = "http://www.w3.org/2002/07/owl#"
	XSDNS     = "http://www.w3.org/2001/XMLSchema#"
	DCENS     = "http://purl.org/dc/elements/1.1/"
	DCTermsNS = "http://purl.org/dc/terms/"
	SKOSNS    = "http://www.w3.org/2004/02/skos/core#"
	SchemaNS  = "http://schema.org/"
	VOAFNS    = "http://purl.org/vocommons/voaf#"
	DCATNS    = "http://www.w3.org/ns/dcat#"
)

// Predicates and classes.
const (
	RDFType         = RDFNS + "type"
	RDFProperty     = RDFNS + "Property"
	RDFDomain       = RDFNS + "domain"
	RDFSClass       = RDFSNS + "Class"
	RDFSProperty    = RDFSNS + "Property"
	RDFSLabel       = RDFSNS + "label"
	RDFSComment     = RDFSNS + "comment"
	RDFSDescription = RDFSNS + "description"
	RDFSSubClassOf  = RDFSNS + "subClassOf"
	RDFSSubPropOf   = RDFSNS + "subPropertyOf"
	RDFSDomain      = RDFSNS + "domain"
	RDFSRange       = RDFSNS + "range"

	OWLClass   = OWLNS + "Class"
	OWLThing   = OWLNS + "Thing"
	OWLImports = OWLNS + "imports"

	SchemaDomainIncludes = SchemaNS + "domainIncludes"
	SchemaRangeIncludes  = SchemaNS + "rangeIncludes"

	VOAFVocabulary = VOAFNS + "Vocabulary"
	DCATDistrib    = DCATNS + "distribution"
	DCTIssued      = DCTermsNS + "issued"
)

// MetadataGraph is the named graph holding the LOV catalogue itself.
const MetadataGraph = "https://lov.linkeddata.es/dataset/lov"

// Node labels standing in for a missing domain or range in ontology graphs.
const (
	SourceNode = ":source"
	SinkNode   = ":sink"
)

// builtinNamespaces never make a triple "foreign" for implicit imports.
var builtinNamespaces = []string{
	"http://www.w3.org/1999/02/22-rdf-syntax-ns",
	"http://www.w3.org/2000/01/rdf-schema",
	"http://www.w3.org/2002/07/owl",
	"http://www.w3.org/2001/XMLSchema",
}

var classTypes = map[string]bool{
	RDFSClass: true,
	OWLClass:  true,
}

var propertyTypes = map[string]bool{
	RDFProperty:                        true,
	RDFSProperty:                       true,
	OWLNS + "DatatypeProperty":          true,
	OWLNS + "ObjectProperty":            true,
	OWLNS + "AnnotationProperty":        true,
	OWLNS + "OntologyProperty":          true,
	OWLNS + "FunctionalProperty":        true,
	OWLNS + "InverseFunctionalProperty": true,
	OWLNS + "IrreflexiveProperty":       true,
	OWLNS + "ReflexiveProperty":         true,
	OWLNS + "TransitiveProperty":        true,
	OWLNS + "AsymmetricProperty":        true,
}

var voafRelations = []string{
	VOAFNS + "specializes",
	VOAFNS + "reliesOn",
	VOAFNS + "extends",
	VOAFNS + "metadataVoc",
	VOAFNS + "generalizes",
}

// MatchMode selects the literal predicates a query word is matched against.
type MatchMode string

const (
	MatchAktiveRank MatchMode = "aktiverank"
	MatchDWRank     MatchMode = "dwrank"
	MatchLOV        MatchMode = "lov"
)

// ParseMatchMode validates a configured match mode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch m := MatchMode(s); m {
	case MatchAktiveRank, MatchDWRank, MatchLOV:
		return m, nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}

// Predicates returns the set of literal predicates for the mode.
func (m MatchMode) Predicates() map[string]bool {
	switch m {
	case MatchAktiveRank:
		return map[string]bool{RDFSLabel: true}
	case MatchDWRank:
		return map[string]bool{RDFSLabel: true, RDFSComment: true, RDFSDescription: true}
	default:
		return map[string]bool{
			RDFSLabel:                true,
			DCENS + "title":          true,
			DCTermsNS + "title":      true,
			SKOSNS + "prefLabel":     true,
			RDFSComment:              true,
			RDFSDescription:          true,
			DCENS + "description":    true,
			DCTermsNS + "description": true,
			SKOSNS + "altLabel":      true,
		}
	}
}
