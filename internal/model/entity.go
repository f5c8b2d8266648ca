package model

// Ontology is a vocabulary of the collection, identified by its URI.
type Ontology struct {
	URI string
}

// String returns the ontology URI.
func (o Ontology) String() string {
	return o.URI
}

// IsZero reports whether o is the empty ontology.
func (o Ontology) IsZero() bool {
	return o.URI == ""
}

// Term is a class or property, identified by its canonical URI.
type Term struct {
	URI string
}

// NewTerm canonicalises uri through p.
func NewTerm(p *Prefixes, uri string) Term {
	return Term{URI: p.Normalize(uri)}
}

// String returns the term URI.
func (t Term) String() string {
	return t.URI
}

// LocalName returns the local part of the term URI.
func (t Term) LocalName() string {
	return LocalName(t.URI)
}

// TermType restricts matches to classes, properties or both.
type TermType int

const (
	AnyType TermType = iota
	ClassType
	PropertyType
)

// String returns the LOV API spelling of the type.
func (tt TermType) String() string {
	switch tt {
	case ClassType:
		return "class"
	case PropertyType:
		return "property"
	default:
		return ""
	}
}
