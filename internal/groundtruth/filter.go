package groundtruth

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/lovbench/lovrank/internal/pkg/errors"
)

// Filter selects ground-truth rows with a CEL boolean expression over the
// variables query (string), words (list of strings), entity (string) and
// relevance (int). Examples:
//
//	relevance >= 2
//	size(words) > 1 && entity.startsWith("http://schema.org/")
//
// A Filter is safe for concurrent use.
type Filter struct {
	expr string
	prg  cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("query", cel.StringType),
		cel.Variable("words", cel.ListType(cel.StringType)),
		cel.Variable("entity", cel.StringType),
		cel.Variable("relevance", cel.IntType),
	)
}

// NewFilter compiles expr. An empty expression yields a nil Filter, which
// keeps every row.
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrap(errors.CodeValidation, "compiling filter", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.ValidationError(fmt.Sprintf("filter must be boolean, got %s", ast.OutputType()))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "building filter", err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter on r.
func (f *Filter) Match(r Row) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, _, err := f.prg.Eval(map[string]any{
		"query":     r.Query.String(),
		"words":     r.Query.Words,
		"entity":    r.Entity,
		"relevance": int64(r.Relevance),
	})
	if err != nil {
		return false, errors.Wrap(errors.CodeValidation, "evaluating filter", err)
	}
	keep, ok := out.Value().(bool)
	if !ok {
		return false, errors.ValidationError(fmt.Sprintf("filter returned %T, want bool", out.Value()))
	}
	return keep, nil
}

// Apply returns a table holding the rows of t that match.
func (f *Filter) Apply(t *Table) (*Table, error) {
	if f == nil {
		return t, nil
	}

	out := NewTable(t.Kind)
	for _, r := range t.rows {
		keep, err := f.Match(r)
		if err != nil {
			return nil, fmt.Errorf("row (%s, %s): %w", r.Query, r.Entity, err)
		}
		if keep {
			out.Add(r)
		}
	}
	return out, nil
}
