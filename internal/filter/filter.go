// Package filter compiles CEL expressions into record predicates, e.g.
//
//	"work" in tags && metadata.priority >= 2 && type == "GLOBAL"
package filter

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

// Filter is a compiled, reusable predicate.
type Filter struct {
	expr string
	prg  cel.Program
}

var env *cel.Env

func init() {
	var err error
	env, err = cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("content", cel.StringType),
		cel.Variable("type", cel.StringType),
		cel.Variable("conversationId", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("createdAt", cel.TimestampType),
		cel.Variable("updatedAt", cel.TimestampType),
		cel.Variable("hasEmbedding", cel.BoolType),
	)
	if err != nil {
		panic(fmt.Sprintf("filter: build cel env: %v", err))
	}
}

// Compile parses and type-checks expr, which must evaluate to a bool.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty filter expression", store.ErrValidation)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: filter: %v", store.ErrValidation, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: filter must return bool, got %s", store.ErrValidation, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: filter: %v", store.ErrValidation, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

func (f *Filter) String() string { return f.expr }

// Match evaluates the filter against r. Evaluation errors (a missing
// metadata key, a type mismatch) count as no match.
func (f *Filter) Match(r *store.Record) bool {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	out, _, err := f.prg.Eval(map[string]any{
		"id":             r.ID,
		"content":        r.Content,
		"type":           string(r.Type),
		"conversationId": r.ConversationID,
		"tags":           tags,
		"metadata":       r.Metadata.Any(),
		"createdAt":      r.CreatedAt,
		"updatedAt":      r.UpdatedAt,
		"hasEmbedding":   len(r.Embedding) > 0,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
