// Package rules provides CEL constraint evaluation over candidate
// providers. A constraint narrows the candidate list during detection;
// it can never widen it.
package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/visiona/autovideo/internal/provider"
)

// Constraint is a compiled CEL expression matched against candidate
// descriptors. Expressions see the variables name (string), rank (int)
// and class (list of string), e.g.:
//
//	name != "rtspsrc" && rank >= 128
//	"Network" in class
type Constraint struct {
	program cel.Program
}

// Compile parses and compiles a constraint expression.
func Compile(expr string) (*Constraint, error) {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("rank", cel.IntType),
		cel.Variable("class", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}

	return &Constraint{program: prog}, nil
}

// Match evaluates the constraint against a descriptor.
// Evaluation errors and non-boolean results count as no match.
func (c *Constraint) Match(d provider.Descriptor) bool {
	out, _, err := c.program.Eval(map[string]any{
		"name":  d.Name,
		"rank":  int64(d.Rank),
		"class": d.Class,
	})
	if err != nil {
		return false
	}
	if out.Type() != types.BoolType {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
