// Package condition evaluates the sandboxed boolean expressions a
// TaskNode's "condition" field carries, using CEL so the grammar is
// restricted to identifiers, literals, comparisons, boolean operators,
// and member access into a single declared variable, context.
package condition

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

var sharedEnv = mustNewEnv()

func mustNewEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		panic(fmt.Sprintf("condition: failed to build CEL environment: %v", err))
	}
	return env
}

// Evaluate compiles and runs expr against ctxValues (the upstream task
// outputs keyed by upstream task_id, exposed as the "context" variable)
// and returns whether it evaluated truthy. A non-boolean result, or an
// expression that fails to compile, is reported as an error — the caller
// (the task runner) treats any error the same as falsy and marks the
// attempt SKIPPED, but callers that need to distinguish a malformed expression
// from a legitimately false result should check the error directly.
func Evaluate(expr string, ctxValues map[string]any) (bool, error) {
	if expr == "" {
		return true, nil
	}

	ast, issues := sharedEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("condition: invalid expression %q: %w", expr, issues.Err())
	}

	program, err := sharedEnv.Program(ast)
	if err != nil {
		return false, fmt.Errorf("condition: failed to plan expression %q: %w", expr, err)
	}

	out, _, err := program.Eval(map[string]any{"context": ctxValues})
	if err != nil {
		return false, fmt.Errorf("condition: evaluation of %q failed: %w", expr, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition: expression %q did not evaluate to a boolean", expr)
	}
	return result, nil
}
