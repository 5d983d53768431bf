// Package executor holds the pluggable task-body implementations the
// task runner invokes: shell, script, http, sql, echo, and the
// subprocess-based plugin protocol, plus the process-wide Registry that
// resolves a TaskNode's type to one of them.
package executor

import "context"

// Executor performs the work of one task attempt.
type Executor interface {
	// Execute runs params (augmented with loop_item when the node loops)
	// against ctxValues, the read-only map of upstream task outputs keyed
	// by upstream task_id. It returns a structured result or an error.
	Execute(ctx context.Context, params map[string]any, ctxValues map[string]any) (map[string]any, error)
}

// Factory constructs an Executor for one invocation. Factories are
// stateless where possible; per-call state belongs on the Executor value
// they return.
type Factory func() (Executor, error)
