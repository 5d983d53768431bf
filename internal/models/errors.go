package models

import "fmt"

// ValidationError signals a malformed DAG document. Nothing is persisted
// when this error is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "validation error: " + e.Message }

// NotFoundError signals a referenced workflow/task/run id that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ExecutorError wraps a failure raised by an executor body.
type ExecutorError struct {
	Executor string
	Err      error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor %q failed: %v", e.Executor, e.Err)
}

func (e *ExecutorError) Unwrap() error { return e.Err }

// TimeoutError signals that a task attempt's timeout fired. It is treated
// as an ExecutorError by the task runner's retry/circuit-breaker logic.
type TimeoutError struct {
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task timed out after %s", e.Timeout)
}

// CircuitOpenError signals that the circuit breaker gate refused an attempt
// before the executor was ever invoked.
type CircuitOpenError struct {
	Executor string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for executor %q", e.Executor)
}

// OrchestrationError signals an unsatisfiable DAG at run time: no roots, a
// cycle, or a dependency referencing an unknown task.
type OrchestrationError struct {
	Message string
}

func (e *OrchestrationError) Error() string { return "orchestration error: " + e.Message }
