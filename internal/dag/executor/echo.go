package executor

import "context"

// EchoExecutor returns params verbatim. It exists purely as a test
// fixture (spec.md §4.2).
type EchoExecutor struct{}

// Execute implements Executor.
func (e *EchoExecutor) Execute(ctx context.Context, params map[string]any, ctxValues map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(params))
	for k, v := range params {
		result[k] = v
	}
	return result, nil
}
