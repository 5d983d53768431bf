// Package taskrun implements the Task Runner: executing a single TaskRun
// attempt end to end, applying condition evaluation, timeout, the
// circuit breaker gate, and retry scheduling with exponential backoff.
package taskrun

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/taskgraph/engine/internal/backoff"
	"github.com/taskgraph/engine/internal/breaker"
	"github.com/taskgraph/engine/internal/condition"
	"github.com/taskgraph/engine/internal/dag/executor"
	"github.com/taskgraph/engine/internal/logger"
	"github.com/taskgraph/engine/internal/models"
	"github.com/taskgraph/engine/internal/queue"
	"github.com/taskgraph/engine/internal/store"
	"github.com/taskgraph/engine/internal/util"
)

// backoffPolicy computes retry delay = min(60s, 1s * 2^attemptIndex), the
// constants spec.md §4.3 fixes for task attempt retries.
var backoffPolicy = &backoff.ExponentialBackoffPolicy{
	InitialInterval: time.Second,
	BackoffFactor:   2,
	MaxInterval:     60 * time.Second,
}

// Runner executes TaskRun attempts.
type Runner struct {
	store    store.Store
	registry *executor.Registry
	breaker  breaker.Breaker
	queue    queue.Queue
}

// New returns a Runner. registry is expected to already be frozen.
func New(st store.Store, registry *executor.Registry, br breaker.Breaker, q queue.Queue) *Runner {
	return &Runner{store: st, registry: registry, breaker: br, queue: q}
}

// Run executes the attempt recorded by taskRunID against node, with
// ctxValues holding prior upstream task outputs keyed by task_id. It
// implements spec.md §4.3's algorithm: RUNNING transition, circuit
// breaker gate, condition evaluation, timeout arm, loop_item
// passthrough, executor invocation, and success/failure handling
// (including scheduling a new TaskRun attempt on retryable failure).
func (r *Runner) Run(ctx context.Context, taskRunID string, node models.TaskNode, ctxValues map[string]any) error {
	tr, err := r.store.GetTaskRun(ctx, taskRunID)
	if err != nil {
		return fmt.Errorf("taskrun: load %s: %w", taskRunID, err)
	}

	tr.Status = models.TaskRunning
	now := time.Now()
	tr.StartedAt = &now
	tr.Log = appendLog(tr.Log, fmt.Sprintf("INPUT: %v", node.Params))
	if err := r.store.UpdateTaskRun(ctx, tr); err != nil {
		return fmt.Errorf("taskrun: mark running %s: %w", taskRunID, err)
	}
	logger.Info(ctx, "task attempt started", "task_run_id", tr.ID, "task_id", tr.TaskID, "type", node.Type, "attempt", tr.Attempt)

	allowed, err := r.breaker.Allow(ctx, node.Type)
	if err != nil {
		return fmt.Errorf("taskrun: breaker gate for %s: %w", node.Type, err)
	}
	if !allowed {
		return r.finishCircuitOpen(ctx, tr, node)
	}

	if node.Condition != "" {
		ok, err := condition.Evaluate(node.Condition, ctxValues)
		if err != nil {
			return r.finishSkipped(ctx, tr, "condition evaluation failed: "+err.Error())
		}
		if !ok {
			return r.finishSkipped(ctx, tr, "condition evaluated false")
		}
	}

	runCtx := ctx
	if node.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, node.Timeout)
		defer cancel()
	}

	params := maps.Clone(node.Params)
	if params == nil {
		params = map[string]any{}
	}
	if tr.LoopItem != nil {
		params["loop_item"] = tr.LoopItem
	}

	ex, err := r.registry.Get(node.Type)
	if err != nil {
		return fmt.Errorf("taskrun: resolve executor %s: %w", node.Type, err)
	}

	result, execErr := ex.Execute(runCtx, params, ctxValues)
	if execErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			execErr = &models.TimeoutError{Timeout: node.Timeout.String()}
		}
		return r.finishFailure(ctx, tr, node, execErr)
	}
	return r.finishSuccess(ctx, tr, node, result)
}

func (r *Runner) finishCircuitOpen(ctx context.Context, tr *models.TaskRun, node models.TaskNode) error {
	tr.Status = models.TaskFailed
	tr.Result = map[string]any{"error": "Circuit breaker open"}
	tr.Log = appendLog(tr.Log, "circuit breaker open, executor not invoked")
	finishedAt := time.Now()
	tr.FinishedAt = &finishedAt
	if err := r.store.UpdateTaskRun(ctx, tr); err != nil {
		return fmt.Errorf("taskrun: persist circuit-open failure %s: %w", tr.ID, err)
	}
	logger.Warn(ctx, "task attempt rejected: circuit breaker open", "task_run_id", tr.ID, "type", node.Type)
	return &models.CircuitOpenError{Executor: node.Type}
}

func (r *Runner) finishSkipped(ctx context.Context, tr *models.TaskRun, reason string) error {
	tr.Status = models.TaskSkipped
	tr.Result = map[string]any{"skipped": true, "reason": reason}
	tr.Log = appendLog(tr.Log, "SKIPPED: "+reason)
	finishedAt := time.Now()
	tr.FinishedAt = &finishedAt
	if err := r.store.UpdateTaskRun(ctx, tr); err != nil {
		return fmt.Errorf("taskrun: persist skipped %s: %w", tr.ID, err)
	}
	logger.Info(ctx, "task attempt skipped", "task_run_id", tr.ID, "reason", reason)
	return nil
}

func (r *Runner) finishSuccess(ctx context.Context, tr *models.TaskRun, node models.TaskNode, result map[string]any) error {
	if node.Branches != nil {
		if branch, ok := result["branch"]; ok {
			result["branch_taken"] = branch
		}
	}
	tr.Status = models.TaskSuccess
	tr.Result = result
	tr.Log = appendLog(tr.Log, fmt.Sprintf("OUTPUT: %v", result))
	finishedAt := time.Now()
	tr.FinishedAt = &finishedAt
	if err := r.store.UpdateTaskRun(ctx, tr); err != nil {
		return fmt.Errorf("taskrun: persist success %s: %w", tr.ID, err)
	}
	if err := r.breaker.RecordSuccess(ctx, node.Type); err != nil {
		return fmt.Errorf("taskrun: reset breaker for %s: %w", node.Type, err)
	}
	logger.Info(ctx, "task attempt succeeded", "task_run_id", tr.ID, "task_id", tr.TaskID)
	return nil
}

func (r *Runner) finishFailure(ctx context.Context, tr *models.TaskRun, node models.TaskNode, execErr error) error {
	if err := r.breaker.RecordFailure(ctx, node.Type); err != nil {
		return fmt.Errorf("taskrun: record breaker failure for %s: %w", node.Type, err)
	}

	attemptIndex := tr.Attempt - 1
	tr.Status = models.TaskFailed
	tr.Result = map[string]any{"error": execErr.Error()}
	tr.Log = appendLog(tr.Log, "ERROR: "+execErr.Error())
	finishedAt := time.Now()
	tr.FinishedAt = &finishedAt
	if err := r.store.UpdateTaskRun(ctx, tr); err != nil {
		return fmt.Errorf("taskrun: persist failure %s: %w", tr.ID, err)
	}
	logger.Warn(ctx, "task attempt failed", "task_run_id", tr.ID, "task_id", tr.TaskID, "attempt", tr.Attempt, "error", execErr)

	if attemptIndex >= node.Retries {
		return &models.ExecutorError{Executor: node.Type, Err: execErr}
	}

	delay, _ := backoffPolicy.ComputeNextInterval(attemptIndex, 0, execErr)
	next := &models.TaskRun{
		ID:            util.NewID(),
		TaskID:        tr.TaskID,
		WorkflowRunID: tr.WorkflowRunID,
		Attempt:       tr.Attempt + 1,
		LoopIndex:     tr.LoopIndex,
		LoopItem:      tr.LoopItem,
		Status:        models.TaskPending,
	}
	if err := r.store.CreateTaskRun(ctx, next); err != nil {
		return fmt.Errorf("taskrun: create retry attempt for %s: %w", tr.TaskID, err)
	}
	if err := r.queue.PushDelayed(ctx, queue.Message{
		Kind:          queue.KindTaskAttempt,
		WorkflowRunID: next.WorkflowRunID,
		TaskID:        next.TaskID,
		Attempt:       next.Attempt,
	}, delay); err != nil {
		return fmt.Errorf("taskrun: enqueue retry for %s: %w", tr.TaskID, err)
	}
	logger.Info(ctx, "task attempt retry scheduled", "task_id", tr.TaskID, "next_attempt", next.Attempt, "delay", delay)
	return &models.ExecutorError{Executor: node.Type, Err: execErr}
}

func appendLog(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
