// Package orchestrator builds a concurrent execution plan from a DAG
// snapshot and drives it to a terminal WorkflowRun status, implementing
// spec.md §4.4: root discovery, trigger-rule eligibility, branch
// selection, and foreach fan-out/fan-in.
//
// Orchestrator.Run is a single reactor tick: it loads persisted state,
// dispatches whatever is newly eligible, and either finalizes the run
// or returns, leaving the next tick to be driven by a worker re-enqueuing
// a KindOrchestrate message once an in-flight task attempt settles.
// This is what makes re-entrant invocations for the same run_id
// idempotent, per spec.md §4.4's re-entrancy requirement.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/taskgraph/engine/internal/dag"
	"github.com/taskgraph/engine/internal/logger"
	"github.com/taskgraph/engine/internal/models"
	"github.com/taskgraph/engine/internal/queue"
	"github.com/taskgraph/engine/internal/store"
	"github.com/taskgraph/engine/internal/util"
)

// Orchestrator drives WorkflowRuns to completion.
type Orchestrator struct {
	store store.Store
	queue queue.Queue
}

// New returns an Orchestrator.
func New(st store.Store, q queue.Queue) *Orchestrator {
	return &Orchestrator{store: st, queue: q}
}

// Trigger creates a fresh WorkflowRun for workflowID in PENDING and
// enqueues the first orchestrate tick. It returns the new run id
// immediately without waiting for the run to progress (the resolved
// fire-and-forget semantics of spec.md §9's Open Question).
func (o *Orchestrator) Trigger(ctx context.Context, workflowID string) (string, error) {
	run := &models.WorkflowRun{ID: util.NewID(), WorkflowID: workflowID, Status: models.RunPending}
	if err := o.store.CreateWorkflowRun(ctx, run); err != nil {
		return "", fmt.Errorf("orchestrator: create run for %s: %w", workflowID, err)
	}
	if err := o.queue.Push(ctx, queue.Message{Kind: queue.KindOrchestrate, WorkflowID: workflowID, WorkflowRunID: run.ID}); err != nil {
		return "", fmt.Errorf("orchestrator: enqueue first tick for %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// iterKey identifies one per-iteration slot of a DAG node: (task_id, 0)
// for a node without a loop, (task_id, i) for the i'th foreach item.
type iterKey struct {
	TaskID    string
	LoopIndex int
}

// Run performs one reactor tick for runID: on a PENDING run it snapshots
// the DAG into per-iteration TaskRuns and transitions to RUNNING; on any
// run it dispatches newly eligible iterations and, once every iteration
// has settled, finalizes the run's terminal status.
func (o *Orchestrator) Run(ctx context.Context, workflowID, runID string) error {
	run, err := o.store.GetWorkflowRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("orchestrator: load run %s: %w", runID, err)
	}
	if run.Status == models.RunSuccess || run.Status == models.RunFailed {
		return nil
	}

	wf, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("orchestrator: load workflow %s: %w", workflowID, err)
	}
	doc := wf.DAG

	if len(doc.Tasks) == 0 {
		return o.fail(ctx, run, "No root node")
	}

	existing, err := o.store.ListTaskRunsByWorkflowRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("orchestrator: list task runs for %s: %w", runID, err)
	}

	if run.Status == models.RunPending {
		if len(existing) == 0 {
			if err := o.seed(ctx, run, doc); err != nil {
				return err
			}
		}
		if err := o.store.UpdateWorkflowRunStatus(ctx, run.ID, models.RunRunning); err != nil {
			return fmt.Errorf("orchestrator: mark run %s running: %w", run.ID, err)
		}
		existing, err = o.store.ListTaskRunsByWorkflowRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("orchestrator: list task runs for %s: %w", runID, err)
		}
	}

	nodes := make(map[string]models.TaskNode, len(doc.Tasks))
	for _, n := range doc.Tasks {
		nodes[n.TaskID] = n
	}
	upstream := dag.Upstream(doc)

	latest := latestByIteration(existing)

	if err := o.propagateBranchSkips(ctx, nodes, latest); err != nil {
		return err
	}

	anyFailed := false
	for key, tr := range latest {
		if !tr.Status.IsTerminal() {
			continue
		}
		if tr.Status == models.TaskFailed {
			anyFailed = true
		}

		node := nodes[key.TaskID]
		if node.Branches != nil && tr.Status == models.TaskSuccess {
			if err := o.dispatchBranchSkips(ctx, node, tr, latest); err != nil {
				return err
			}
		}
	}

	order, err := dag.TopoOrder(doc)
	if err != nil {
		return o.fail(ctx, run, err.Error())
	}
	for _, taskID := range order {
		node := nodes[taskID]
		if err := o.maybeDispatch(ctx, run.ID, node, upstream[taskID], latest); err != nil {
			return err
		}
	}

	// Settlement is judged after this tick's skips: an iteration skipped
	// here enqueues no attempt, so no later tick would finalize the run.
	for _, tr := range latest {
		if !tr.Status.IsTerminal() {
			return nil
		}
	}

	finalStatus := models.RunSuccess
	if anyFailed {
		finalStatus = models.RunFailed
	}
	return o.finish(ctx, run, finalStatus)
}

func (o *Orchestrator) fail(ctx context.Context, run *models.WorkflowRun, message string) error {
	logger.Error(ctx, "orchestration failed", "workflow_run_id", run.ID, "reason", message)
	return o.finish(ctx, run, models.RunFailed)
}

func (o *Orchestrator) finish(ctx context.Context, run *models.WorkflowRun, status models.RunStatus) error {
	if err := o.store.UpdateWorkflowRunStatus(ctx, run.ID, status); err != nil {
		return fmt.Errorf("orchestrator: finalize run %s: %w", run.ID, err)
	}
	logger.Info(ctx, "workflow run finished", "workflow_run_id", run.ID, "status", status)
	return nil
}

// seed creates one PENDING TaskRun per DAG node (or one per foreach item
// for a looping node), attempt 1, on the first tick of a PENDING run.
func (o *Orchestrator) seed(ctx context.Context, run *models.WorkflowRun, doc models.DAGDocument) error {
	for _, node := range doc.Tasks {
		if node.Loop == nil {
			tr := &models.TaskRun{ID: util.NewID(), TaskID: node.TaskID, WorkflowRunID: run.ID, Attempt: 1, Status: models.TaskPending}
			if err := o.store.CreateTaskRun(ctx, tr); err != nil {
				return fmt.Errorf("orchestrator: seed task run %s: %w", node.TaskID, err)
			}
			continue
		}
		for i, item := range node.Loop.Foreach {
			tr := &models.TaskRun{
				ID: util.NewID(), TaskID: node.TaskID, WorkflowRunID: run.ID, Attempt: 1,
				LoopIndex: i, LoopItem: item, Status: models.TaskPending,
			}
			if err := o.store.CreateTaskRun(ctx, tr); err != nil {
				return fmt.Errorf("orchestrator: seed loop task run %s[%d]: %w", node.TaskID, i, err)
			}
		}
	}
	return nil
}

// latestByIteration reduces every persisted attempt down to the latest
// attempt per (task_id, loop_index).
func latestByIteration(runs []*models.TaskRun) map[iterKey]*models.TaskRun {
	out := make(map[iterKey]*models.TaskRun, len(runs))
	for _, tr := range runs {
		key := iterKey{TaskID: tr.TaskID, LoopIndex: tr.LoopIndex}
		cur, ok := out[key]
		if !ok || tr.Attempt > cur.Attempt {
			out[key] = tr
		}
	}
	return out
}

// maybeDispatch pushes a task-attempt message for every PENDING
// iteration of node once node is eligible per its trigger rule over
// upstreamIDs, per spec.md §4.4. A node with no upstreams is eligible
// vacuously (covers both DAG roots and the "no further gating" case).
func (o *Orchestrator) maybeDispatch(ctx context.Context, runID string, node models.TaskNode, upstreamIDs []string, latest map[iterKey]*models.TaskRun) error {
	eligible, settled := evalEligibility(node.EffectiveTriggerRule(), upstreamIDs, latest)
	if !settled {
		return nil
	}

	for key, tr := range latest {
		if key.TaskID != node.TaskID || tr.Status != models.TaskPending {
			continue
		}
		if !eligible {
			tr.Status = models.TaskSkipped
			tr.Result = map[string]any{"skipped": true, "reason": "trigger rule not satisfied"}
			if err := o.store.UpdateTaskRun(ctx, tr); err != nil {
				return fmt.Errorf("orchestrator: skip %s: %w", node.TaskID, err)
			}
			continue
		}
		if err := o.queue.Push(ctx, queue.Message{
			Kind: queue.KindTaskAttempt, WorkflowRunID: runID, TaskID: tr.TaskID, Attempt: tr.Attempt,
		}); err != nil {
			return fmt.Errorf("orchestrator: enqueue attempt for %s: %w", node.TaskID, err)
		}
	}
	return nil
}

// evalEligibility applies rule over every latest iteration belonging to
// any task id in upstreamIDs. settled is false until every such
// iteration has reached a terminal status.
func evalEligibility(rule models.TriggerRule, upstreamIDs []string, latest map[iterKey]*models.TaskRun) (eligible, settled bool) {
	if len(upstreamIDs) == 0 {
		return true, true
	}

	upstreamSet := make(map[string]bool, len(upstreamIDs))
	for _, id := range upstreamIDs {
		upstreamSet[id] = true
	}

	var statuses []models.TaskStatus
	for key, tr := range latest {
		if !upstreamSet[key.TaskID] {
			continue
		}
		if !tr.Status.IsTerminal() {
			return false, false
		}
		statuses = append(statuses, tr.Status)
	}

	allSuccess, anySuccess, anyFailed := true, false, false
	for _, s := range statuses {
		if s == models.TaskSuccess {
			anySuccess = true
		} else {
			allSuccess = false
		}
		if s == models.TaskFailed {
			anyFailed = true
		}
	}

	switch rule {
	case models.TriggerAllDone:
		return true, true
	case models.TriggerAnySuccess:
		return anySuccess, true
	case models.TriggerAnyFailed:
		return anyFailed, true
	default: // all_success: every upstream iteration must be SUCCESS; a
		// SKIPPED or FAILED upstream skips this node too, cascading the skip.
		return allSuccess, true
	}
}

// propagateBranchSkips resolves the Design Notes' Open Question: a
// SUCCESS branches-node whose result lacks branch_taken is treated as a
// FAILED orchestration decision and every one of its branch children is
// SKIPPED.
func (o *Orchestrator) propagateBranchSkips(ctx context.Context, nodes map[string]models.TaskNode, latest map[iterKey]*models.TaskRun) error {
	for taskID, node := range nodes {
		if node.Branches == nil {
			continue
		}
		tr, ok := latest[iterKey{TaskID: taskID}]
		if !ok || tr.Status != models.TaskSuccess {
			continue
		}
		if _, hasBranch := tr.Result["branch_taken"]; hasBranch {
			continue
		}
		// No branch_taken: mark this node's own attempt FAILED (an
		// orchestration decision, not an executor failure) and skip
		// every branch child.
		tr.Status = models.TaskFailed
		tr.Result = map[string]any{"error": "branches node result missing branch_taken"}
		if err := o.store.UpdateTaskRun(ctx, tr); err != nil {
			return fmt.Errorf("orchestrator: mark %s failed for missing branch_taken: %w", taskID, err)
		}
		for _, children := range node.Branches {
			for _, childID := range children {
				if err := o.skipPendingIterations(ctx, childID, latest); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// dispatchBranchSkips skips every child listed under a branch key other
// than the one tr.Result["branch_taken"] selected. Children reachable
// only through the chosen branch are left alone to settle through the
// normal trigger-rule cascade once their own upstream set resolves.
func (o *Orchestrator) dispatchBranchSkips(ctx context.Context, node models.TaskNode, tr *models.TaskRun, latest map[iterKey]*models.TaskRun) error {
	chosen, _ := tr.Result["branch_taken"].(string)
	for branch, children := range node.Branches {
		if branch == chosen {
			continue
		}
		for _, childID := range children {
			if err := o.skipPendingIterations(ctx, childID, latest); err != nil {
				return err
			}
		}
	}
	return nil
}

// skipPendingIterations marks every still-PENDING iteration of taskID
// SKIPPED.
func (o *Orchestrator) skipPendingIterations(ctx context.Context, taskID string, latest map[iterKey]*models.TaskRun) error {
	for key, tr := range latest {
		if key.TaskID != taskID || tr.Status != models.TaskPending {
			continue
		}
		tr.Status = models.TaskSkipped
		tr.Result = map[string]any{"skipped": true, "reason": "branch not taken"}
		if err := o.store.UpdateTaskRun(ctx, tr); err != nil {
			return fmt.Errorf("orchestrator: skip branch child %s: %w", taskID, err)
		}
	}
	return nil
}
