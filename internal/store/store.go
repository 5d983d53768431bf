// Package store defines the durable-state contract shared by the
// orchestrator, task runner and scheduler: workflow definitions, workflow
// runs and the per-attempt task runs that make up a run.
//
// Two implementations ship: memstore (mutex-guarded, in-process, for
// development and tests) and sqlitestore (modernc.org/sqlite, the durable
// default for a single-node deployment).
package store

import (
	"context"

	"github.com/taskgraph/engine/internal/models"
)

// Store is the persistence contract every package above it depends on
// through this interface, never a concrete implementation.
type Store interface {
	// CreateWorkflow persists a new workflow definition. wf.ID is assigned
	// by the caller.
	CreateWorkflow(ctx context.Context, wf *models.Workflow) error

	// GetWorkflow returns the workflow with the given id, or a
	// *models.NotFoundError if none exists.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)

	// ListWorkflows returns every workflow definition, ordered by id.
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)

	// UpdateWorkflowStatus flips a workflow between ACTIVE and DISABLED.
	UpdateWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error

	// UpdateSchedule changes a workflow's cron schedule. An empty string
	// unschedules it. The persisted schedule is what internal/cronsched
	// registers on its next Reload, so schedule changes survive a restart.
	UpdateSchedule(ctx context.Context, id string, schedule string) error

	// CreateWorkflowRun persists a new run in PENDING status. run.ID is
	// assigned by the caller.
	CreateWorkflowRun(ctx context.Context, run *models.WorkflowRun) error

	// GetWorkflowRun returns the run with the given id, or a
	// *models.NotFoundError if none exists.
	GetWorkflowRun(ctx context.Context, id string) (*models.WorkflowRun, error)

	// UpdateWorkflowRunStatus transitions a run's status and, for the
	// RUNNING and terminal transitions, stamps StartedAt/FinishedAt.
	// Implementations reject a transition out of a terminal status.
	UpdateWorkflowRunStatus(ctx context.Context, id string, status models.RunStatus) error

	// ListActiveWorkflowRuns returns every run in PENDING or RUNNING
	// status, used to resume in-flight orchestration after a restart.
	ListActiveWorkflowRuns(ctx context.Context) ([]*models.WorkflowRun, error)

	// CreateTaskRun persists a new task run attempt.
	CreateTaskRun(ctx context.Context, tr *models.TaskRun) error

	// GetTaskRun returns the task run with the given id, or a
	// *models.NotFoundError if none exists.
	GetTaskRun(ctx context.Context, id string) (*models.TaskRun, error)

	// UpdateTaskRun persists tr's status, result, log and timestamps.
	// Implementations reject a transition out of a terminal status.
	UpdateTaskRun(ctx context.Context, tr *models.TaskRun) error

	// ListTaskRunsByWorkflowRun returns every task run attempt belonging
	// to workflowRunID, ordered by task_id then attempt.
	ListTaskRunsByWorkflowRun(ctx context.Context, workflowRunID string) ([]*models.TaskRun, error)

	// LatestTaskRun returns the most recent attempt for taskID within
	// workflowRunID, or a *models.NotFoundError if the task has not been
	// attempted yet.
	LatestTaskRun(ctx context.Context, workflowRunID, taskID string) (*models.TaskRun, error)

	// Close releases any resources (connections, file handles) the store
	// holds.
	Close() error
}
