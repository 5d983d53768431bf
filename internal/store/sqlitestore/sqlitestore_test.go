package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgraph/engine/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "taskgraph.db")
	s, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorkflowRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wf := &models.Workflow{
		ID:     "wf-1",
		Name:   "etl",
		Status: models.WorkflowActive,
		DAG: models.DAGDocument{
			Tasks: []models.TaskNode{{TaskID: "extract", Type: "shell", Params: map[string]any{"cmd": "echo hi"}}},
		},
	}
	require.NoError(t, s.CreateWorkflow(ctx, wf))

	got, err := s.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "etl", got.Name)
	assert.Len(t, got.DAG.Tasks, 1)
	assert.Equal(t, "extract", got.DAG.Tasks[0].TaskID)

	require.NoError(t, s.UpdateWorkflowStatus(ctx, "wf-1", models.WorkflowDisabled))
	got, err = s.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowDisabled, got.Status)

	list, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.UpdateSchedule(ctx, "wf-1", "*/5 * * * *"))
	got, err = s.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", got.Schedule)
}

func TestGetWorkflowNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetWorkflow(context.Background(), "missing")
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestWorkflowRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.WorkflowRun{ID: "run-1", WorkflowID: "wf-1", Status: models.RunPending}
	require.NoError(t, s.CreateWorkflowRun(ctx, run))

	require.NoError(t, s.UpdateWorkflowRunStatus(ctx, "run-1", models.RunRunning))
	got, err := s.GetWorkflowRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.FinishedAt)

	require.NoError(t, s.UpdateWorkflowRunStatus(ctx, "run-1", models.RunFailed))
	got, err = s.GetWorkflowRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, got.Status)
	require.NotNil(t, got.FinishedAt)

	err = s.UpdateWorkflowRunStatus(ctx, "run-1", models.RunRunning)
	assert.Error(t, err, "terminal run must reject further transitions")
}

func TestListActiveWorkflowRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateWorkflowRun(ctx, &models.WorkflowRun{ID: "r1", Status: models.RunPending}))
	require.NoError(t, s.CreateWorkflowRun(ctx, &models.WorkflowRun{ID: "r2", Status: models.RunRunning}))
	require.NoError(t, s.CreateWorkflowRun(ctx, &models.WorkflowRun{ID: "r3", Status: models.RunSuccess}))

	active, err := s.ListActiveWorkflowRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestTaskRunAttemptsAndTerminalGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tr1 := &models.TaskRun{
		ID: "tr-1", TaskID: "extract", WorkflowRunID: "run-1", Attempt: 1,
		Status: models.TaskRunning,
	}
	require.NoError(t, s.CreateTaskRun(ctx, tr1))

	tr1.Status = models.TaskFailed
	tr1.Log = "boom"
	require.NoError(t, s.UpdateTaskRun(ctx, tr1))

	tr2 := &models.TaskRun{
		ID: "tr-2", TaskID: "extract", WorkflowRunID: "run-1", Attempt: 2,
		Status: models.TaskSuccess, Result: map[string]any{"rows": float64(3)},
	}
	require.NoError(t, s.CreateTaskRun(ctx, tr2))

	latest, err := s.LatestTaskRun(ctx, "run-1", "extract")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Attempt)
	assert.Equal(t, models.TaskSuccess, latest.Status)
	assert.Equal(t, float64(3), latest.Result["rows"])

	tr1.Status = models.TaskRunning
	err = s.UpdateTaskRun(ctx, tr1)
	assert.Error(t, err, "terminal task run must reject further updates")

	runs, err := s.ListTaskRunsByWorkflowRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestLatestTaskRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LatestTaskRun(context.Background(), "run-1", "missing")
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
}
