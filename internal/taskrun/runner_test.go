package taskrun

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgraph/engine/internal/breaker"
	"github.com/taskgraph/engine/internal/dag/executor"
	"github.com/taskgraph/engine/internal/models"
	"github.com/taskgraph/engine/internal/queue/memqueue"
	"github.com/taskgraph/engine/internal/store/memstore"
)

// flakyExecutor fails the first failUntil calls then succeeds.
type flakyExecutor struct {
	calls     *int
	failUntil int
}

func (e *flakyExecutor) Execute(ctx context.Context, params, ctxValues map[string]any) (map[string]any, error) {
	*e.calls++
	if *e.calls <= e.failUntil {
		return nil, fmt.Errorf("service unavailable")
	}
	return map[string]any{"ok": true}, nil
}

// alwaysFailExecutor fails on every call.
type alwaysFailExecutor struct{ calls *int }

func (e *alwaysFailExecutor) Execute(ctx context.Context, params, ctxValues map[string]any) (map[string]any, error) {
	*e.calls++
	return nil, fmt.Errorf("boom")
}

func newHarness(t *testing.T, ex executor.Executor) (*Runner, *memstore.Store) {
	t.Helper()
	reg := executor.NewRegistry()
	require.NoError(t, reg.Register("flaky", func() (executor.Executor, error) { return ex, nil }))
	reg.Freeze()

	st := memstore.New()
	q := memqueue.New()
	r := New(st, reg, breaker.NewMemoryBreaker(), q)
	return r, st
}

func seedTaskRun(t *testing.T, st *memstore.Store, id, taskID, runID string, attempt int) {
	t.Helper()
	require.NoError(t, st.CreateTaskRun(context.Background(), &models.TaskRun{
		ID: id, TaskID: taskID, WorkflowRunID: runID, Attempt: attempt, Status: models.TaskPending,
	}))
}

func TestRunRetryThenSuccess(t *testing.T) {
	calls := 0
	ex := &flakyExecutor{calls: &calls, failUntil: 2}
	r, st := newHarness(t, ex)
	ctx := context.Background()

	node := models.TaskNode{TaskID: "t1", Type: "flaky", Retries: 2}
	seedTaskRun(t, st, "tr-1", "t1", "run-1", 1)

	err := r.Run(ctx, "tr-1", node, nil)
	require.Error(t, err, "attempt 1 fails and schedules a retry")

	tr1, err := st.GetTaskRun(ctx, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, tr1.Status)

	latest, err := st.LatestTaskRun(ctx, "run-1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Attempt)
	assert.Equal(t, models.TaskPending, latest.Status)

	err = r.Run(ctx, latest.ID, node, nil)
	require.Error(t, err, "attempt 2 fails and schedules a retry")

	latest, err = st.LatestTaskRun(ctx, "run-1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Attempt)

	err = r.Run(ctx, latest.ID, node, nil)
	require.NoError(t, err, "attempt 3 succeeds")

	final, err := st.GetTaskRun(ctx, latest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskSuccess, final.Status)
	assert.Equal(t, 3, calls)
}

func TestRunExhaustsRetriesAndFails(t *testing.T) {
	calls := 0
	ex := &alwaysFailExecutor{calls: &calls}
	r, st := newHarness(t, ex)
	ctx := context.Background()

	node := models.TaskNode{TaskID: "t1", Type: "flaky", Retries: 0}
	seedTaskRun(t, st, "tr-1", "t1", "run-1", 1)

	err := r.Run(ctx, "tr-1", node, nil)
	require.Error(t, err)

	tr, err := st.GetTaskRun(ctx, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, tr.Status)

	latest, err := st.LatestTaskRun(ctx, "run-1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Attempt, "retries=0 must not schedule a retry attempt")
	assert.Equal(t, 1, calls)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	calls := 0
	ex := &alwaysFailExecutor{calls: &calls}
	r, st := newHarness(t, ex)
	ctx := context.Background()

	node := models.TaskNode{TaskID: "t1", Type: "flaky", Retries: 0}

	for i := 1; i <= breaker.Threshold; i++ {
		id := fmt.Sprintf("tr-%d", i)
		seedTaskRun(t, st, id, "t1", "run-1", 1)
		err := r.Run(ctx, id, node, nil)
		var execErr *models.ExecutorError
		require.ErrorAs(t, err, &execErr)
	}
	assert.Equal(t, breaker.Threshold, calls)

	seedTaskRun(t, st, "tr-6", "t1", "run-1", 1)
	err := r.Run(ctx, "tr-6", node, nil)
	var circuitErr *models.CircuitOpenError
	require.ErrorAs(t, err, &circuitErr)
	assert.Equal(t, breaker.Threshold, calls, "circuit open must not invoke the executor")

	tr6, err := st.GetTaskRun(ctx, "tr-6")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, tr6.Status)
	assert.Equal(t, "Circuit breaker open", tr6.Result["error"])
}

func TestRunSkipsWhenConditionFalse(t *testing.T) {
	calls := 0
	ex := &flakyExecutor{calls: &calls, failUntil: 0}
	r, st := newHarness(t, ex)
	ctx := context.Background()

	node := models.TaskNode{TaskID: "t1", Type: "flaky", Condition: "context['t0']['returncode'] == 0"}
	seedTaskRun(t, st, "tr-1", "t1", "run-1", 1)

	err := r.Run(ctx, "tr-1", node, map[string]any{"t0": map[string]any{"returncode": int64(1)}})
	require.NoError(t, err)

	tr, err := st.GetTaskRun(ctx, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskSkipped, tr.Status)
	assert.Equal(t, 0, calls, "a skipped task never invokes the executor")
}

func TestRunSetsBranchTaken(t *testing.T) {
	ex := &branchExecutor{}
	r, st := newHarness(t, ex)
	ctx := context.Background()

	node := models.TaskNode{
		TaskID:   "t1",
		Type:     "flaky",
		Branches: map[string][]string{"ok": {"t2"}, "err": {"t3"}},
	}
	seedTaskRun(t, st, "tr-1", "t1", "run-1", 1)

	require.NoError(t, r.Run(ctx, "tr-1", node, nil))

	tr, err := st.GetTaskRun(ctx, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskSuccess, tr.Status)
	assert.Equal(t, "ok", tr.Result["branch_taken"])
}

type branchExecutor struct{}

func (branchExecutor) Execute(ctx context.Context, params, ctxValues map[string]any) (map[string]any, error) {
	return map[string]any{"branch": "ok"}, nil
}

func TestRunHonorsLoopItem(t *testing.T) {
	ex := &capturingExecutor{}
	r, st := newHarness(t, ex)
	ctx := context.Background()

	node := models.TaskNode{TaskID: "t1", Type: "flaky"}
	require.NoError(t, st.CreateTaskRun(ctx, &models.TaskRun{
		ID: "tr-1", TaskID: "t1", WorkflowRunID: "run-1", Attempt: 1, Status: models.TaskPending, LoopItem: float64(2),
	}))

	require.NoError(t, r.Run(ctx, "tr-1", node, nil))
	assert.Equal(t, float64(2), ex.gotParams["loop_item"])
}

type capturingExecutor struct{ gotParams map[string]any }

func (e *capturingExecutor) Execute(ctx context.Context, params, ctxValues map[string]any) (map[string]any, error) {
	e.gotParams = params
	return map[string]any{}, nil
}

func TestRunTimesOut(t *testing.T) {
	ex := &slowExecutor{}
	r, st := newHarness(t, ex)
	ctx := context.Background()

	node := models.TaskNode{TaskID: "t1", Type: "flaky", Timeout: 10 * time.Millisecond}
	seedTaskRun(t, st, "tr-1", "t1", "run-1", 1)

	err := r.Run(ctx, "tr-1", node, nil)
	require.Error(t, err)

	tr, err := st.GetTaskRun(ctx, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, tr.Status)
}

type slowExecutor struct{}

func (slowExecutor) Execute(ctx context.Context, params, ctxValues map[string]any) (map[string]any, error) {
	select {
	case <-time.After(time.Second):
		return map[string]any{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
