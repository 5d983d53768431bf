package cronsched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgraph/engine/internal/models"
	"github.com/taskgraph/engine/internal/queue"
	"github.com/taskgraph/engine/internal/queue/memqueue"
	"github.com/taskgraph/engine/internal/store/memstore"
)

func TestSchedulerFiresOnInterval(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	ctx := context.Background()

	wf := &models.Workflow{ID: "wf-1", Name: "heartbeat", Status: models.WorkflowActive, Schedule: "@every 50ms"}
	require.NoError(t, st.CreateWorkflow(ctx, wf))

	sched := New(st, q)
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop()

	popCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := q.Pop(popCtx)
	require.NoError(t, err)
	assert.Equal(t, queue.KindOrchestrate, msg.Kind)
	assert.Equal(t, "wf-1", msg.WorkflowID)

	run, err := st.GetWorkflowRun(ctx, msg.WorkflowRunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunPending, run.Status)
	assert.True(t, sched.IsScheduled("wf-1"))
}

func TestSchedulerSkipsDisabledAndUnscheduledWorkflows(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	ctx := context.Background()

	active := &models.Workflow{ID: "wf-active", Status: models.WorkflowActive, Schedule: "@every 1h"}
	disabled := &models.Workflow{ID: "wf-disabled", Status: models.WorkflowDisabled, Schedule: "@every 1h"}
	unscheduled := &models.Workflow{ID: "wf-none", Status: models.WorkflowActive}
	require.NoError(t, st.CreateWorkflow(ctx, active))
	require.NoError(t, st.CreateWorkflow(ctx, disabled))
	require.NoError(t, st.CreateWorkflow(ctx, unscheduled))

	sched := New(st, q)
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop()

	assert.ElementsMatch(t, []string{"wf-active"}, sched.ScheduledWorkflowIDs())
}

func TestReloadRemovesDisabledWorkflow(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	ctx := context.Background()

	wf := &models.Workflow{ID: "wf-1", Status: models.WorkflowActive, Schedule: "@every 1h"}
	require.NoError(t, st.CreateWorkflow(ctx, wf))

	sched := New(st, q)
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop()
	require.True(t, sched.IsScheduled("wf-1"))

	require.NoError(t, st.UpdateWorkflowStatus(ctx, "wf-1", models.WorkflowDisabled))
	require.NoError(t, sched.Reload(ctx))
	assert.False(t, sched.IsScheduled("wf-1"))
}

func TestReloadPicksUpScheduleChange(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	ctx := context.Background()

	wf := &models.Workflow{ID: "wf-1", Status: models.WorkflowActive, Schedule: "@every 1h"}
	require.NoError(t, st.CreateWorkflow(ctx, wf))

	sched := New(st, q)
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop()

	require.NoError(t, st.UpdateSchedule(ctx, "wf-1", "@every 50ms"))
	require.NoError(t, sched.Reload(ctx))

	popCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := q.Pop(popCtx)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", msg.WorkflowID)
}

func TestSchedulerAcceptsFiveFieldSchedule(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	ctx := context.Background()

	wf := &models.Workflow{ID: "wf-1", Status: models.WorkflowActive, Schedule: "*/1 * * * *"}
	require.NoError(t, st.CreateWorkflow(ctx, wf))

	sched := New(st, q)
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop()

	assert.True(t, sched.IsScheduled("wf-1"))
}

func TestReloadRejectsInvalidSchedule(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	ctx := context.Background()

	wf := &models.Workflow{ID: "wf-1", Status: models.WorkflowActive, Schedule: "not-a-cron-expression"}
	require.NoError(t, st.CreateWorkflow(ctx, wf))

	sched := New(st, q)
	err := sched.Start(ctx)
	require.Error(t, err)
}

func TestSchedulerAllowsOverlappingRuns(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	ctx := context.Background()

	wf := &models.Workflow{ID: "wf-1", Status: models.WorkflowActive, Schedule: "@every 30ms"}
	require.NoError(t, st.CreateWorkflow(ctx, wf))

	sched := New(st, q)
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop()

	popCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	seen := map[string]bool{}
	for len(seen) < 2 {
		msg, err := q.Pop(popCtx)
		require.NoError(t, err)
		seen[msg.WorkflowRunID] = true
	}
	assert.GreaterOrEqual(t, len(seen), 2, "no single-instance enforcement: two distinct runs must fire")
}
