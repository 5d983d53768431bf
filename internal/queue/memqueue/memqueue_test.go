package memqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgraph/engine/internal/queue"
)

func TestPushPopImmediate(t *testing.T) {
	q := New()
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, queue.Message{Kind: queue.KindTaskAttempt, TaskID: "extract"}))

	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "extract", msg.TaskID)
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New()
	ctx := context.Background()

	done := make(chan queue.Message, 1)
	go func() {
		msg, err := q.Pop(ctx)
		require.NoError(t, err)
		done <- msg
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(ctx, queue.Message{Kind: queue.KindOrchestrate, WorkflowID: "wf-1"}))

	select {
	case msg := <-done:
		assert.Equal(t, "wf-1", msg.WorkflowID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestPushDelayedNotVisibleUntilElapsed(t *testing.T) {
	q := New()
	ctx := context.Background()

	require.NoError(t, q.PushDelayed(ctx, queue.Message{TaskID: "retry-me"}, 50*time.Millisecond))

	start := time.Now()
	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, "retry-me", msg.TaskID)
}

func TestPopReturnsEarliestVisibleFirst(t *testing.T) {
	q := New()
	ctx := context.Background()

	require.NoError(t, q.PushDelayed(ctx, queue.Message{TaskID: "later"}, 60*time.Millisecond))
	require.NoError(t, q.PushDelayed(ctx, queue.Message{TaskID: "sooner"}, 10*time.Millisecond))

	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sooner", msg.TaskID)

	msg, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "later", msg.TaskID)
}

func TestPopRespectsContextCancellation(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
