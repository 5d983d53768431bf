package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskgraph/engine/internal/logger"
	"github.com/taskgraph/engine/internal/models"
	"github.com/taskgraph/engine/internal/queue"
)

func workerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start a bounded worker pool that drains the queue",
		Long:  "worker pops task-attempt and orchestrate messages off the queue and drives them to completion until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := logger.WithLogger(cmd.Context(), a.logger)
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info(ctx, "worker pool starting", "concurrency", concurrency)

			var wg sync.WaitGroup
			for i := 0; i < concurrency; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					runWorkerLoop(ctx, a, id)
				}(i)
			}
			wg.Wait()

			logger.Info(ctx, "worker pool stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of concurrent message handlers")
	return cmd
}

// runWorkerLoop pops and handles messages until ctx is cancelled. A
// processing error is logged and the loop continues: one bad message
// must never take down the rest of the pool.
func runWorkerLoop(ctx context.Context, a *app, id int) {
	for {
		msg, err := a.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "worker: pop failed", "worker_id", id, "error", err)
			continue
		}
		if err := processMessage(ctx, a, msg); err != nil {
			logger.Warn(ctx, "worker: message processing reported an error",
				"worker_id", id, "kind", msg.Kind, "error", err)
		}
	}
}

func processMessage(ctx context.Context, a *app, msg queue.Message) error {
	switch msg.Kind {
	case queue.KindOrchestrate:
		return a.orch.Run(ctx, msg.WorkflowID, msg.WorkflowRunID)
	case queue.KindTaskAttempt:
		return processTaskAttempt(ctx, a, msg)
	default:
		return fmt.Errorf("worker: unknown message kind %q", msg.Kind)
	}
}

// processTaskAttempt re-derives the node definition and upstream outputs
// a message alone doesn't carry, invokes the task runner, then re-enqueues
// an orchestrate tick so the run keeps advancing once the attempt settles.
func processTaskAttempt(ctx context.Context, a *app, msg queue.Message) error {
	run, err := a.store.GetWorkflowRun(ctx, msg.WorkflowRunID)
	if err != nil {
		return fmt.Errorf("worker: load workflow run %s: %w", msg.WorkflowRunID, err)
	}
	wf, err := a.store.GetWorkflow(ctx, run.WorkflowID)
	if err != nil {
		return fmt.Errorf("worker: load workflow %s: %w", run.WorkflowID, err)
	}

	var node models.TaskNode
	var found bool
	for _, n := range wf.DAG.Tasks {
		if n.TaskID == msg.TaskID {
			node, found = n, true
			break
		}
	}
	if !found {
		return fmt.Errorf("worker: task %s not found in workflow %s", msg.TaskID, wf.ID)
	}

	tr, err := a.store.LatestTaskRun(ctx, msg.WorkflowRunID, msg.TaskID)
	if err != nil {
		return fmt.Errorf("worker: load task run %s/%s: %w", msg.WorkflowRunID, msg.TaskID, err)
	}

	ctxValues := map[string]any{}
	for _, dep := range wf.DAG.Dependencies {
		if dep.Downstream != msg.TaskID {
			continue
		}
		if utr, err := a.store.LatestTaskRun(ctx, msg.WorkflowRunID, dep.Upstream); err == nil {
			ctxValues[dep.Upstream] = utr.Result
		}
	}

	// A non-nil error here means the attempt itself failed (already
	// persisted by the runner); it is not a worker fault, so it is
	// logged by the caller rather than aborting the re-enqueue below.
	runErr := a.runner.Run(ctx, tr.ID, node, ctxValues)

	if err := a.queue.Push(ctx, queue.Message{
		Kind:          queue.KindOrchestrate,
		WorkflowID:    wf.ID,
		WorkflowRunID: msg.WorkflowRunID,
	}); err != nil {
		return fmt.Errorf("worker: re-enqueue orchestrate for run %s: %w", msg.WorkflowRunID, err)
	}

	return runErr
}
