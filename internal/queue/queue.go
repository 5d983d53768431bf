// Package queue abstracts the broker the orchestrator and scheduler push
// work onto and the worker pool pulls work from: one logical queue for
// task attempts, with delayed visibility for retry backoff, plus
// orchestrator-run messages fired by the scheduler and by run triggers.
package queue

import (
	"context"
	"time"
)

// Kind distinguishes the two message shapes a worker pool consumes.
type Kind string

const (
	// KindTaskAttempt asks a worker to run one TaskRun attempt.
	KindTaskAttempt Kind = "task_attempt"

	// KindOrchestrate asks a worker to (re)drive a WorkflowRun's plan.
	KindOrchestrate Kind = "orchestrate"
)

// Message is one unit of work pulled by a worker. Only the fields
// relevant to Kind are populated.
type Message struct {
	Kind Kind

	// Populated for KindTaskAttempt.
	WorkflowRunID string
	TaskID        string
	Attempt       int

	// Populated for KindOrchestrate. WorkflowRunID above doubles as the
	// run to drive.
	WorkflowID string
}

// Queue is the work-queue contract. Push makes a message visible
// immediately; PushDelayed makes it visible only after delay elapses,
// which is how the task runner schedules a retry attempt without
// blocking a goroutine on a timer.
type Queue interface {
	// Push enqueues msg for immediate delivery.
	Push(ctx context.Context, msg Message) error

	// PushDelayed enqueues msg to become visible after delay elapses.
	PushDelayed(ctx context.Context, msg Message, delay time.Duration) error

	// Pop blocks until a visible message is available or ctx is done.
	Pop(ctx context.Context) (Message, error)

	// Close releases any resources the queue holds.
	Close() error
}
