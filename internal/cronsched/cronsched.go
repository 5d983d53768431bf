// Package cronsched is the periodic scheduler: it keeps one
// github.com/robfig/cron/v3 entry per ACTIVE workflow with a non-empty
// Schedule and, on each firing, creates a WorkflowRun and enqueues an
// orchestrator-run message. Schedule state lives in the Store, not in
// process memory: Reload re-derives every cron entry from what is
// currently persisted, so a restart (or a store.UpdateSchedule call
// elsewhere in the process) never needs this package's in-memory state
// to already be correct.
package cronsched

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/taskgraph/engine/internal/logger"
	"github.com/taskgraph/engine/internal/models"
	"github.com/taskgraph/engine/internal/queue"
	"github.com/taskgraph/engine/internal/store"
	"github.com/taskgraph/engine/internal/util"
)

// entry tracks the cron registration for one workflow so Reload can tell
// an unchanged schedule from one that needs re-registering.
type entry struct {
	id       cron.EntryID
	schedule string
}

// Scheduler owns the cron ring and the workflowID -> entry bookkeeping.
type Scheduler struct {
	cron  *cron.Cron
	store store.Store
	queue queue.Queue

	mu      sync.Mutex
	entries map[string]entry
}

// New returns a Scheduler. Call Start to load persisted schedules and
// begin firing.
func New(st store.Store, q queue.Queue) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		store:   st,
		queue:   q,
		entries: make(map[string]entry),
	}
}

// Start performs an initial Reload and starts the cron ring.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron ring, waiting for any in-flight firing to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Reload re-reads every ACTIVE workflow with a non-empty Schedule from
// the Store and reconciles the cron ring to match: new schedules are
// registered, changed schedules are re-registered, and workflows that
// are gone, DISABLED, or unscheduled are removed.
func (s *Scheduler) Reload(ctx context.Context) error {
	workflows, err := s.store.ListWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("cronsched: list workflows: %w", err)
	}

	desired := make(map[string]string, len(workflows))
	for _, wf := range workflows {
		if wf.Status == models.WorkflowActive && wf.Schedule != "" {
			desired[wf.ID] = wf.Schedule
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for workflowID := range s.entries {
		if _, ok := desired[workflowID]; !ok {
			s.removeLocked(workflowID)
		}
	}
	for workflowID, schedule := range desired {
		if existing, ok := s.entries[workflowID]; ok && existing.schedule == schedule {
			continue
		}
		if err := s.registerLocked(workflowID, schedule); err != nil {
			return err
		}
	}
	return nil
}

// registerLocked must be called with s.mu held; it replaces any existing
// entry for workflowID.
func (s *Scheduler) registerLocked(workflowID, schedule string) error {
	s.removeLocked(workflowID)

	id, err := s.cron.AddFunc(schedule, func() { s.fire(workflowID) })
	if err != nil {
		return fmt.Errorf("cronsched: invalid schedule %q for workflow %s: %w", schedule, workflowID, err)
	}
	s.entries[workflowID] = entry{id: id, schedule: schedule}
	return nil
}

func (s *Scheduler) removeLocked(workflowID string) {
	if existing, ok := s.entries[workflowID]; ok {
		s.cron.Remove(existing.id)
		delete(s.entries, workflowID)
	}
}

// fire creates a new WorkflowRun in PENDING and enqueues the first
// orchestrate tick. It never enforces single-instance semantics:
// overlapping runs for the same workflow are allowed, per the
// unchanged concurrency model.
func (s *Scheduler) fire(workflowID string) {
	ctx := context.Background()
	run := &models.WorkflowRun{ID: util.NewID(), WorkflowID: workflowID, Status: models.RunPending}
	if err := s.store.CreateWorkflowRun(ctx, run); err != nil {
		logger.Error(ctx, "cronsched: create run failed", "workflow_id", workflowID, "error", err)
		return
	}
	if err := s.queue.Push(ctx, queue.Message{Kind: queue.KindOrchestrate, WorkflowID: workflowID, WorkflowRunID: run.ID}); err != nil {
		logger.Error(ctx, "cronsched: enqueue orchestrate failed", "workflow_id", workflowID, "run_id", run.ID, "error", err)
		return
	}
	logger.Info(ctx, "scheduled run fired", "workflow_id", workflowID, "run_id", run.ID)
}

// ScheduledWorkflowIDs returns the workflow ids currently holding a cron
// entry, sorted.
func (s *Scheduler) ScheduledWorkflowIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsScheduled reports whether workflowID currently holds a cron entry.
func (s *Scheduler) IsScheduled(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[workflowID]
	return ok
}
