// Package memstore is a mutex-guarded, in-process store.Store
// implementation for development and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taskgraph/engine/internal/models"
)

// Store is an in-memory store.Store. The zero value is not usable; use
// New.
type Store struct {
	mu        sync.Mutex
	workflows map[string]*models.Workflow
	runs      map[string]*models.WorkflowRun
	taskRuns  map[string]*models.TaskRun
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		workflows: make(map[string]*models.Workflow),
		runs:      make(map[string]*models.WorkflowRun),
		taskRuns:  make(map[string]*models.TaskRun),
	}
}

func (s *Store) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *wf
	s.workflows[wf.ID] = &cp
	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "workflow", ID: id}
	}
	cp := *wf
	return &cp, nil
}

func (s *Store) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		cp := *wf
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return &models.NotFoundError{Kind: "workflow", ID: id}
	}
	wf.Status = status
	return nil
}

func (s *Store) UpdateSchedule(ctx context.Context, id string, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return &models.NotFoundError{Kind: "workflow", ID: id}
	}
	wf.Schedule = schedule
	return nil
}

func (s *Store) CreateWorkflowRun(ctx context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *Store) GetWorkflowRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "workflow_run", ID: id}
	}
	cp := *run
	return &cp, nil
}

func (s *Store) UpdateWorkflowRunStatus(ctx context.Context, id string, status models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return &models.NotFoundError{Kind: "workflow_run", ID: id}
	}
	if run.Status == models.RunSuccess || run.Status == models.RunFailed {
		return &models.OrchestrationError{Message: "workflow run " + id + " is already terminal"}
	}
	now := time.Now()
	switch status {
	case models.RunRunning:
		if run.StartedAt == nil {
			run.StartedAt = &now
		}
	case models.RunSuccess, models.RunFailed:
		run.FinishedAt = &now
	}
	run.Status = status
	return nil
}

func (s *Store) ListActiveWorkflowRuns(ctx context.Context) ([]*models.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.WorkflowRun
	for _, run := range s.runs {
		if run.Status == models.RunPending || run.Status == models.RunRunning {
			cp := *run
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateTaskRun(ctx context.Context, tr *models.TaskRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tr
	s.taskRuns[tr.ID] = &cp
	return nil
}

func (s *Store) GetTaskRun(ctx context.Context, id string) (*models.TaskRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.taskRuns[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "task_run", ID: id}
	}
	cp := *tr
	return &cp, nil
}

func (s *Store) UpdateTaskRun(ctx context.Context, tr *models.TaskRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.taskRuns[tr.ID]
	if !ok {
		return &models.NotFoundError{Kind: "task_run", ID: tr.ID}
	}
	if existing.Status.IsTerminal() {
		return &models.OrchestrationError{Message: "task run " + tr.ID + " is already terminal"}
	}
	cp := *tr
	s.taskRuns[tr.ID] = &cp
	return nil
}

func (s *Store) ListTaskRunsByWorkflowRun(ctx context.Context, workflowRunID string) ([]*models.TaskRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TaskRun
	for _, tr := range s.taskRuns {
		if tr.WorkflowRunID == workflowRunID {
			cp := *tr
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskID != out[j].TaskID {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].Attempt < out[j].Attempt
	})
	return out, nil
}

func (s *Store) LatestTaskRun(ctx context.Context, workflowRunID, taskID string) (*models.TaskRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.TaskRun
	for _, tr := range s.taskRuns {
		if tr.WorkflowRunID != workflowRunID || tr.TaskID != taskID {
			continue
		}
		if latest == nil || tr.Attempt > latest.Attempt {
			latest = tr
		}
	}
	if latest == nil {
		return nil, &models.NotFoundError{Kind: "task_run", ID: taskID}
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) Close() error { return nil }
