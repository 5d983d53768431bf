// Package sqlitestore is the durable store.Store implementation for a
// single-node deployment, backed by modernc.org/sqlite (pure Go, no CGO).
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/taskgraph/engine/internal/models"
	"github.com/taskgraph/engine/internal/util"
)

// Store is a store.Store backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite database at dsn and runs
// the schema migration.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", dsn, err)
	}

	// A single connection avoids SQLITE_BUSY under WAL for the process's
	// own writes; cross-process coordination is out of scope for the
	// default single-node store.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: set pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	schedule TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL,
	dag_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_runs (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TEXT NOT NULL DEFAULT '-',
	finished_at TEXT NOT NULL DEFAULT '-'
);
CREATE INDEX IF NOT EXISTS idx_workflow_runs_status ON workflow_runs(status);

CREATE TABLE IF NOT EXISTS task_runs (
	id               TEXT PRIMARY KEY,
	task_id          TEXT NOT NULL,
	workflow_run_id  TEXT NOT NULL,
	attempt          INTEGER NOT NULL,
	loop_index       INTEGER NOT NULL DEFAULT 0,
	loop_item_json   TEXT NOT NULL DEFAULT 'null',
	status           TEXT NOT NULL,
	result_json      TEXT NOT NULL DEFAULT 'null',
	log              TEXT NOT NULL DEFAULT '',
	started_at       TEXT NOT NULL DEFAULT '-',
	finished_at      TEXT NOT NULL DEFAULT '-'
);
CREATE INDEX IF NOT EXISTS idx_task_runs_run ON task_runs(workflow_run_id, task_id, attempt);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	dagJSON, err := json.Marshal(wf.DAG)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal dag: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, schedule, status, dag_json) VALUES (?, ?, ?, ?, ?)`,
		wf.ID, wf.Name, wf.Schedule, string(wf.Status), string(dagJSON))
	if err != nil {
		return fmt.Errorf("sqlitestore: create workflow %s: %w", wf.ID, err)
	}
	return nil
}

func (s *Store) scanWorkflow(row *sql.Row) (*models.Workflow, error) {
	var wf models.Workflow
	var status, dagJSON string
	if err := row.Scan(&wf.ID, &wf.Name, &wf.Schedule, &status, &dagJSON); err != nil {
		return nil, err
	}
	wf.Status = models.WorkflowStatus(status)
	if err := json.Unmarshal([]byte(dagJSON), &wf.DAG); err != nil {
		return nil, fmt.Errorf("sqlitestore: unmarshal dag for %s: %w", wf.ID, err)
	}
	return &wf, nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, schedule, status, dag_json FROM workflows WHERE id = ?`, id)
	wf, err := s.scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "workflow", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get workflow %s: %w", id, err)
	}
	return wf, nil
}

func (s *Store) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, schedule, status, dag_json FROM workflows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list workflows: %w", err)
	}
	defer rows.Close()

	var out []*models.Workflow
	for rows.Next() {
		var wf models.Workflow
		var status, dagJSON string
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Schedule, &status, &dagJSON); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan workflow: %w", err)
		}
		wf.Status = models.WorkflowStatus(status)
		if err := json.Unmarshal([]byte(dagJSON), &wf.DAG); err != nil {
			return nil, fmt.Errorf("sqlitestore: unmarshal dag for %s: %w", wf.ID, err)
		}
		out = append(out, &wf)
	}
	return out, rows.Err()
}

func (s *Store) UpdateWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE workflows SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("sqlitestore: update workflow status %s: %w", id, err)
	}
	return requireRowAffected(res, "workflow", id)
}

func (s *Store) UpdateSchedule(ctx context.Context, id string, schedule string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE workflows SET schedule = ? WHERE id = ?`, schedule, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: update schedule %s: %w", id, err)
	}
	return requireRowAffected(res, "workflow", id)
}

func (s *Store) CreateWorkflowRun(ctx context.Context, run *models.WorkflowRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, status, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, string(run.Status), formatPtrTime(run.StartedAt), formatPtrTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("sqlitestore: create workflow run %s: %w", run.ID, err)
	}
	return nil
}

func scanWorkflowRun(scan func(dest ...any) error) (*models.WorkflowRun, error) {
	var run models.WorkflowRun
	var status, startedAt, finishedAt string
	if err := scan(&run.ID, &run.WorkflowID, &status, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Status = models.RunStatus(status)
	var err error
	if run.StartedAt, err = parsePtrTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parsePtrTime(finishedAt); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) GetWorkflowRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, status, started_at, finished_at FROM workflow_runs WHERE id = ?`, id)
	run, err := scanWorkflowRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "workflow_run", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get workflow run %s: %w", id, err)
	}
	return run, nil
}

func (s *Store) UpdateWorkflowRunStatus(ctx context.Context, id string, status models.RunStatus) error {
	run, err := s.GetWorkflowRun(ctx, id)
	if err != nil {
		return err
	}
	if run.Status == models.RunSuccess || run.Status == models.RunFailed {
		return &models.OrchestrationError{Message: "workflow run " + id + " is already terminal"}
	}

	now := util.FormatTime(time.Now())
	startedAt := formatPtrTime(run.StartedAt)
	finishedAt := formatPtrTime(run.FinishedAt)
	switch status {
	case models.RunRunning:
		if run.StartedAt == nil {
			startedAt = now
		}
	case models.RunSuccess, models.RunFailed:
		finishedAt = now
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE workflow_runs SET status = ?, started_at = ?, finished_at = ? WHERE id = ?`,
		string(status), startedAt, finishedAt, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: update workflow run status %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListActiveWorkflowRuns(ctx context.Context) ([]*models.WorkflowRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, status, started_at, finished_at FROM workflow_runs
		 WHERE status IN (?, ?) ORDER BY id`,
		string(models.RunPending), string(models.RunRunning))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list active workflow runs: %w", err)
	}
	defer rows.Close()

	var out []*models.WorkflowRun
	for rows.Next() {
		run, err := scanWorkflowRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: scan workflow run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) CreateTaskRun(ctx context.Context, tr *models.TaskRun) error {
	resultJSON, loopItemJSON, err := marshalTaskRunJSON(tr)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO task_runs
		 (id, task_id, workflow_run_id, attempt, loop_index, loop_item_json, status, result_json, log, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.TaskID, tr.WorkflowRunID, tr.Attempt, tr.LoopIndex, loopItemJSON,
		string(tr.Status), resultJSON, tr.Log, formatPtrTime(tr.StartedAt), formatPtrTime(tr.FinishedAt))
	if err != nil {
		return fmt.Errorf("sqlitestore: create task run %s: %w", tr.ID, err)
	}
	return nil
}

func marshalTaskRunJSON(tr *models.TaskRun) (resultJSON, loopItemJSON string, err error) {
	r, err := json.Marshal(tr.Result)
	if err != nil {
		return "", "", fmt.Errorf("sqlitestore: marshal task run result: %w", err)
	}
	li, err := json.Marshal(tr.LoopItem)
	if err != nil {
		return "", "", fmt.Errorf("sqlitestore: marshal task run loop item: %w", err)
	}
	return string(r), string(li), nil
}

func scanTaskRun(scan func(dest ...any) error) (*models.TaskRun, error) {
	var tr models.TaskRun
	var status, resultJSON, loopItemJSON, startedAt, finishedAt string
	if err := scan(&tr.ID, &tr.TaskID, &tr.WorkflowRunID, &tr.Attempt, &tr.LoopIndex,
		&loopItemJSON, &status, &resultJSON, &tr.Log, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	tr.Status = models.TaskStatus(status)
	if err := json.Unmarshal([]byte(resultJSON), &tr.Result); err != nil {
		return nil, fmt.Errorf("sqlitestore: unmarshal task run result: %w", err)
	}
	if err := json.Unmarshal([]byte(loopItemJSON), &tr.LoopItem); err != nil {
		return nil, fmt.Errorf("sqlitestore: unmarshal task run loop item: %w", err)
	}
	var err error
	if tr.StartedAt, err = parsePtrTime(startedAt); err != nil {
		return nil, err
	}
	if tr.FinishedAt, err = parsePtrTime(finishedAt); err != nil {
		return nil, err
	}
	return &tr, nil
}

const taskRunColumns = `id, task_id, workflow_run_id, attempt, loop_index, loop_item_json, status, result_json, log, started_at, finished_at`

func (s *Store) GetTaskRun(ctx context.Context, id string) (*models.TaskRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskRunColumns+` FROM task_runs WHERE id = ?`, id)
	tr, err := scanTaskRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "task_run", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get task run %s: %w", id, err)
	}
	return tr, nil
}

func (s *Store) UpdateTaskRun(ctx context.Context, tr *models.TaskRun) error {
	existing, err := s.GetTaskRun(ctx, tr.ID)
	if err != nil {
		return err
	}
	if existing.Status.IsTerminal() {
		return &models.OrchestrationError{Message: "task run " + tr.ID + " is already terminal"}
	}

	resultJSON, loopItemJSON, err := marshalTaskRunJSON(tr)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE task_runs SET status = ?, result_json = ?, loop_item_json = ?, log = ?, started_at = ?, finished_at = ? WHERE id = ?`,
		string(tr.Status), resultJSON, loopItemJSON, tr.Log, formatPtrTime(tr.StartedAt), formatPtrTime(tr.FinishedAt), tr.ID)
	if err != nil {
		return fmt.Errorf("sqlitestore: update task run %s: %w", tr.ID, err)
	}
	return nil
}

func (s *Store) ListTaskRunsByWorkflowRun(ctx context.Context, workflowRunID string) ([]*models.TaskRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskRunColumns+` FROM task_runs WHERE workflow_run_id = ? ORDER BY task_id, attempt`,
		workflowRunID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list task runs for %s: %w", workflowRunID, err)
	}
	defer rows.Close()

	var out []*models.TaskRun
	for rows.Next() {
		tr, err := scanTaskRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: scan task run: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *Store) LatestTaskRun(ctx context.Context, workflowRunID, taskID string) (*models.TaskRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskRunColumns+` FROM task_runs
		 WHERE workflow_run_id = ? AND task_id = ?
		 ORDER BY attempt DESC LIMIT 1`,
		workflowRunID, taskID)
	tr, err := scanTaskRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "task_run", ID: taskID}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: latest task run %s/%s: %w", workflowRunID, taskID, err)
	}
	return tr, nil
}

func requireRowAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitestore: rows affected: %w", err)
	}
	if n == 0 {
		return &models.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
