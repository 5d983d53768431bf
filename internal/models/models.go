// Package models defines the durable records shared by the orchestrator,
// task runner, scheduler and state store: Workflow, WorkflowRun, TaskNode
// and TaskRun.
package models

import "time"

// RunStatus is the lifecycle status of a WorkflowRun.
type RunStatus string

const (
	RunPending RunStatus = "PENDING"
	RunRunning RunStatus = "RUNNING"
	RunSuccess RunStatus = "SUCCESS"
	RunFailed  RunStatus = "FAILED"
)

// TaskStatus is the lifecycle status of a TaskRun attempt.
type TaskStatus string

const (
	TaskPending TaskStatus = "PENDING"
	TaskRunning TaskStatus = "RUNNING"
	TaskSuccess TaskStatus = "SUCCESS"
	TaskFailed  TaskStatus = "FAILED"
	TaskSkipped TaskStatus = "SKIPPED"
)

// IsTerminal reports whether status is one the state machine does not leave.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskSuccess, TaskFailed, TaskSkipped:
		return true
	default:
		return false
	}
}

// TriggerRule decides whether a downstream task becomes eligible once its
// upstream set has settled.
type TriggerRule string

const (
	TriggerAllSuccess TriggerRule = "all_success"
	TriggerAllDone    TriggerRule = "all_done"
	TriggerAnySuccess TriggerRule = "any_success"
	TriggerAnyFailed  TriggerRule = "any_failed"
)

// WorkflowStatus is the lifecycle status of a Workflow definition.
type WorkflowStatus string

const (
	WorkflowActive   WorkflowStatus = "ACTIVE"
	WorkflowDisabled WorkflowStatus = "DISABLED"
)

// LoopSpec fans a single DAG node out into one TaskRun per item.
type LoopSpec struct {
	Foreach []any `json:"foreach" yaml:"foreach"`
}

// TaskNode is a single node in a DAG document.
type TaskNode struct {
	TaskID      string              `json:"task_id" yaml:"task_id"`
	Type        string              `json:"type" yaml:"type"`
	Params      map[string]any      `json:"params" yaml:"params"`
	Retries     int                 `json:"retries,omitempty" yaml:"retries,omitempty"`
	RetryDelay  time.Duration       `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
	Timeout     time.Duration       `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	TriggerRule TriggerRule         `json:"trigger_rule,omitempty" yaml:"trigger_rule,omitempty"`
	Condition   string              `json:"condition,omitempty" yaml:"condition,omitempty"`
	Branches    map[string][]string `json:"branches,omitempty" yaml:"branches,omitempty"`
	Loop        *LoopSpec           `json:"loop,omitempty" yaml:"loop,omitempty"`
}

// EffectiveTriggerRule returns the node's trigger rule, defaulting to
// all_success when unset.
func (n TaskNode) EffectiveTriggerRule() TriggerRule {
	if n.TriggerRule == "" {
		return TriggerAllSuccess
	}
	return n.TriggerRule
}

// Dependency is one edge of the DAG document.
type Dependency struct {
	Upstream   string `json:"upstream" yaml:"upstream"`
	Downstream string `json:"downstream" yaml:"downstream"`
}

// DAGDocument is the full declaration of a workflow's task graph.
type DAGDocument struct {
	Tasks        []TaskNode   `json:"tasks" yaml:"tasks"`
	Dependencies []Dependency `json:"dependencies" yaml:"dependencies"`
}

// Workflow is the durable definition of a schedulable DAG.
type Workflow struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Schedule string         `json:"schedule,omitempty"`
	Status   WorkflowStatus `json:"status"`
	DAG      DAGDocument    `json:"dag"`
}

// WorkflowRun is a single execution instance of a Workflow.
type WorkflowRun struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Status     RunStatus  `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TaskRun is a single attempt at executing a DAG node within a WorkflowRun.
type TaskRun struct {
	ID            string         `json:"id"`
	TaskID        string         `json:"task_id"`
	WorkflowRunID string         `json:"workflow_run_id"`
	Attempt       int            `json:"attempt"`
	LoopIndex     int            `json:"loop_index,omitempty"`
	LoopItem      any            `json:"loop_item,omitempty"`
	Status        TaskStatus     `json:"status"`
	Result        map[string]any `json:"result,omitempty"`
	Log           string         `json:"log,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}
