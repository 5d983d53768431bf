package dag

import (
	"fmt"

	"github.com/taskgraph/engine/internal/models"
)

// Validate checks doc against every structural invariant spec.md §4.1
// requires, in order: non-empty task list, task_id/type/params presence,
// task_id uniqueness, dependency endpoints resolve to known task ids, the
// induced digraph is acyclic, and every branch child resolves to a known
// task id. Validate is pure: it never mutates doc and never touches
// persistence.
func Validate(doc models.DAGDocument) error {
	if len(doc.Tasks) == 0 {
		return &models.ValidationError{Message: "DAG must declare at least one task"}
	}

	taskIDs := make(map[string]models.TaskNode, len(doc.Tasks))
	for i, task := range doc.Tasks {
		if task.TaskID == "" {
			return &models.ValidationError{Message: fmt.Sprintf("task at index %d is missing task_id", i)}
		}
		if task.Type == "" {
			return &models.ValidationError{Message: fmt.Sprintf("task %q is missing type", task.TaskID)}
		}
		if task.Params == nil {
			return &models.ValidationError{Message: fmt.Sprintf("task %q is missing params", task.TaskID)}
		}
		if _, exists := taskIDs[task.TaskID]; exists {
			return &models.ValidationError{Message: fmt.Sprintf("duplicate task_id %q", task.TaskID)}
		}
		taskIDs[task.TaskID] = task
	}

	for _, dep := range doc.Dependencies {
		if _, ok := taskIDs[dep.Upstream]; !ok {
			return &models.ValidationError{Message: fmt.Sprintf("dependency references unknown upstream task_id %q", dep.Upstream)}
		}
		if _, ok := taskIDs[dep.Downstream]; !ok {
			return &models.ValidationError{Message: fmt.Sprintf("dependency references unknown downstream task_id %q", dep.Downstream)}
		}
	}

	if _, err := TopoOrder(doc); err != nil {
		return &models.ValidationError{Message: err.Error()}
	}

	for _, task := range doc.Tasks {
		for branchValue, children := range task.Branches {
			for _, childID := range children {
				if _, ok := taskIDs[childID]; !ok {
					return &models.ValidationError{Message: fmt.Sprintf(
						"task %q branch %q references unknown task_id %q", task.TaskID, branchValue, childID)}
				}
			}
		}
	}

	return nil
}
