// Package dag validates DAG documents and exposes the shared topological
// ordering helper used by both the validator and the orchestrator's plan
// construction.
package dag

import (
	"fmt"

	"github.com/gammazero/toposort"

	"github.com/taskgraph/engine/internal/models"
)

// TopoOrder returns the task ids of doc in a valid topological order,
// including task ids that have no dependency edges at all. Returns an
// error if the induced digraph contains a cycle.
func TopoOrder(doc models.DAGDocument) ([]string, error) {
	if len(doc.Tasks) == 0 {
		return nil, nil
	}

	if len(doc.Dependencies) == 0 {
		order := make([]string, 0, len(doc.Tasks))
		for _, task := range doc.Tasks {
			order = append(order, task.TaskID)
		}
		return order, nil
	}

	edges := make([]toposort.Edge, 0, len(doc.Dependencies))
	for _, dep := range doc.Dependencies {
		edges = append(edges, toposort.Edge{dep.Upstream, dep.Downstream})
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("cycle detected in DAG: %w", err)
	}

	inSorted := make(map[string]bool, len(sorted))
	order := make([]string, 0, len(doc.Tasks))
	for _, node := range sorted {
		name := node.(string)
		inSorted[name] = true
		order = append(order, name)
	}

	// toposort only knows about nodes that appear in an edge; prepend
	// tasks with no dependency edges at all (isolated roots).
	for _, task := range doc.Tasks {
		if !inSorted[task.TaskID] {
			order = append([]string{task.TaskID}, order...)
		}
	}
	return order, nil
}

// InDegrees computes the number of upstream dependencies for every task
// in doc.
func InDegrees(doc models.DAGDocument) map[string]int {
	degrees := make(map[string]int, len(doc.Tasks))
	for _, task := range doc.Tasks {
		degrees[task.TaskID] = 0
	}
	for _, dep := range doc.Dependencies {
		degrees[dep.Downstream]++
	}
	return degrees
}

// Downstream returns, for each task id, the list of task ids that depend
// on it directly.
func Downstream(doc models.DAGDocument) map[string][]string {
	children := make(map[string][]string, len(doc.Tasks))
	for _, dep := range doc.Dependencies {
		children[dep.Upstream] = append(children[dep.Upstream], dep.Downstream)
	}
	return children
}

// Upstream returns, for each task id, the list of task ids it directly
// depends on.
func Upstream(doc models.DAGDocument) map[string][]string {
	parents := make(map[string][]string, len(doc.Tasks))
	for _, dep := range doc.Dependencies {
		parents[dep.Downstream] = append(parents[dep.Downstream], dep.Upstream)
	}
	return parents
}
