package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgraph/engine/internal/models"
)

func task(id, typ string) models.TaskNode {
	return models.TaskNode{TaskID: id, Type: typ, Params: map[string]any{}}
}

func TestValidateEmptyDAG(t *testing.T) {
	err := Validate(models.DAGDocument{})
	require.Error(t, err)
	assert.IsType(t, &models.ValidationError{}, err)
}

func TestValidateLinearDAG(t *testing.T) {
	doc := models.DAGDocument{
		Tasks: []models.TaskNode{task("t1", "shell"), task("t2", "shell")},
		Dependencies: []models.Dependency{
			{Upstream: "t1", Downstream: "t2"},
		},
	}
	require.NoError(t, Validate(doc))
}

func TestValidateDuplicateTaskID(t *testing.T) {
	doc := models.DAGDocument{
		Tasks: []models.TaskNode{task("t1", "shell"), task("t1", "shell")},
	}
	err := Validate(doc)
	require.Error(t, err)
}

func TestValidateMissingType(t *testing.T) {
	doc := models.DAGDocument{
		Tasks: []models.TaskNode{{TaskID: "t1", Params: map[string]any{}}},
	}
	require.Error(t, Validate(doc))
}

func TestValidateUnknownDependencyEndpoint(t *testing.T) {
	doc := models.DAGDocument{
		Tasks:        []models.TaskNode{task("t1", "shell")},
		Dependencies: []models.Dependency{{Upstream: "t1", Downstream: "ghost"}},
	}
	require.Error(t, Validate(doc))
}

func TestValidateCycleDetected(t *testing.T) {
	doc := models.DAGDocument{
		Tasks: []models.TaskNode{task("t1", "shell"), task("t2", "shell")},
		Dependencies: []models.Dependency{
			{Upstream: "t1", Downstream: "t2"},
			{Upstream: "t2", Downstream: "t1"},
		},
	}
	require.Error(t, Validate(doc))
}

func TestValidateUnknownBranchChild(t *testing.T) {
	t1 := task("t1", "shell")
	t1.Branches = map[string][]string{"ok": {"ghost"}}
	doc := models.DAGDocument{Tasks: []models.TaskNode{t1}}
	require.Error(t, Validate(doc))
}

func TestValidateBranchChildrenResolve(t *testing.T) {
	t1 := task("t1", "shell")
	t1.Branches = map[string][]string{"ok": {"t2"}, "err": {"t3"}}
	doc := models.DAGDocument{
		Tasks: []models.TaskNode{t1, task("t2", "shell"), task("t3", "shell")},
	}
	require.NoError(t, Validate(doc))
}

func TestValidateTwoRoots(t *testing.T) {
	doc := models.DAGDocument{
		Tasks: []models.TaskNode{task("t1", "shell"), task("t2", "shell"), task("t3", "shell")},
		Dependencies: []models.Dependency{
			{Upstream: "t1", Downstream: "t3"},
			{Upstream: "t2", Downstream: "t3"},
		},
	}
	require.NoError(t, Validate(doc))
}

func TestTopoOrderIncludesIsolatedNodes(t *testing.T) {
	doc := models.DAGDocument{
		Tasks: []models.TaskNode{task("t1", "shell"), task("t2", "shell"), task("t3", "shell")},
		Dependencies: []models.Dependency{
			{Upstream: "t1", Downstream: "t2"},
		},
	}
	order, err := TopoOrder(doc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2", "t3"}, order)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["t1"], pos["t2"])
}
