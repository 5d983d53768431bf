package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
tasks:
  - task_id: t1
    type: shell
    params:
      cmd: "echo hi"
    retries: 2
    trigger_rule: all_success
    branches:
      ok: ["t2"]
      err: ["t3"]
  - task_id: t2
    type: shell
    params: {}
  - task_id: t3
    type: shell
    params: {}
dependencies:
  - upstream: t1
    downstream: t2
  - upstream: t1
    downstream: t3
`

func TestLoadYAML(t *testing.T) {
	doc, err := LoadYAML([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, doc.Tasks, 3)
	assert.Equal(t, "shell", doc.Tasks[0].Type)
	assert.Equal(t, []string{"t2"}, doc.Tasks[0].Branches["ok"])
}

func TestLoadYAMLRejectsInvalidDAG(t *testing.T) {
	_, err := LoadYAML([]byte("tasks: []\n"))
	require.Error(t, err)
}

const sampleJSON = `{
  "tasks": [
    {"task_id": "t1", "type": "shell", "params": {"cmd": "echo hi"}}
  ],
  "dependencies": []
}`

func TestLoadJSON(t *testing.T) {
	doc, err := LoadJSON([]byte(sampleJSON))
	require.NoError(t, err)
	require.Len(t, doc.Tasks, 1)
	assert.Equal(t, "t1", doc.Tasks[0].TaskID)
}
