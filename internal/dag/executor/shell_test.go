package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellExecutorCapturesStdout(t *testing.T) {
	e := &ShellExecutor{}
	result, err := e.Execute(context.Background(), map[string]any{"cmd": "echo hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result["stdout"])
	assert.Equal(t, 0, result["returncode"])
}

func TestShellExecutorNonZeroExit(t *testing.T) {
	e := &ShellExecutor{}
	result, err := e.Execute(context.Background(), map[string]any{"cmd": "exit 3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result["returncode"])
}

func TestShellExecutorMissingCmd(t *testing.T) {
	e := &ShellExecutor{}
	_, err := e.Execute(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
}

func TestShellExecutorStderr(t *testing.T) {
	e := &ShellExecutor{}
	result, err := e.Execute(context.Background(), map[string]any{"cmd": "echo oops 1>&2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "oops\n", result["stderr"])
}
