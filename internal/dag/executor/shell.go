package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ShellExecutor runs a shell command line via mvdan.cc/sh's pure-Go POSIX
// shell interpreter, so task execution does not depend on a system /bin/sh
// and behaves identically across platforms.
type ShellExecutor struct{}

// Execute implements Executor. params must carry "cmd" (string).
func (e *ShellExecutor) Execute(ctx context.Context, params map[string]any, ctxValues map[string]any) (map[string]any, error) {
	cmd, ok := params["cmd"].(string)
	if !ok || cmd == "" {
		return nil, fmt.Errorf("shell executor: params.cmd is required")
	}
	return runShellSource(ctx, cmd)
}

// ScriptExecutor runs a script file by path through the same interpreter.
type ScriptExecutor struct{}

// Execute implements Executor. params must carry "path" (string) naming a
// script file on disk.
func (e *ScriptExecutor) Execute(ctx context.Context, params map[string]any, ctxValues map[string]any) (map[string]any, error) {
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("script executor: params.path is required")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script executor: read %s: %w", path, err)
	}
	return runShellSourceNamed(ctx, string(src), path)
}

func runShellSource(ctx context.Context, src string) (map[string]any, error) {
	return runShellSourceNamed(ctx, src, "")
}

func runShellSourceNamed(ctx context.Context, src, name string) (map[string]any, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parse shell source: %w", err)
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.StdIO(nil, &stdout, &stderr),
	)
	if err != nil {
		return nil, fmt.Errorf("create shell interpreter: %w", err)
	}

	runErr := runner.Run(ctx, file)

	returnCode := 0
	if runErr != nil {
		var status interp.ExitStatus
		switch {
		case errors.As(runErr, &status):
			returnCode = int(status)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, fmt.Errorf("shell execution failed: %w", runErr)
		}
	}

	return map[string]any{
		"stdout":     stdout.String(),
		"stderr":     stderr.String(),
		"returncode": returnCode,
	}, nil
}
