package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// TimeoutExitCode is reported when the wall clock expires, matching the
// conventional shell timeout(1) exit status.
const TimeoutExitCode = 124

// ExecResult captures one shell invocation
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// RunShell executes a command string through the shell with a wall-clock
// timeout. stdout and stderr are captured whole. On expiry the child is
// killed, the exit code is forced to 124, and a synthetic
// "[timeout after <ms>ms]" line is appended to the stderr capture.
// The returned error covers exec machinery failures only; a non-zero
// exit is a normal result.
func RunShell(ctx context.Context, command string, timeout time.Duration, env []string) (ExecResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Env = env
	// Do not wait on inherited pipes after the kill
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		durationMS := time.Since(start).Milliseconds()
		result.ExitCode = TimeoutExitCode
		result.TimedOut = true
		result.Stderr += fmt.Sprintf("\n[timeout after %dms]", durationMS)
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to run command: %w", err)
	}

	result.ExitCode = cmd.ProcessState.ExitCode()
	return result, nil
}
