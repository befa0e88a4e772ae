package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunShellSuccess(t *testing.T) {
	result, err := RunShell(context.Background(), "echo hello", 10*time.Second, os.Environ())
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.False(t, result.TimedOut)
}

func TestRunShellNonZeroExit(t *testing.T) {
	result, err := RunShell(context.Background(), "echo oops >&2; exit 3", 10*time.Second, os.Environ())
	require.NoError(t, err)

	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "oops\n", result.Stderr)
	assert.False(t, result.TimedOut)
}

func TestRunShellTimeout(t *testing.T) {
	result, err := RunShell(context.Background(), "echo start; sleep 5", 300*time.Millisecond, os.Environ())
	require.NoError(t, err)

	assert.Equal(t, TimeoutExitCode, result.ExitCode)
	assert.True(t, result.TimedOut)
	assert.Contains(t, result.Stderr, "[timeout after ")
	// Output written before the deadline is preserved
	assert.Contains(t, result.Stdout, "start")
}

func TestRunShellEnvPassthrough(t *testing.T) {
	env := append(os.Environ(), "JOB_ID=job_test")
	result, err := RunShell(context.Background(), "echo $JOB_ID", 10*time.Second, env)
	require.NoError(t, err)

	assert.Equal(t, "job_test\n", result.Stdout)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"one"}, splitLines("one\n"))
	assert.Equal(t, []string{"one", "two"}, splitLines("one\ntwo"))
	assert.Equal(t, []string{"one", "", "two"}, splitLines("one\n\ntwo\n"))
	assert.Equal(t, []string{"crlf", "line"}, splitLines("crlf\r\nline\r\n"))
}
