package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// these tests drive /bin/sh as the interpreter so they do not depend on python
func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_script.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_Pass(t *testing.T) {
	r := New(requireShell(t), 5*time.Second, nil)
	res := r.Run(context.Background(), script(t, "echo hello\n"))

	assert.True(t, res.Passed)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
}

func TestRun_Failure(t *testing.T) {
	r := New(requireShell(t), 5*time.Second, nil)
	res := r.Run(context.Background(), script(t, "echo boom >&2\nexit 3\n"))

	assert.False(t, res.Passed)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom\n", res.Stderr)
	assert.Equal(t, "boom\n", res.ErrorText())
}

func TestRun_Timeout(t *testing.T) {
	r := New(requireShell(t), 200*time.Millisecond, nil)
	res := r.Run(context.Background(), script(t, "exec sleep 5\n"))

	assert.False(t, res.Passed)
	assert.True(t, res.TimedOut)
	assert.Equal(t, timeoutMessage, res.Stderr)
}

func TestRun_MissingFile(t *testing.T) {
	r := New("", 0, nil)
	res := r.Run(context.Background(), filepath.Join(t.TempDir(), "nope.py"))

	assert.False(t, res.Passed)
	assert.Equal(t, notFoundMessage, res.Stderr)
	assert.Equal(t, "python", r.Interpreter())
}

func TestRun_MissingInterpreter(t *testing.T) {
	r := New("definitely-not-an-interpreter-xyz", time.Second, nil)
	res := r.Run(context.Background(), script(t, "true\n"))

	assert.False(t, res.Passed)
	assert.NotEmpty(t, res.Stderr)
}
