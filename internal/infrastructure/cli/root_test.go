package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernhell/kernhell-go/internal/domain"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	state := filepath.Join(dir, "state")
	cfg := fmt.Sprintf(`paths:
  state_dir: %q
healing:
  interpreter: sh
  max_retries: 1
screenshot:
  enabled: false
logging:
  level: error
  file: ""
`, state)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, err := NewRootCmd(context.Background(), Options{})
	require.NoError(t, err)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_KeyManagement(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "config", "add-key", "gsk_1234567890abcd", "--provider", "groq")
	require.NoError(t, err)
	assert.Contains(t, out, "Added groq key gsk_********abcd (1 total)")

	_, err = execute(t, "--config", cfgPath, "config", "add-key", "gsk_1234567890abcd", "--provider", "groq")
	assert.True(t, errors.Is(err, domain.ErrCredentialExists))

	_, err = execute(t, "--config", cfgPath, "config", "add-key", "x", "--provider", "mystery")
	assert.True(t, errors.Is(err, domain.ErrUnknownBackend))

	out, err = execute(t, "--config", cfgPath, "config", "list-keys")
	require.NoError(t, err)
	assert.Equal(t, "* groq       #0 gsk_********abcd\n", out)

	out, err = execute(t, "--config", cfgPath, "quota")
	require.NoError(t, err)
	assert.Contains(t, out, "groq")

	out, err = execute(t, "--config", cfgPath, "config", "remove-key", "gsk_1234567890abcd")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed groq key")

	out, err = execute(t, "--config", cfgPath, "config", "list-keys")
	require.NoError(t, err)
	assert.Contains(t, out, "No API keys configured")
}

func TestRoot_HealFile(t *testing.T) {
	cfgPath, dir := writeConfig(t)

	passing := filepath.Join(dir, "test_ok.py")
	require.NoError(t, os.WriteFile(passing, []byte("exit 0\n"), 0o644))
	out, err := execute(t, "--config", cfgPath, "heal", passing)
	require.NoError(t, err)
	assert.Contains(t, out, "[PASS]")

	failing := filepath.Join(dir, "test_broken.py")
	require.NoError(t, os.WriteFile(failing, []byte("echo boom >&2\nexit 1\n"), 0o644))
	_, err = execute(t, "--config", cfgPath, "heal", failing)
	assert.True(t, errors.Is(err, domain.ErrNoCredentials), "got %v", err)

	out, err = execute(t, "--config", cfgPath, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "HEALED")
	assert.Contains(t, out, "test_ok.py")
}

func TestRoot_ConfigDiffAndValidate(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "Configuration valid\n", out)

	out, err = execute(t, "--config", cfgPath, "config", "diff")
	require.NoError(t, err)
	assert.Contains(t, out, "Interpreter")
	assert.True(t, strings.Contains(out, `"sh"`))
}

func TestRenderBatch(t *testing.T) {
	var out bytes.Buffer
	RenderBatch(&out, domain.BatchReport{
		Outcomes: []domain.HealOutcome{
			{File: "a.py", State: domain.HealPassed, Attempts: 1},
			{File: "b.py", State: domain.HealPassed, Attempts: 2, Model: "llama"},
			{File: "c.py", State: domain.HealFailed, Attempts: 4, Reason: "retry budget exhausted", Error: "E1\nE2"},
		},
		Failures: 1,
	})
	want := "[PASS]   a.py\n" +
		"[HEALED] b.py after 2 runs (model: llama)\n" +
		"[FAILED] c.py after 4 runs - retry budget exhausted\n" +
		"  E1\n  E2\n" +
		"\n2/3 files passing, 1 failed\n"
	assert.Equal(t, want, out.String())

	out.Reset()
	RenderBatch(&out, domain.BatchReport{})
	assert.Equal(t, "No test files found.\n", out.String())
}

func TestFailedFilesError(t *testing.T) {
	err := error(&FailedFilesError{Failed: 2, Total: 5})
	var failed *FailedFilesError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "2 of 5 files could not be healed", err.Error())
}

func TestRoot_DoctorFailsWithoutKeys(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "doctor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API keys")
	assert.Contains(t, out, "[ERROR] API keys - none configured")
	assert.Contains(t, out, "[OK] Guardrail")
}

func TestRoot_Guardrail(t *testing.T) {
	cfgPath, dir := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "guardrail", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Guardrail is enabled with")

	safe := filepath.Join(dir, "test_login.py")
	require.NoError(t, os.WriteFile(safe, []byte("page.goto(\"http://localhost:3000\")\n"), 0o644))
	out, err = execute(t, "--config", cfgPath, "guardrail", "check", safe)
	require.NoError(t, err)
	assert.Contains(t, out, "ALLOW (safe)")

	risky := filepath.Join(dir, "test_cleanup.py")
	require.NoError(t, os.WriteFile(risky, []byte("import shutil\nshutil.rmtree('/')\n"), 0o644))
	out, err = execute(t, "--config", cfgPath, "guardrail", "check", risky)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would be rejected")
	assert.Contains(t, out, "BLOCK (critical)")
}

func TestSpinner(t *testing.T) {
	var out bytes.Buffer
	s := NewSpinner(&out, "Verifying 2 keys...")
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
	assert.Contains(t, out.String(), "Verifying 2 keys...")
	assert.True(t, strings.HasSuffix(out.String(), "\r\033[K"))

	assert.IsType(t, noopSpinner{}, newSpinner(&out, "x"), "buffers are not terminals")
}
