package e2e_test

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testProject is an isolated project directory with its own sps.toml and a
// freshly built sps binary. Each test gets its own badger store, so tests
// can run in parallel without sharing state.
type testProject struct {
	Dir        string
	BinaryPath string
	t          *testing.T
}

// newTestProject builds the sps binary into a temp directory and writes a
// badger-backed sps.toml next to it. Must be called from a test function.
func newTestProject(t *testing.T) *testProject {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("E2E tests are not supported on Windows")
	}

	dir := t.TempDir()

	binary := filepath.Join(dir, "sps")
	build := exec.Command("go", "build", "-o", binary, "./cmd/sps")
	build.Dir = projectRoot()
	out, err := build.CombinedOutput()
	require.NoError(t, err, "building sps: %s", string(out))

	tp := &testProject{Dir: dir, BinaryPath: binary, t: t}
	tp.writeConfig(minimalConfig("e2e-project"))
	return tp
}

// projectRoot returns the absolute path to the root of the sps repository.
// It uses runtime.Caller(0) to find this source file's location and navigates
// two directories up (tests/e2e/ -> tests/ -> repo root).
func projectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..")
}

// writeConfig writes content to sps.toml in tp.Dir.
func (tp *testProject) writeConfig(content string) {
	tp.t.Helper()
	err := os.WriteFile(filepath.Join(tp.Dir, "sps.toml"), []byte(content), 0o644)
	require.NoError(tp.t, err)
}

// run creates an exec.Cmd for sps rooted in the project directory. Color is
// disabled and the actor pinned so output is stable across machines.
func (tp *testProject) run(args ...string) *exec.Cmd {
	cmd := exec.Command(tp.BinaryPath, args...)
	cmd.Dir = tp.Dir
	cmd.Env = append(os.Environ(),
		"NO_COLOR=1",
		"SPS_LOG_FORMAT=json",
		"SPS_ACTOR=e2e",
	)
	return cmd
}

// runExpectSuccess runs sps and asserts exit code 0.
// Returns combined stdout+stderr output.
func (tp *testProject) runExpectSuccess(args ...string) string {
	tp.t.Helper()
	cmd := tp.run(args...)
	out, err := cmd.CombinedOutput()
	require.NoError(tp.t, err, "sps %v failed:\n%s", args, string(out))
	return string(out)
}

// runExpectFailure runs sps and asserts a non-zero exit code.
// Returns combined output and the exit code.
func (tp *testProject) runExpectFailure(args ...string) (string, int) {
	tp.t.Helper()
	cmd := tp.run(args...)
	out, err := cmd.CombinedOutput()
	require.Error(tp.t, err, "sps %v expected to fail but succeeded:\n%s", args, string(out))
	var exitErr *exec.ExitError
	require.True(tp.t, errors.As(err, &exitErr), "expected *exec.ExitError, got %T: %v", err, err)
	return string(out), exitErr.ExitCode()
}

// stdout runs sps, asserts success, and returns trimmed stdout only. Mutation
// commands print the new entity's id there, so this is how tests capture ids.
func (tp *testProject) stdout(args ...string) string {
	tp.t.Helper()
	cmd := tp.run(args...)
	var sb strings.Builder
	cmd.Stdout = &sb
	cmd.Stderr = os.Stderr
	require.NoError(tp.t, cmd.Run(), "sps %v failed", args)
	return strings.TrimSpace(sb.String())
}

// createTask creates a task and returns its id. Extra args are appended to
// the "task new" invocation verbatim.
func (tp *testProject) createTask(title string, extra ...string) string {
	tp.t.Helper()
	args := append([]string{"task", "new", title}, extra...)
	id := tp.stdout(args...)
	require.NotEmpty(tp.t, id, "task new printed no id")
	return id
}

// minimalConfig returns sps.toml content with an isolated badger store.
func minimalConfig(projectName string) string {
	return fmt.Sprintf(`[project]
name = "%s"
default_context = "inbox"

[store]
backend = "badger"
path = ".sps/badger"
`, projectName)
}
