package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadevries/sps/internal/config"
)

// resetRootCmd resets all global flag values and Cobra's internal "Changed"
// tracking to pristine state. This must be called at the start of every test
// that invokes Execute() or manipulates rootCmd.
func resetRootCmd(t *testing.T) {
	t.Helper()
	// Reset Go variable state immediately.
	flagVerbose = false
	flagQuiet = false
	flagConfig = ""
	flagDir = ""
	flagNoColor = false
	flagActor = ""
	flagRetries = 3
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	resetFlagState(rootCmd)
}

// resetFlagState walks the command tree putting every changed flag back to
// its declared default. Subcommands are built once by constructors, so flag
// values would otherwise leak between Execute() calls.
func resetFlagState(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	c.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlagState(sub)
	}
}

// noopCmdName is the name of the test-only noop subcommand.
const noopCmdName = "__test_noop"

// addNoopCmd registers a minimal subcommand on rootCmd so that
// PersistentPreRunE is invoked during tests. Cobra does not call
// PersistentPreRunE when the root command has no RunE and no subcommand
// is given (it just prints help). This helper ensures the pre-run hook
// fires for tests that need to verify its behavior.
func addNoopCmd(t *testing.T) {
	t.Helper()
	noop := &cobra.Command{
		Use:    noopCmdName,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	rootCmd.AddCommand(noop)
	t.Cleanup(func() {
		rootCmd.RemoveCommand(noop)
	})
}

// setupWorkspace creates a project directory holding an sps.toml wired to
// the given store backend and makes it the working directory for the rest
// of the test. The store path lives inside the same temp directory.
func setupWorkspace(t *testing.T, backend string) string {
	t.Helper()

	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.Chdir(orig)
	})

	dir := t.TempDir()
	body := fmt.Sprintf(`[project]
name = "testproj"
default_context = "inbox"
actor = "tester"

[store]
backend = %q
path = %q
`, backend, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(body), 0o644))
	require.NoError(t, os.Chdir(dir))
	return dir
}

// runCLI executes the root command with the given arguments and returns the
// captured stdout, stderr, and exit code. Output written by commands through
// cmd.OutOrStdout / cmd.ErrOrStderr is captured; log lines go to the real
// stderr and are not.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	resetRootCmd(t)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	code := Execute()
	return out.String(), errOut.String(), code
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "sps", rootCmd.Use)
}

func TestRootCmd_Short(t *testing.T) {
	assert.Equal(t, "Hierarchical task planner with dependency tracking", rootCmd.Short)
}

func TestRootCmd_Long(t *testing.T) {
	assert.Contains(t, rootCmd.Long, "hierarchical task planner")
	assert.Contains(t, rootCmd.Long, "audit log")
}

func TestRootCmd_SilenceUsage(t *testing.T) {
	assert.True(t, rootCmd.SilenceUsage, "SilenceUsage must be true")
}

func TestRootCmd_SilenceErrors(t *testing.T) {
	assert.True(t, rootCmd.SilenceErrors, "SilenceErrors must be true")
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	tests := []struct {
		name      string
		flagName  string
		shorthand string
	}{
		{name: "verbose", flagName: "verbose", shorthand: "v"},
		{name: "quiet", flagName: "quiet", shorthand: "q"},
		{name: "config", flagName: "config", shorthand: ""},
		{name: "dir", flagName: "dir", shorthand: ""},
		{name: "no-color", flagName: "no-color", shorthand: ""},
		{name: "actor", flagName: "actor", shorthand: ""},
		{name: "retries", flagName: "retries", shorthand: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(tt.flagName)
			require.NotNil(t, flag, "persistent flag %q must be registered", tt.flagName)
			if tt.shorthand != "" {
				assert.Equal(t, tt.shorthand, flag.Shorthand,
					"flag %q should have shorthand %q", tt.flagName, tt.shorthand)
			}
		})
	}
}

func TestRootCmd_FlagUsageContainsEnvHints(t *testing.T) {
	tests := []struct {
		flagName string
		envHint  string
	}{
		{flagName: "verbose", envHint: "SPS_VERBOSE"},
		{flagName: "quiet", envHint: "SPS_QUIET"},
		{flagName: "no-color", envHint: "SPS_NO_COLOR"},
		{flagName: "no-color", envHint: "NO_COLOR"},
		{flagName: "actor", envHint: "SPS_ACTOR"},
	}

	for _, tt := range tests {
		t.Run(tt.flagName+"_"+tt.envHint, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(tt.flagName)
			require.NotNil(t, flag)
			assert.Contains(t, flag.Usage, tt.envHint,
				"flag %q usage should mention env var %q", tt.flagName, tt.envHint)
		})
	}
}

func TestRootCmd_RetriesDefault(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("retries")
	require.NotNil(t, flag)
	assert.Equal(t, "3", flag.DefValue)
}

func TestExecute_NoSubcommand_ReturnsZero(t *testing.T) {
	resetRootCmd(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)

	code := Execute()
	assert.Equal(t, 0, code, "Execute with no subcommand should return exit code 0")
	assert.Contains(t, buf.String(), "Usage:", "bare invocation should print help")
}

func TestExecute_UnknownSubcommand_ReturnsOne(t *testing.T) {
	resetRootCmd(t)

	// Capture stderr to verify error output.
	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w
	t.Cleanup(func() {
		os.Stderr = oldStderr
	})

	rootCmd.SetArgs([]string{"nonexistent-command"})

	code := Execute()

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stderr = oldStderr

	assert.Equal(t, 1, code, "unknown subcommand should return exit code 1")
	assert.Contains(t, buf.String(), "unknown command",
		"stderr should contain error about unknown command")
}

func TestExecute_HelpFlag_ReturnsZero(t *testing.T) {
	resetRootCmd(t)

	rootCmd.SetArgs([]string{"--help"})

	code := Execute()
	assert.Equal(t, 0, code, "--help should return exit code 0")
}

func TestPersistentPreRunE_VerboseFlag(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	rootCmd.SetArgs([]string{"--verbose", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.True(t, flagVerbose, "flagVerbose should be set to true")
}

func TestPersistentPreRunE_QuietFlag(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	rootCmd.SetArgs([]string{"--quiet", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.True(t, flagQuiet, "flagQuiet should be set to true")
}

func TestPersistentPreRunE_ConfigFlag(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	rootCmd.SetArgs([]string{"--config", "/path/to/sps.toml", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.Equal(t, "/path/to/sps.toml", flagConfig,
		"flagConfig should store the provided path")
}

func TestPersistentPreRunE_ActorFlag(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	rootCmd.SetArgs([]string{"--actor", "frank", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.Equal(t, "frank", flagActor, "flagActor should store the provided identity")
}

func TestPersistentPreRunE_RetriesFlag(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	rootCmd.SetArgs([]string{"--retries", "7", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.Equal(t, 7, flagRetries, "flagRetries should store the provided count")
}

func TestPersistentPreRunE_DirFlag_ValidDirectory(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	origDir, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.Chdir(origDir)
	})

	tmpDir := t.TempDir()

	rootCmd.SetArgs([]string{"--dir", tmpDir, noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)

	cwd, err := os.Getwd()
	require.NoError(t, err)

	// Resolve symlinks for comparison (macOS /tmp -> /private/tmp).
	resolvedCwd, err := filepath.EvalSymlinks(cwd)
	require.NoError(t, err)
	resolvedTmp, err := filepath.EvalSymlinks(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, resolvedTmp, resolvedCwd,
		"working directory should be changed to the --dir value")
}

func TestPersistentPreRunE_DirFlag_InvalidDirectory(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	// Capture stderr.
	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w
	t.Cleanup(func() {
		os.Stderr = oldStderr
	})

	rootCmd.SetArgs([]string{"--dir", "/nonexistent/path/that/does/not/exist", noopCmdName})

	code := Execute()

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stderr = oldStderr

	assert.Equal(t, 1, code, "invalid --dir should return exit code 1")
	assert.Contains(t, buf.String(), "changing directory to",
		"error message should contain context about the directory change")
}

func TestPersistentPreRunE_DirFlag_RelativePath(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	origDir, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.Chdir(origDir)
	})

	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.Mkdir(subDir, 0o755))

	// Change to tmpDir first so "subdir" is a valid relative path.
	require.NoError(t, os.Chdir(tmpDir))

	rootCmd.SetArgs([]string{"--dir", "subdir", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	resolvedCwd, err := filepath.EvalSymlinks(cwd)
	require.NoError(t, err)
	resolvedSub, err := filepath.EvalSymlinks(subDir)
	require.NoError(t, err)

	assert.Equal(t, resolvedSub, resolvedCwd,
		"relative --dir should resolve relative to current CWD")
}

func TestPersistentPreRunE_NoColorFlag(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	rootCmd.SetArgs([]string{"--no-color", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.True(t, flagNoColor, "flagNoColor should be set to true")
}

func TestPersistentPreRunE_EnvVerbose(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	t.Setenv("SPS_VERBOSE", "1")

	rootCmd.SetArgs([]string{noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.True(t, flagVerbose, "SPS_VERBOSE env should set flagVerbose to true")
}

func TestPersistentPreRunE_EnvQuiet(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	t.Setenv("SPS_QUIET", "1")

	rootCmd.SetArgs([]string{noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.True(t, flagQuiet, "SPS_QUIET env should set flagQuiet to true")
}

func TestPersistentPreRunE_EnvNoColor(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	t.Setenv("NO_COLOR", "1")

	rootCmd.SetArgs([]string{noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.True(t, flagNoColor, "NO_COLOR env should set flagNoColor to true")
}

func TestPersistentPreRunE_EnvSpsNoColor(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	t.Setenv("SPS_NO_COLOR", "1")

	rootCmd.SetArgs([]string{noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.True(t, flagNoColor, "SPS_NO_COLOR env should set flagNoColor to true")
}

func TestPersistentPreRunE_FlagBeatsEnv(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	// An explicit flag wins over the env var, even a "false" one.
	t.Setenv("SPS_VERBOSE", "1")

	rootCmd.SetArgs([]string{"--verbose=false", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	assert.False(t, flagVerbose, "explicit --verbose=false should beat SPS_VERBOSE")
}

func TestPersistentPreRunE_VerboseAndQuiet_QuietWins(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	rootCmd.SetArgs([]string{"--verbose", "--quiet", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code)
	// Both flags are set; logging.Setup handles the precedence (quiet wins).
	assert.True(t, flagVerbose, "flagVerbose should be true")
	assert.True(t, flagQuiet, "flagQuiet should be true (quiet wins in logging.Setup)")
}

func TestPersistentPreRunE_ConfigNonexistentFile(t *testing.T) {
	resetRootCmd(t)
	addNoopCmd(t)

	// The pre-run hook only records the path; commands that need config
	// report the missing file themselves.
	rootCmd.SetArgs([]string{"--config", "/does/not/exist/sps.toml", noopCmdName})

	code := Execute()
	assert.Equal(t, 0, code, "non-existent config file should not cause an error at this stage")
	assert.Equal(t, "/does/not/exist/sps.toml", flagConfig)
}

func TestRootCmd_HelpOutput_ContainsAllFlags(t *testing.T) {
	resetRootCmd(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--help"})

	code := Execute()
	assert.Equal(t, 0, code)

	helpOutput := buf.String()
	expectedFlags := []string{
		"--verbose",
		"--quiet",
		"--config",
		"--dir",
		"--no-color",
		"--actor",
		"--retries",
		"-v",
		"-q",
	}

	for _, flag := range expectedFlags {
		assert.Contains(t, helpOutput, flag,
			"help output should contain %q", flag)
	}
}

func TestRootCmd_HelpOutput_ListsCoreCommands(t *testing.T) {
	resetRootCmd(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--help"})

	code := Execute()
	assert.Equal(t, 0, code)

	helpOutput := buf.String()
	for _, name := range []string{"task", "dep", "context", "log", "verify", "serve", "dashboard", "init", "status"} {
		assert.Contains(t, helpOutput, name,
			"help output should list the %q command", name)
	}
}

func TestRootCmd_HelpOutput_ContainsUsage(t *testing.T) {
	resetRootCmd(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--help"})

	code := Execute()
	assert.Equal(t, 0, code)

	helpOutput := buf.String()
	assert.Contains(t, helpOutput, "Usage:", "help output should contain Usage section")
	assert.Contains(t, helpOutput, "Flags:", "help output should contain Flags section")
}
