package cli

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadevries/sps/internal/task"
)

func TestLogCmd_Registration(t *testing.T) {
	var found bool
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "log" {
			found = true
			assert.Equal(t, "Show a task's audit log", cmd.Short)
			assert.NotNil(t, cmd.Flags().Lookup("comments"))
			assert.NotNil(t, cmd.Flags().Lookup("json"))
		}
	}
	assert.True(t, found, "log command should be registered on the root command")
}

func TestLog_NoEntries(t *testing.T) {
	setupWorkspace(t, "badger")
	mustCreateTask(t, "unrelated")

	stdout, stderr, code := runCLI(t, "log", "00000000-0000-7000-8000-000000000000")

	assert.Equal(t, 0, code, "an id with no history is not an error")
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "No log entries.")
}

func TestLog_CreationEntry(t *testing.T) {
	setupWorkspace(t, "badger")
	id := mustCreateTask(t, "write release notes")

	stdout, _, code := runCLI(t, "log", id)

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "#1")
	assert.Contains(t, stdout, "tester")
	assert.Contains(t, stdout, "created: write release notes")
}

func TestLog_ChangeRendering(t *testing.T) {
	setupWorkspace(t, "badger")
	id := mustCreateTask(t, "write release notes")

	steps := [][]string{
		{"task", "assign", id, "frank"},
		{"task", "assign", id},
		{"task", "status", id, "in-progress"},
		{"task", "complete", id},
	}
	for _, args := range steps {
		_, _, code := runCLI(t, args...)
		require.Equal(t, 0, code, "step %v", args)
	}

	stdout, _, code := runCLI(t, "log", id)

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "assignee: frank", "a set from empty renders the new value alone")
	assert.Contains(t, stdout, "assignee: frank cleared")
	assert.Contains(t, stdout, "status: todo -> in-progress")
	assert.Contains(t, stdout, "complete: false -> true")
}

func TestLog_AppendOrder(t *testing.T) {
	setupWorkspace(t, "badger")
	id := mustCreateTask(t, "ordered")
	_, _, code := runCLI(t, "comment", id, "first")
	require.Equal(t, 0, code)
	_, _, code = runCLI(t, "comment", id, "second")
	require.Equal(t, 0, code)

	stdout, _, code := runCLI(t, "log", id)

	require.Equal(t, 0, code)
	first := strings.Index(stdout, "comment: first")
	second := strings.Index(stdout, "comment: second")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second, "entries print oldest first")
}

func TestLog_CommentsFilter(t *testing.T) {
	setupWorkspace(t, "badger")
	id := mustCreateTask(t, "noisy")
	_, _, code := runCLI(t, "task", "complete", id)
	require.Equal(t, 0, code)
	_, _, code = runCLI(t, "comment", id, "done ahead of schedule")
	require.Equal(t, 0, code)

	stdout, _, code := runCLI(t, "log", id, "--comments")

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "comment: done ahead of schedule")
	assert.NotContains(t, stdout, "created:")
	assert.NotContains(t, stdout, "complete:")
}

func TestLog_CommentsFilterEmpty(t *testing.T) {
	setupWorkspace(t, "badger")
	id := mustCreateTask(t, "quiet")

	stdout, stderr, code := runCLI(t, "log", id, "--comments")

	assert.Equal(t, 0, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "No log entries.")
}

func TestLog_JSON(t *testing.T) {
	setupWorkspace(t, "badger")
	id := mustCreateTask(t, "chained")
	_, _, code := runCLI(t, "task", "complete", id)
	require.Equal(t, 0, code)
	_, _, code = runCLI(t, "comment", id, "verified on staging")
	require.Equal(t, 0, code)

	stdout, _, code := runCLI(t, "log", id, "--json")

	require.Equal(t, 0, code)
	var entries []task.LogEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 3)

	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.Equal(t, "created", entries[0].Field)
	assert.Zero(t, entries[0].PrevChecksum, "the first entry anchors the chain")

	assert.Equal(t, uint64(2), entries[1].Seq)
	assert.Equal(t, "complete", entries[1].Field)
	assert.Equal(t, entries[0].Checksum, entries[1].PrevChecksum)

	assert.Equal(t, uint64(3), entries[2].Seq)
	assert.Equal(t, task.KindComment, entries[2].Kind)
	assert.Equal(t, entries[1].Checksum, entries[2].PrevChecksum)

	for _, e := range entries {
		assert.Equal(t, id, e.TaskID)
		assert.NotZero(t, e.Checksum)
	}
}

func TestRenderLogEntry(t *testing.T) {
	ts := time.Date(2026, 8, 25, 14, 10, 0, 0, time.UTC)

	t.Run("Change", func(t *testing.T) {
		line := renderLogEntry(&task.LogEntry{
			Seq: 2, Author: "frank", Timestamp: ts, Kind: task.KindChange,
			Field: "status", OldValue: "todo", NewValue: "in-progress",
		})
		assert.Contains(t, line, "#2")
		assert.Contains(t, line, "2026-08-25 14:10")
		assert.Contains(t, line, "frank")
		assert.Contains(t, line, "status: todo -> in-progress")
	})

	t.Run("SetFromEmpty", func(t *testing.T) {
		line := renderLogEntry(&task.LogEntry{
			Seq: 1, Author: "frank", Timestamp: ts, Kind: task.KindChange,
			Field: "created", NewValue: "fix login",
		})
		assert.Contains(t, line, "created: fix login")
		assert.NotContains(t, line, "->")
	})

	t.Run("Cleared", func(t *testing.T) {
		line := renderLogEntry(&task.LogEntry{
			Seq: 3, Author: "frank", Timestamp: ts, Kind: task.KindChange,
			Field: "assignee", OldValue: "frank",
		})
		assert.Contains(t, line, "assignee: frank cleared")
	})

	t.Run("Comment", func(t *testing.T) {
		line := renderLogEntry(&task.LogEntry{
			Seq: 4, Author: "grace", Timestamp: ts, Kind: task.KindComment,
			Text: "should we backport this?",
		})
		assert.Contains(t, line, "comment: should we backport this?")
		assert.Contains(t, line, "grace")
	})
}

func TestLog_RequiresArg(t *testing.T) {
	setupWorkspace(t, "badger")

	_, stderr, code := runCLIWithStderr(t, "log")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "accepts 1 arg(s)")
}
