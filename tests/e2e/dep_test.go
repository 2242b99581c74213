package e2e_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDepAddListRemove(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)

	deploy := tp.createTask("deploy v2")
	migrate := tp.createTask("run migrations")

	out := tp.runExpectSuccess("dep", "add", deploy, migrate)
	assert.Contains(t, out, "now depends on")

	out = tp.stdout("dep", "ls", deploy)
	assert.Contains(t, out, "run migrations")

	out = tp.stdout("dep", "ls", migrate, "--dependents")
	assert.Contains(t, out, "deploy v2")

	out = tp.runExpectSuccess("dep", "rm", deploy, migrate)
	assert.Contains(t, out, "no longer depends on")

	out = tp.runExpectSuccess("dep", "ls", deploy)
	assert.Contains(t, out, "no dependencies")
}

func TestDepCycleRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)

	a := tp.createTask("a")
	b := tp.createTask("b")
	c := tp.createTask("c")

	tp.runExpectSuccess("dep", "add", a, b)
	tp.runExpectSuccess("dep", "add", b, c)

	out, exitCode := tp.runExpectFailure("dep", "add", c, a)
	assert.NotEqual(t, 0, exitCode)
	assert.Contains(t, out, "cycle")

	// The failed edge must not have been stored.
	out = tp.runExpectSuccess("dep", "ls", c)
	assert.Contains(t, out, "no dependencies")
}

func TestDepSelfReferenceRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)

	a := tp.createTask("a")
	out, exitCode := tp.runExpectFailure("dep", "add", a, a)
	assert.NotEqual(t, 0, exitCode)
	_ = out
}

func TestCompleteBlockedByOpenDependency(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)

	deploy := tp.createTask("deploy v2")
	migrate := tp.createTask("run migrations")
	tp.runExpectSuccess("dep", "add", deploy, migrate)

	out, exitCode := tp.runExpectFailure("task", "complete", deploy)
	assert.NotEqual(t, 0, exitCode)
	assert.Contains(t, out, "dependency")

	tp.runExpectSuccess("task", "complete", migrate)
	tp.runExpectSuccess("task", "complete", deploy)
}

func TestTaskRmProtectsDependencyTargets(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)

	deploy := tp.createTask("deploy v2")
	migrate := tp.createTask("run migrations")
	tp.runExpectSuccess("dep", "add", deploy, migrate)

	out, exitCode := tp.runExpectFailure("task", "rm", migrate)
	assert.NotEqual(t, 0, exitCode)
	assert.Contains(t, out, "still has dependents")

	// Removing the edge frees the target for deletion.
	tp.runExpectSuccess("dep", "rm", deploy, migrate)
	tp.runExpectSuccess("task", "rm", migrate)
}
