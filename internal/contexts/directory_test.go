package contexts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadevries/sps/internal/store"
)

// testClock hands out strictly increasing timestamps so creation order is
// deterministic.
func testClock() func() time.Time {
	t := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newDirectory(t *testing.T) (*Directory, context.Context) {
	t.Helper()
	return NewDirectory(store.NewMemory(), WithClock(testClock())), context.Background()
}

func TestDirectory_CreateAndGet(t *testing.T) {
	t.Parallel()
	d, ctx := newDirectory(t)

	root, err := d.Create(ctx, "work", "")
	require.NoError(t, err)
	assert.NotEmpty(t, root.ID)
	assert.Empty(t, root.ParentID)

	child, err := d.Create(ctx, "backend", root.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, child.ParentID)

	got, err := d.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID}, got.ChildIDs, "parent lists the new child")

	_, err = d.Create(ctx, "  ", "")
	assert.Error(t, err, "blank names are rejected")

	_, err = d.Create(ctx, "orphan", "no-such-parent")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDirectory_Exists(t *testing.T) {
	t.Parallel()
	d, ctx := newDirectory(t)

	c, err := d.Create(ctx, "work", "")
	require.NoError(t, err)

	ok, err := d.Exists(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Exists(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectory_Rename(t *testing.T) {
	t.Parallel()
	d, ctx := newDirectory(t)

	c, err := d.Create(ctx, "work", "")
	require.NoError(t, err)

	renamed, err := d.Rename(ctx, c.ID, "day job")
	require.NoError(t, err)
	assert.Equal(t, "day job", renamed.Name)

	got, err := d.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "day job", got.Name)
}

func TestDirectory_Reparent(t *testing.T) {
	t.Parallel()
	d, ctx := newDirectory(t)

	work, err := d.Create(ctx, "work", "")
	require.NoError(t, err)
	backend, err := d.Create(ctx, "backend", work.ID)
	require.NoError(t, err)
	infra, err := d.Create(ctx, "infra", backend.ID)
	require.NoError(t, err)
	home, err := d.Create(ctx, "home", "")
	require.NoError(t, err)

	// Move backend (with its subtree) under home.
	moved, err := d.Reparent(ctx, backend.ID, home.ID)
	require.NoError(t, err)
	assert.Equal(t, home.ID, moved.ParentID)

	oldParent, err := d.Get(ctx, work.ID)
	require.NoError(t, err)
	assert.Empty(t, oldParent.ChildIDs)

	newParent, err := d.Get(ctx, home.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{backend.ID}, newParent.ChildIDs)

	path, err := d.Path(ctx, infra.ID)
	require.NoError(t, err)
	assert.Equal(t, "home/backend/infra", path, "subtree follows the move")
}

func TestDirectory_Reparent_RejectsCycles(t *testing.T) {
	t.Parallel()
	d, ctx := newDirectory(t)

	work, err := d.Create(ctx, "work", "")
	require.NoError(t, err)
	backend, err := d.Create(ctx, "backend", work.ID)
	require.NoError(t, err)
	infra, err := d.Create(ctx, "infra", backend.ID)
	require.NoError(t, err)

	_, err = d.Reparent(ctx, work.ID, infra.ID)
	require.ErrorIs(t, err, ErrCycle)

	_, err = d.Reparent(ctx, work.ID, work.ID)
	require.ErrorIs(t, err, ErrCycle)

	// State is unchanged after the rejections.
	got, err := d.Get(ctx, work.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ParentID)
}

func TestDirectory_Reparent_ToRoot(t *testing.T) {
	t.Parallel()
	d, ctx := newDirectory(t)

	work, err := d.Create(ctx, "work", "")
	require.NoError(t, err)
	backend, err := d.Create(ctx, "backend", work.ID)
	require.NoError(t, err)

	moved, err := d.Reparent(ctx, backend.ID, "")
	require.NoError(t, err)
	assert.Empty(t, moved.ParentID)

	path, err := d.Path(ctx, backend.ID)
	require.NoError(t, err)
	assert.Equal(t, "backend", path)
}

func TestDirectory_ByNameAndEnsureDefault(t *testing.T) {
	t.Parallel()
	d, ctx := newDirectory(t)

	inbox, err := d.EnsureDefault(ctx, "inbox")
	require.NoError(t, err)
	require.NotNil(t, inbox)

	again, err := d.EnsureDefault(ctx, "inbox")
	require.NoError(t, err)
	assert.Equal(t, inbox.ID, again.ID, "ensure is idempotent")

	byName, err := d.ByName(ctx, "inbox")
	require.NoError(t, err)
	assert.Equal(t, inbox.ID, byName.ID)

	_, err = d.ByName(ctx, "nothing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Duplicate names become ambiguous for name lookup.
	work, err := d.Create(ctx, "work", "")
	require.NoError(t, err)
	_, err = d.Create(ctx, "inbox", work.ID)
	require.NoError(t, err)
	_, err = d.ByName(ctx, "inbox")
	assert.ErrorIs(t, err, ErrAmbiguousName)
}

func TestDirectory_Subtree(t *testing.T) {
	t.Parallel()
	d, ctx := newDirectory(t)

	work, err := d.Create(ctx, "work", "")
	require.NoError(t, err)
	backend, err := d.Create(ctx, "backend", work.ID)
	require.NoError(t, err)
	frontend, err := d.Create(ctx, "frontend", work.ID)
	require.NoError(t, err)
	infra, err := d.Create(ctx, "infra", backend.ID)
	require.NoError(t, err)
	_, err = d.Create(ctx, "home", "")
	require.NoError(t, err)

	ids, err := d.Subtree(ctx, work.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{work.ID, backend.ID, frontend.ID, infra.ID}, ids)

	ids, err = d.Subtree(ctx, infra.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{infra.ID}, ids)

	_, err = d.Subtree(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDirectory_Match(t *testing.T) {
	t.Parallel()
	d, ctx := newDirectory(t)

	work, err := d.Create(ctx, "work", "")
	require.NoError(t, err)
	backend, err := d.Create(ctx, "backend", work.ID)
	require.NoError(t, err)
	_, err = d.Create(ctx, "infra", backend.ID)
	require.NoError(t, err)
	_, err = d.Create(ctx, "home", "")
	require.NoError(t, err)

	names := func(pattern string) []string {
		t.Helper()
		matches, err := d.Match(ctx, pattern)
		require.NoError(t, err)
		out := make([]string, len(matches))
		for i, c := range matches {
			out[i] = c.Name
		}
		return out
	}

	assert.Equal(t, []string{"work", "backend", "infra", "home"}, names("**"))
	// A trailing ** also matches the subtree root itself.
	assert.Equal(t, []string{"work", "backend", "infra"}, names("work/**"))
	assert.Equal(t, []string{"backend"}, names("*/backend"))
	assert.Empty(t, names("nothing/*"))

	_, err = d.Match(ctx, "broken[")
	assert.Error(t, err)
}
