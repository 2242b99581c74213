package graph

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadevries/sps/internal/task"
)

type snapshot map[string]*task.Task

func (s snapshot) Task(_ context.Context, id string) (*task.Task, error) {
	tk, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return tk, nil
}

func node(id, parent string, children, deps []string) *task.Task {
	return &task.Task{ID: id, ParentID: parent, ChildIDs: children, DependencyIDs: deps}
}

// forest builds:
//
//	root ── a ── a1
//	          └─ a2
//	     └─ b
func forest() snapshot {
	return snapshot{
		"root": node("root", "", []string{"a", "b"}, nil),
		"a":    node("a", "root", []string{"a1", "a2"}, nil),
		"a1":   node("a1", "a", nil, nil),
		"a2":   node("a2", "a", nil, nil),
		"b":    node("b", "root", nil, nil),
	}
}

// ---- ancestor chain -----------------------------------------------------------

func TestAncestorChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := forest()

	chain, err := AncestorChain(ctx, s, "a1")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "a", chain[0].ID, "parent comes first")
	assert.Equal(t, "root", chain[1].ID, "root comes last")

	chain, err = AncestorChain(ctx, s, "root")
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestAncestorChain_CorruptParentPointers(t *testing.T) {
	t.Parallel()

	s := snapshot{
		"a": node("a", "b", nil, nil),
		"b": node("b", "a", nil, nil),
	}
	_, err := AncestorChain(context.Background(), s, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hierarchy corrupt")
}

// ---- hierarchy cycle check ----------------------------------------------------

func TestHierarchyCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := forest()

	t.Run("safe attach", func(t *testing.T) {
		t.Parallel()
		witness, err := HierarchyCycle(ctx, s, "b", "a1")
		require.NoError(t, err)
		assert.Nil(t, witness)
	})

	t.Run("self attach", func(t *testing.T) {
		t.Parallel()
		witness, err := HierarchyCycle(ctx, s, "a", "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "a"}, witness)
	})

	t.Run("attach parent under its own child", func(t *testing.T) {
		t.Parallel()
		witness, err := HierarchyCycle(ctx, s, "a1", "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "a1", "a"}, witness)
	})

	t.Run("attach root under a grandchild", func(t *testing.T) {
		t.Parallel()
		witness, err := HierarchyCycle(ctx, s, "a2", "root")
		require.NoError(t, err)
		assert.Equal(t, []string{"root", "a", "a2", "root"}, witness)
	})
}

// ---- dependency cycle check ---------------------------------------------------

func TestDependencyCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := snapshot{
		"a": node("a", "", nil, []string{"b"}),
		"b": node("b", "", nil, []string{"c"}),
		"c": node("c", "", nil, nil),
		"d": node("d", "", nil, nil),
	}

	t.Run("safe edge", func(t *testing.T) {
		t.Parallel()
		witness, err := DependencyCycle(ctx, s, "d", "a")
		require.NoError(t, err)
		assert.Nil(t, witness)
	})

	t.Run("self dependency", func(t *testing.T) {
		t.Parallel()
		witness, err := DependencyCycle(ctx, s, "a", "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "a"}, witness)
	})

	t.Run("direct cycle", func(t *testing.T) {
		t.Parallel()
		// b already depends on c; c -> b closes the loop.
		witness, err := DependencyCycle(ctx, s, "c", "b")
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "c"}, witness)
	})

	t.Run("transitive cycle", func(t *testing.T) {
		t.Parallel()
		// a -> b -> c exists; c -> a closes the loop.
		witness, err := DependencyCycle(ctx, s, "c", "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b", "c"}, witness)
	})

	t.Run("diamond is not a cycle", func(t *testing.T) {
		t.Parallel()
		diamond := snapshot{
			"top":   node("top", "", nil, []string{"l", "r"}),
			"l":     node("l", "", nil, []string{"base"}),
			"r":     node("r", "", nil, []string{"base"}),
			"base":  node("base", "", nil, nil),
			"other": node("other", "", nil, nil),
		}
		witness, err := DependencyCycle(ctx, diamond, "base", "other")
		require.NoError(t, err)
		assert.Nil(t, witness)
	})
}

// ---- snapshot validation ------------------------------------------------------

func TestForestProblems(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ForestProblems(forest()))
	})

	t.Run("missing parent", func(t *testing.T) {
		t.Parallel()
		s := snapshot{"a": node("a", "ghost", nil, nil)}
		problems := ForestProblems(s)
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0].Detail, "parent ghost does not exist")
	})

	t.Run("parent does not list child", func(t *testing.T) {
		t.Parallel()
		s := snapshot{
			"p": node("p", "", nil, nil),
			"c": node("c", "p", nil, nil),
		}
		problems := ForestProblems(s)
		require.Len(t, problems, 1)
		assert.Equal(t, "c", problems[0].TaskID)
	})

	t.Run("child does not point back", func(t *testing.T) {
		t.Parallel()
		s := snapshot{
			"p": node("p", "", []string{"c"}, nil),
			"c": node("c", "", nil, nil),
		}
		problems := ForestProblems(s)
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0].Detail, `names "" as parent`)
	})

	t.Run("duplicate child entry", func(t *testing.T) {
		t.Parallel()
		s := snapshot{
			"p": node("p", "", []string{"c", "c"}, nil),
			"c": node("c", "p", nil, nil),
		}
		problems := ForestProblems(s)
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0].Detail, "listed twice")
	})

	t.Run("parent pointer cycle", func(t *testing.T) {
		t.Parallel()
		s := snapshot{
			"a": node("a", "b", []string{"b"}, nil),
			"b": node("b", "a", []string{"a"}, nil),
		}
		problems := ForestProblems(s)
		require.NotEmpty(t, problems)

		found := false
		for _, p := range problems {
			if strings.Contains(p.Detail, "form a cycle") {
				found = true
			}
		}
		assert.True(t, found, "expected a parent-cycle finding, got %v", problems)
	})
}

func TestDAGProblems(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		s := snapshot{
			"a": node("a", "", nil, []string{"b"}),
			"b": node("b", "", nil, nil),
		}
		assert.Empty(t, DAGProblems(s))
	})

	t.Run("self dependency", func(t *testing.T) {
		t.Parallel()
		s := snapshot{"a": node("a", "", nil, []string{"a"})}
		problems := DAGProblems(s)
		require.NotEmpty(t, problems)
		assert.Contains(t, problems[0].Detail, "depends on itself")
	})

	t.Run("dangling dependency", func(t *testing.T) {
		t.Parallel()
		s := snapshot{"a": node("a", "", nil, []string{"ghost"})}
		problems := DAGProblems(s)
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0].Detail, "ghost does not exist")
	})

	t.Run("duplicate dependency", func(t *testing.T) {
		t.Parallel()
		s := snapshot{
			"a": node("a", "", nil, []string{"b", "b"}),
			"b": node("b", "", nil, nil),
		}
		problems := DAGProblems(s)
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0].Detail, "listed twice")
	})

	t.Run("cycle witness", func(t *testing.T) {
		t.Parallel()
		s := snapshot{
			"a": node("a", "", nil, []string{"b"}),
			"b": node("b", "", nil, []string{"c"}),
			"c": node("c", "", nil, []string{"a"}),
		}
		problems := DAGProblems(s)
		require.Len(t, problems, 1)
		assert.Equal(t, "a", problems[0].TaskID, "witness starts at the smallest id")
		assert.Contains(t, problems[0].Detail, "form a cycle")
	})
}
