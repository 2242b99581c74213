// Package contexts maintains the context forest: the named buckets every
// task is filed under. Contexts nest, so queries can cover a context alone
// or its whole subtree, and paths like "work/backend" address a context by
// the names along its ancestry.
package contexts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/wadevries/sps/internal/store"
	"github.com/wadevries/sps/internal/task"
)

var (
	// ErrCycle reports a reparent that would make a context its own
	// ancestor.
	ErrCycle = errors.New("context cycle")

	// ErrAmbiguousName reports a name lookup that matched more than one
	// context.
	ErrAmbiguousName = errors.New("context name is ambiguous")
)

// Directory is the administrative surface over the context forest.
type Directory struct {
	store  store.Store
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger attaches a logger. When nil the directory operates silently.
func WithLogger(logger *log.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

// WithClock overrides the time source. Useful in tests.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// NewDirectory creates a Directory over the given store.
func NewDirectory(s store.Store, opts ...Option) *Directory {
	d := &Directory{
		store: s,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Create adds a context. parentID may be empty for a new root.
func (d *Directory) Create(ctx context.Context, name, parentID string) (*task.Context, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("creating context: name is empty")
	}

	now := d.now()
	c := &task.Context{
		ID:        task.NewID(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	txn := store.NewTxn()
	if parentID != "" {
		parent, err := d.store.GetContext(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("creating context %q: %w", name, err)
		}
		parent.AppendChild(c.ID)
		parent.UpdatedAt = now
		txn.PutContext(parent)
	}
	txn.PutContext(c)

	if err := d.store.Commit(ctx, txn); err != nil {
		return nil, fmt.Errorf("creating context %q: %w", name, err)
	}
	if d.logger != nil {
		d.logger.Debug("context created", "id", c.ID, "name", name, "parent", parentID)
	}
	return c, nil
}

// Rename changes a context's display name. Task references are by id, so
// nothing else moves.
func (d *Directory) Rename(ctx context.Context, id, newName string) (*task.Context, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, errors.New("renaming context: name is empty")
	}

	c, err := d.store.GetContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("renaming context %s: %w", id, err)
	}
	c.Name = newName
	c.UpdatedAt = d.now()

	if err := d.store.Commit(ctx, store.NewTxn().PutContext(c)); err != nil {
		return nil, fmt.Errorf("renaming context %s: %w", id, err)
	}
	return c, nil
}

// Reparent moves a context (and implicitly its subtree) under newParentID,
// or to the root when newParentID is empty. Moves that would make the
// context its own ancestor fail with ErrCycle.
func (d *Directory) Reparent(ctx context.Context, id, newParentID string) (*task.Context, error) {
	c, err := d.store.GetContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reparenting context %s: %w", id, err)
	}
	if newParentID == c.ParentID {
		return c, nil
	}

	all, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	if newParentID != "" {
		if _, ok := all[newParentID]; !ok {
			return nil, fmt.Errorf("reparenting context %s: context %s: %w", id, newParentID, store.ErrNotFound)
		}
		if onAncestorPath(all, newParentID, id) {
			return nil, fmt.Errorf("reparenting context %s under %s: %w", id, newParentID, ErrCycle)
		}
	}

	now := d.now()
	txn := store.NewTxn()

	if c.ParentID != "" {
		oldParent := all[c.ParentID]
		if oldParent == nil {
			return nil, fmt.Errorf("reparenting context %s: parent %s: %w", id, c.ParentID, store.ErrNotFound)
		}
		oldParent.RemoveChild(id)
		oldParent.UpdatedAt = now
		txn.PutContext(oldParent)
	}
	if newParentID != "" {
		newParent := all[newParentID]
		newParent.AppendChild(id)
		newParent.UpdatedAt = now
		txn.PutContext(newParent)
	}
	c.ParentID = newParentID
	c.UpdatedAt = now
	txn.PutContext(c)

	if err := d.store.Commit(ctx, txn); err != nil {
		return nil, fmt.Errorf("reparenting context %s: %w", id, err)
	}
	return c, nil
}

// Get returns one context by id.
func (d *Directory) Get(ctx context.Context, id string) (*task.Context, error) {
	return d.store.GetContext(ctx, id)
}

// Exists reports whether a context id is live.
func (d *Directory) Exists(ctx context.Context, id string) (bool, error) {
	_, err := d.store.GetContext(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns every context, ordered by creation time.
func (d *Directory) List(ctx context.Context) ([]*task.Context, error) {
	return d.store.ListContexts(ctx)
}

// ByName finds a context by display name. Names are not forced unique, so
// a name carried by several contexts fails with ErrAmbiguousName; address
// those by path or id instead.
func (d *Directory) ByName(ctx context.Context, name string) (*task.Context, error) {
	all, err := d.store.ListContexts(ctx)
	if err != nil {
		return nil, err
	}
	var found *task.Context
	for _, c := range all {
		if c.Name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("context %q: %w", name, ErrAmbiguousName)
		}
		found = c
	}
	if found == nil {
		return nil, fmt.Errorf("context %q: %w", name, store.ErrNotFound)
	}
	return found, nil
}

// EnsureDefault returns the context named name, creating it as a root
// context when it does not exist yet.
func (d *Directory) EnsureDefault(ctx context.Context, name string) (*task.Context, error) {
	c, err := d.ByName(ctx, name)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return c, err
	}
	return d.Create(ctx, name, "")
}

// Subtree returns the ids of a context and everything nested under it,
// parents before children.
func (d *Directory) Subtree(ctx context.Context, id string) ([]string, error) {
	all, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := all[id]; !ok {
		return nil, fmt.Errorf("context %s: %w", id, store.ErrNotFound)
	}

	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		if c := all[cur]; c != nil {
			queue = append(queue, c.ChildIDs...)
		}
	}
	return out, nil
}

// Path returns the slash-joined names from the root down to the context,
// e.g. "work/backend/infra".
func (d *Directory) Path(ctx context.Context, id string) (string, error) {
	all, err := d.load(ctx)
	if err != nil {
		return "", err
	}
	return pathOf(all, id)
}

// Match returns the contexts whose path matches the given doublestar
// pattern, e.g. "work/**" for a whole subtree or "*/infra" for any
// second-level context named infra.
func (d *Directory) Match(ctx context.Context, pattern string) ([]*task.Context, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid context pattern %q", pattern)
	}
	all, err := d.load(ctx)
	if err != nil {
		return nil, err
	}

	var out []*task.Context
	for _, id := range sortedByCreation(all) {
		path, err := pathOf(all, id)
		if err != nil {
			return nil, err
		}
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			return nil, fmt.Errorf("matching context pattern %q: %w", pattern, err)
		}
		if ok {
			out = append(out, all[id])
		}
	}
	return out, nil
}

func (d *Directory) load(ctx context.Context) (map[string]*task.Context, error) {
	list, err := d.store.ListContexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading contexts: %w", err)
	}
	out := make(map[string]*task.Context, len(list))
	for _, c := range list {
		out[c.ID] = c
	}
	return out, nil
}

// onAncestorPath reports whether want appears at or above id.
func onAncestorPath(all map[string]*task.Context, id, want string) bool {
	seen := map[string]bool{}
	for cur := id; cur != "" && !seen[cur]; {
		if cur == want {
			return true
		}
		seen[cur] = true
		c := all[cur]
		if c == nil {
			return false
		}
		cur = c.ParentID
	}
	return false
}

func pathOf(all map[string]*task.Context, id string) (string, error) {
	var names []string
	seen := map[string]bool{}
	for cur := id; cur != ""; {
		if seen[cur] {
			return "", fmt.Errorf("context forest corrupt: cycle at %s", cur)
		}
		seen[cur] = true
		c := all[cur]
		if c == nil {
			return "", fmt.Errorf("context %s: %w", cur, store.ErrNotFound)
		}
		names = append(names, c.Name)
		cur = c.ParentID
	}
	slices.Reverse(names)
	return strings.Join(names, "/"), nil
}

func sortedByCreation(all map[string]*task.Context) []string {
	list := make([]*task.Context, 0, len(all))
	for _, c := range all {
		list = append(list, c)
	}
	store.SortContexts(list)
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	return ids
}
