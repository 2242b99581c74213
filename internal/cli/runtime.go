package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/config"
	"github.com/wadevries/sps/internal/contexts"
	"github.com/wadevries/sps/internal/logging"
	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/store"
	"github.com/wadevries/sps/internal/store/badgerstore"
	"github.com/wadevries/sps/internal/store/pgstore"
	"github.com/wadevries/sps/internal/task"
)

// runtime bundles everything a data command needs: the resolved config, an
// open store, the context directory, and a planner wired to the configured
// status set. Built by openRuntime, released by Close.
type runtime struct {
	resolved *config.ResolvedConfig
	store    store.Store
	dir      *contexts.Directory
	svc      *planner.Service
	statuses *task.StatusSet
	logger   *log.Logger
}

// openRuntime resolves configuration, opens the configured store backend, and
// wires the planner on top. Extra planner options (event channels, metrics)
// are appended after the defaults so callers can extend the service.
func openRuntime(ctx context.Context, extra ...planner.Option) (*runtime, error) {
	resolved, _, err := loadAndResolveConfig()
	if err != nil {
		return nil, err
	}
	cfg := resolved.Config

	statuses, err := task.NewStatusSet(cfg.Statuses.Values, cfg.Statuses.Default)
	if err != nil {
		return nil, fmt.Errorf("reading status set from config: %w", err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	dir := contexts.NewDirectory(st, contexts.WithLogger(logging.New("contexts")))

	opts := []planner.Option{
		planner.WithLogger(logging.New("planner")),
		planner.WithStatusSource(func() *task.StatusSet { return statuses }),
	}
	opts = append(opts, extra...)
	svc := planner.NewService(st, dir, opts...)

	return &runtime{
		resolved: resolved,
		store:    st,
		dir:      dir,
		svc:      svc,
		statuses: statuses,
		logger:   logging.New("cli"),
	}, nil
}

// Close releases the store. Safe to call on a partially built runtime.
func (r *runtime) Close() {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.logger.Warn("closing store", "error", err)
	}
}

// openStore opens the backend named in [store].backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		// Useful for demos and tests; nothing survives the process.
		return store.NewMemory(), nil
	case "badger", "":
		return badgerstore.Open(badgerstore.Config{
			Path:       cfg.Store.Path,
			SyncWrites: cfg.Store.SyncWrites,
			Logger:     logging.New("badger"),
		})
	case "postgres":
		if cfg.Store.DSN == "" {
			return nil, errors.New("opening postgres store: store.dsn is not set")
		}
		return pgstore.Open(ctx, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want memory, badger, or postgres)", cfg.Store.Backend)
	}
}

// actor returns the identity recorded on mutations. The --actor flag and the
// SPS_ACTOR env var land in project.actor during config resolution; $USER is
// the fallback for interactive use.
func (r *runtime) actor() string {
	if a := r.resolved.Config.Project.Actor; a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// defaultContext returns the configured default context, creating it on first
// use so a fresh store works without any setup commands.
func (r *runtime) defaultContext(ctx context.Context) (*task.Context, error) {
	name := r.resolved.Config.Project.DefaultContext
	if name == "" {
		name = "inbox"
	}
	c, err := r.dir.EnsureDefault(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ensuring default context %q: %w", name, err)
	}
	return c, nil
}

// resolveContext turns a user-supplied context reference (ID or unique name)
// into a context record. An empty ref falls back to the default context.
func (r *runtime) resolveContext(ctx context.Context, ref string) (*task.Context, error) {
	if ref == "" {
		return r.defaultContext(ctx)
	}
	if c, err := r.dir.Get(ctx, ref); err == nil {
		return c, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	c, err := r.dir.ByName(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("context %q not found", ref)
		}
		if errors.Is(err, contexts.ErrAmbiguousName) {
			return nil, fmt.Errorf("context name %q is ambiguous, use its id", ref)
		}
		return nil, err
	}
	return c, nil
}

// retryConflicts runs fn, retrying when a commit loses an optimistic
// concurrency race. The engine itself never retries; the number of attempts
// is the caller's call via --retries.
func retryConflicts(retries int, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		var conflict *planner.ConcurrentModificationError
		if err == nil || !errors.As(err, &conflict) {
			return err
		}
		if attempt >= retries {
			return fmt.Errorf("giving up after %d retries: %w", retries, err)
		}
	}
}

// requireTaskID validates positional task-id arguments early so typos fail
// with a usage error rather than a store miss.
func requireTaskID(args []string, n int) (string, error) {
	if len(args) <= n {
		return "", errors.New("missing task id argument")
	}
	id := strings.TrimSpace(args[n])
	if id == "" {
		return "", errors.New("empty task id argument")
	}
	return id, nil
}

// printJSON writes v to the command's stdout as indented JSON. Used by the
// --json output modes so scripts get a stable machine surface.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
