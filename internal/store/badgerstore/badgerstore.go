// Package badgerstore implements the store contract on an embedded BadgerDB,
// the default backend for persistent single-machine projects.
//
// Records are stored as JSON under typed key prefixes. Log entries embed
// their sequence number in the key, zero padded, so a prefix scan yields
// them in order. Version preconditions are checked inside a single Badger
// read-write transaction, which also catches write skew between concurrent
// committers via Badger's own conflict detection.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/wadevries/sps/internal/store"
	"github.com/wadevries/sps/internal/task"
)

const (
	taskPrefix    = "task/"
	contextPrefix = "ctx/"
	logPrefix     = "log/"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the database directory, created if absent. Ignored when
	// InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites makes every commit fsync before returning.
	SyncWrites bool

	// Logger receives Badger's internal messages. Nil silences them.
	Logger *log.Logger
}

// DB is a Badger-backed Store.
type DB struct {
	db *badger.DB
}

var _ store.Store = (*DB)(nil)

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("opening badger store: path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return &DB{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory database.
func OpenInMemory() (*DB, error) {
	return Open(Config{InMemory: true})
}

func (d *DB) Close() error {
	return d.db.Close()
}

// badgerLogger adapts a charm logger to Badger's Logger interface.
type badgerLogger struct {
	logger *log.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

// ---- keys ----------------------------------------------------------------

func taskKey(id string) []byte {
	return []byte(taskPrefix + id)
}

func contextKey(id string) []byte {
	return []byte(contextPrefix + id)
}

// logKey pads the sequence number so lexicographic key order matches
// numeric sequence order.
func logKey(taskID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", logPrefix, taskID, seq))
}

func logKeyPrefix(taskID string) []byte {
	return []byte(logPrefix + taskID + "/")
}

// ---- reads ---------------------------------------------------------------

func (d *DB) GetTask(ctx context.Context, id string) (*task.Task, error) {
	var tk *task.Task
	err := d.view(ctx, func(txn *badger.Txn) error {
		var err error
		tk, err = getTask(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tk, nil
}

func (d *DB) GetTasks(ctx context.Context, ids []string) (map[string]*task.Task, error) {
	out := make(map[string]*task.Task, len(ids))
	err := d.view(ctx, func(txn *badger.Txn) error {
		for _, id := range ids {
			tk, err := getTask(txn, id)
			if err != nil {
				return err
			}
			out[id] = tk
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) ListTasks(ctx context.Context) ([]*task.Task, error) {
	return d.scanTasks(ctx, func(*task.Task) bool { return true })
}

func (d *DB) ListByContext(ctx context.Context, contextID string) ([]*task.Task, error) {
	return d.scanTasks(ctx, func(tk *task.Task) bool { return tk.ContextID == contextID })
}

func (d *DB) ListDependents(ctx context.Context, id string) ([]*task.Task, error) {
	return d.scanTasks(ctx, func(tk *task.Task) bool { return tk.DependsOn(id) })
}

func (d *DB) ListRoots(ctx context.Context) ([]*task.Task, error) {
	return d.scanTasks(ctx, func(tk *task.Task) bool { return tk.ParentID == "" })
}

func (d *DB) scanTasks(ctx context.Context, keep func(*task.Task) bool) ([]*task.Task, error) {
	var out []*task.Task
	err := d.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(taskPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			tk := new(task.Task)
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, tk)
			}); err != nil {
				return fmt.Errorf("decoding task %s: %w", it.Item().Key(), err)
			}
			if keep(tk) {
				out = append(out, tk)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	store.SortTasks(out)
	return out, nil
}

func (d *DB) GetContext(ctx context.Context, id string) (*task.Context, error) {
	var c *task.Context
	err := d.view(ctx, func(txn *badger.Txn) error {
		var err error
		c, err = getContext(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (d *DB) ListContexts(ctx context.Context) ([]*task.Context, error) {
	var out []*task.Context
	err := d.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(contextPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			c := new(task.Context)
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, c)
			}); err != nil {
				return fmt.Errorf("decoding context %s: %w", it.Item().Key(), err)
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	store.SortContexts(out)
	return out, nil
}

func (d *DB) ListLog(ctx context.Context, taskID string) ([]*task.LogEntry, error) {
	out := []*task.LogEntry{}
	err := d.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := logKeyPrefix(taskID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			e := new(task.LogEntry)
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, e)
			}); err != nil {
				return fmt.Errorf("decoding log entry %s: %w", it.Item().Key(), err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) LastLog(ctx context.Context, taskID string) (*task.LogEntry, error) {
	var last *task.LogEntry
	err := d.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the prefix range, then the first valid item in reverse
		// is the highest sequence number.
		prefix := logKeyPrefix(taskID)
		seek := append(append([]byte{}, prefix...), 0xff)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		var e task.LogEntry
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		}); err != nil {
			return fmt.Errorf("decoding log entry %s: %w", it.Item().Key(), err)
		}
		last = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}

func (d *DB) LogTaskIDs(ctx context.Context) ([]string, error) {
	var out []string
	err := d.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(logPrefix)
		last := ""
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			id, _, ok := strings.Cut(key[len(logPrefix):], "/")
			if !ok {
				return fmt.Errorf("malformed log key %s", key)
			}
			// Keys arrive sorted, so runs of one task id are contiguous.
			if id != last {
				out = append(out, id)
				last = id
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---- commit --------------------------------------------------------------

func (d *DB) Commit(ctx context.Context, txn *store.Txn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	btxn := d.db.NewTransaction(true)
	defer btxn.Discard()

	// Check every version precondition before staging any write.
	for _, o := range txn.Ops() {
		switch o.Kind {
		case store.OpPutTask, store.OpDeleteTask:
			if err := checkTaskVersion(btxn, o.ID, o.Expected); err != nil {
				return err
			}
		case store.OpPutContext:
			if err := checkContextVersion(btxn, o.ID, o.Expected); err != nil {
				return err
			}
		case store.OpAppendLog:
		}
	}

	for _, o := range txn.Ops() {
		switch o.Kind {
		case store.OpPutTask:
			o.Task.Version = o.Expected + 1
			if err := setJSON(btxn, taskKey(o.ID), o.Task); err != nil {
				return err
			}
		case store.OpDeleteTask:
			if err := btxn.Delete(taskKey(o.ID)); err != nil {
				return fmt.Errorf("deleting task %s: %w", o.ID, err)
			}
		case store.OpPutContext:
			o.Context.Version = o.Expected + 1
			if err := setJSON(btxn, contextKey(o.ID), o.Context); err != nil {
				return err
			}
		case store.OpAppendLog:
			if err := setJSON(btxn, logKey(o.Entry.TaskID, o.Entry.Seq), o.Entry); err != nil {
				return err
			}
		}
	}

	if err := btxn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("commit raced another writer: %w", store.ErrVersionConflict)
		}
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (d *DB) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

func getTask(txn *badger.Txn, id string) (*task.Task, error) {
	item, err := txn.Get(taskKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", id, err)
	}
	var tk task.Task
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tk)
	}); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", id, err)
	}
	return &tk, nil
}

func getContext(txn *badger.Txn, id string) (*task.Context, error) {
	item, err := txn.Get(contextKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("context %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading context %s: %w", id, err)
	}
	var c task.Context
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &c)
	}); err != nil {
		return nil, fmt.Errorf("decoding context %s: %w", id, err)
	}
	return &c, nil
}

func checkTaskVersion(txn *badger.Txn, id string, expected uint64) error {
	var current uint64
	tk, err := getTask(txn, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		current = 0
	case err != nil:
		return err
	default:
		current = tk.Version
	}
	if current != expected {
		return fmt.Errorf("task %s: expected version %d, found %d: %w",
			id, expected, current, store.ErrVersionConflict)
	}
	return nil
}

func checkContextVersion(txn *badger.Txn, id string, expected uint64) error {
	var current uint64
	c, err := getContext(txn, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		current = 0
	case err != nil:
		return err
	default:
		current = c.Version
	}
	if current != expected {
		return fmt.Errorf("context %s: expected version %d, found %d: %w",
			id, expected, current, store.ErrVersionConflict)
	}
	return nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := txn.Set(key, raw); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
