// Package pgstore implements the store contract on PostgreSQL, for projects
// shared between machines or teams.
//
// Optimistic concurrency maps onto conditional statements: updates and
// deletes carry a WHERE version = $n clause and report a conflict when no
// row matches, inserts report a conflict on a duplicate key. All writes of
// one transaction run inside a single database transaction.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wadevries/sps/internal/store"
	"github.com/wadevries/sps/internal/task"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

const taskColumns = `id, title, description, parent_id, child_ids, dependency_ids,
	context_id, status, complete, assignee, assignee_set, estimated_minutes,
	created_at, updated_at, version`

const logColumns = `id, task_id, seq, author, ts, kind, body, field,
	old_value, new_value, checksum, prev_checksum`

// Store is a PostgreSQL-backed store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects to the database named by dsn and creates the schema if it
// does not exist yet.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id                TEXT PRIMARY KEY,
			title             TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			parent_id         TEXT NOT NULL DEFAULT '',
			child_ids         TEXT[] NOT NULL DEFAULT '{}',
			dependency_ids    TEXT[] NOT NULL DEFAULT '{}',
			context_id        TEXT NOT NULL,
			status            TEXT NOT NULL,
			complete          BOOLEAN NOT NULL DEFAULT FALSE,
			assignee          TEXT NOT NULL DEFAULT '',
			assignee_set      TEXT[] NOT NULL DEFAULT '{}',
			estimated_minutes BIGINT NOT NULL DEFAULT 0,
			created_at        TIMESTAMPTZ NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL,
			version           BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_context ON tasks(context_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id) WHERE parent_id != ''`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_deps ON tasks USING GIN(dependency_ids)`,
		`CREATE TABLE IF NOT EXISTS contexts (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			parent_id  TEXT NOT NULL DEFAULT '',
			child_ids  TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			version    BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_log (
			id            TEXT NOT NULL,
			task_id       TEXT NOT NULL,
			seq           BIGINT NOT NULL,
			author        TEXT NOT NULL,
			ts            TIMESTAMPTZ NOT NULL,
			kind          TEXT NOT NULL,
			body          TEXT NOT NULL DEFAULT '',
			field         TEXT NOT NULL DEFAULT '',
			old_value     TEXT NOT NULL DEFAULT '',
			new_value     TEXT NOT NULL DEFAULT '',
			checksum      BIGINT NOT NULL,
			prev_checksum BIGINT NOT NULL,
			PRIMARY KEY (task_id, seq)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// ---- reads ---------------------------------------------------------------

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	tk, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", id, err)
	}
	return tk, nil
}

func (s *Store) GetTasks(ctx context.Context, ids []string) (map[string]*task.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("reading tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*task.Task, len(tasks))
	for _, tk := range tasks {
		out[tk.ID] = tk
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
		}
	}
	return out, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]*task.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at, id`)
}

func (s *Store) ListByContext(ctx context.Context, contextID string) ([]*task.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE context_id = $1 ORDER BY created_at, id`,
		contextID)
}

func (s *Store) ListDependents(ctx context.Context, id string) ([]*task.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE dependency_ids @> ARRAY[$1]::text[] ORDER BY created_at, id`,
		id)
}

func (s *Store) ListRoots(ctx context.Context) ([]*task.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE parent_id = '' ORDER BY created_at, id`)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

func (s *Store) GetContext(ctx context.Context, id string) (*task.Context, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, parent_id, child_ids, created_at, updated_at, version
		 FROM contexts WHERE id = $1`, id)
	c, err := scanContext(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("context %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading context %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) ListContexts(ctx context.Context) ([]*task.Context, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, parent_id, child_ids, created_at, updated_at, version
		 FROM contexts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing contexts: %w", err)
	}
	defer rows.Close()

	var out []*task.Context
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing contexts: %w", err)
	}
	return out, nil
}

func (s *Store) ListLog(ctx context.Context, taskID string) ([]*task.LogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+logColumns+` FROM task_log WHERE task_id = $1 ORDER BY seq`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing log for %s: %w", taskID, err)
	}
	defer rows.Close()

	out := []*task.LogEntry{}
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing log for %s: %w", taskID, err)
	}
	return out, nil
}

func (s *Store) LastLog(ctx context.Context, taskID string) (*task.LogEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+logColumns+` FROM task_log WHERE task_id = $1 ORDER BY seq DESC LIMIT 1`, taskID)
	e, err := scanLogEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last log for %s: %w", taskID, err)
	}
	return e, nil
}

func (s *Store) LogTaskIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT task_id FROM task_log ORDER BY task_id`)
	if err != nil {
		return nil, fmt.Errorf("listing logged task ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning logged task id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing logged task ids: %w", err)
	}
	return out, nil
}

// ---- commit --------------------------------------------------------------

func (s *Store) Commit(ctx context.Context, txn *store.Txn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, o := range txn.Ops() {
		switch o.Kind {
		case store.OpPutTask:
			if err := putTask(ctx, tx, o.Task, o.Expected); err != nil {
				return err
			}
		case store.OpDeleteTask:
			tag, err := tx.Exec(ctx,
				`DELETE FROM tasks WHERE id = $1 AND version = $2`, o.ID, int64(o.Expected))
			if err != nil {
				return fmt.Errorf("deleting task %s: %w", o.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("task %s: %w", o.ID, store.ErrVersionConflict)
			}
		case store.OpPutContext:
			if err := putContext(ctx, tx, o.Context, o.Expected); err != nil {
				return err
			}
		case store.OpAppendLog:
			if err := appendLog(ctx, tx, o.Entry); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func putTask(ctx context.Context, tx pgx.Tx, tk *task.Task, expected uint64) error {
	if expected == 0 {
		_, err := tx.Exec(ctx,
			`INSERT INTO tasks (`+taskColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			tk.ID, tk.Title, tk.Description, tk.ParentID,
			emptyIfNil(tk.ChildIDs), emptyIfNil(tk.DependencyIDs),
			tk.ContextID, tk.Status, tk.Complete, tk.Assignee,
			emptyIfNil(tk.AssigneeSet), tk.EstimatedMinutes,
			tk.CreatedAt, tk.UpdatedAt, int64(1))
		if isUniqueViolation(err) {
			return fmt.Errorf("task %s: %w", tk.ID, store.ErrVersionConflict)
		}
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", tk.ID, err)
		}
		tk.Version = 1
		return nil
	}

	tag, err := tx.Exec(ctx,
		`UPDATE tasks SET title=$2, description=$3, parent_id=$4, child_ids=$5,
			dependency_ids=$6, context_id=$7, status=$8, complete=$9, assignee=$10,
			assignee_set=$11, estimated_minutes=$12, created_at=$13, updated_at=$14,
			version=$15
		 WHERE id = $1 AND version = $16`,
		tk.ID, tk.Title, tk.Description, tk.ParentID,
		emptyIfNil(tk.ChildIDs), emptyIfNil(tk.DependencyIDs),
		tk.ContextID, tk.Status, tk.Complete, tk.Assignee,
		emptyIfNil(tk.AssigneeSet), tk.EstimatedMinutes,
		tk.CreatedAt, tk.UpdatedAt, int64(expected+1), int64(expected))
	if err != nil {
		return fmt.Errorf("updating task %s: %w", tk.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", tk.ID, store.ErrVersionConflict)
	}
	tk.Version = expected + 1
	return nil
}

func putContext(ctx context.Context, tx pgx.Tx, c *task.Context, expected uint64) error {
	if expected == 0 {
		_, err := tx.Exec(ctx,
			`INSERT INTO contexts (id, name, parent_id, child_ids, created_at, updated_at, version)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			c.ID, c.Name, c.ParentID, emptyIfNil(c.ChildIDs), c.CreatedAt, c.UpdatedAt, int64(1))
		if isUniqueViolation(err) {
			return fmt.Errorf("context %s: %w", c.ID, store.ErrVersionConflict)
		}
		if err != nil {
			return fmt.Errorf("inserting context %s: %w", c.ID, err)
		}
		c.Version = 1
		return nil
	}

	tag, err := tx.Exec(ctx,
		`UPDATE contexts SET name=$2, parent_id=$3, child_ids=$4, created_at=$5,
			updated_at=$6, version=$7
		 WHERE id = $1 AND version = $8`,
		c.ID, c.Name, c.ParentID, emptyIfNil(c.ChildIDs),
		c.CreatedAt, c.UpdatedAt, int64(expected+1), int64(expected))
	if err != nil {
		return fmt.Errorf("updating context %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("context %s: %w", c.ID, store.ErrVersionConflict)
	}
	c.Version = expected + 1
	return nil
}

func appendLog(ctx context.Context, tx pgx.Tx, e *task.LogEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO task_log (`+logColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.TaskID, int64(e.Seq), e.Author, e.Timestamp, string(e.Kind),
		e.Text, e.Field, e.OldValue, e.NewValue,
		checksumToDB(e.Checksum), checksumToDB(e.PrevChecksum))
	// A duplicate (task_id, seq) means another writer appended concurrently.
	if isUniqueViolation(err) {
		return fmt.Errorf("log %s/%d: %w", e.TaskID, e.Seq, store.ErrVersionConflict)
	}
	if err != nil {
		return fmt.Errorf("appending log %s/%d: %w", e.TaskID, e.Seq, err)
	}
	return nil
}

// ---- scanning ------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*task.Task, error) {
	var tk task.Task
	var version, minutes int64
	err := row.Scan(&tk.ID, &tk.Title, &tk.Description, &tk.ParentID,
		&tk.ChildIDs, &tk.DependencyIDs, &tk.ContextID, &tk.Status,
		&tk.Complete, &tk.Assignee, &tk.AssigneeSet, &minutes,
		&tk.CreatedAt, &tk.UpdatedAt, &version)
	if err != nil {
		return nil, err
	}
	tk.EstimatedMinutes = minutes
	tk.Version = uint64(version)
	return &tk, nil
}

func scanTaskRows(rows pgx.Rows) ([]*task.Task, error) {
	var out []*task.Task
	for rows.Next() {
		tk, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		out = append(out, tk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return out, nil
}

func scanContext(row scanner) (*task.Context, error) {
	var c task.Context
	var version int64
	err := row.Scan(&c.ID, &c.Name, &c.ParentID, &c.ChildIDs,
		&c.CreatedAt, &c.UpdatedAt, &version)
	if err != nil {
		return nil, err
	}
	c.Version = uint64(version)
	return &c, nil
}

func scanLogEntry(row scanner) (*task.LogEntry, error) {
	var e task.LogEntry
	var seq, sum, prev int64
	var kind string
	err := row.Scan(&e.ID, &e.TaskID, &seq, &e.Author, &e.Timestamp, &kind,
		&e.Text, &e.Field, &e.OldValue, &e.NewValue, &sum, &prev)
	if err != nil {
		return nil, err
	}
	e.Seq = uint64(seq)
	e.Kind = task.EntryKind(kind)
	e.Checksum = checksumFromDB(sum)
	e.PrevChecksum = checksumFromDB(prev)
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Checksums are unsigned 64-bit values; BIGINT is signed. Bit-cast both
// ways so the full range round-trips.
func checksumToDB(v uint64) int64 {
	return int64(v)
}

func checksumFromDB(v int64) uint64 {
	return uint64(v)
}
