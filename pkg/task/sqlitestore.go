package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore is a file-backed task store. The handle is expected to come
// from db.OpenSQLite so write transactions take the database lock up front.
// Timestamps are stored as UTC unix nanoseconds, lists and history as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore on an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const sqliteTaskColumns = `id, title, notes, channel, due, recurrence, priority, project, context, people, links, status, estimated_minutes, parent_id, history, created_at, updated_at`

// EnsureTable creates the tasks table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			title             TEXT NOT NULL,
			notes             TEXT NOT NULL DEFAULT '',
			channel           TEXT NOT NULL DEFAULT '',
			due               INTEGER,
			recurrence        TEXT NOT NULL DEFAULT '',
			priority          TEXT NOT NULL DEFAULT '',
			project           TEXT NOT NULL DEFAULT '',
			context           TEXT NOT NULL DEFAULT '[]',
			people            TEXT NOT NULL DEFAULT '[]',
			links             TEXT NOT NULL DEFAULT '[]',
			status            TEXT NOT NULL DEFAULT 'inbox',
			estimated_minutes INTEGER,
			parent_id         INTEGER REFERENCES tasks(id),
			history           TEXT NOT NULL DEFAULT '[]',
			created_at        INTEGER NOT NULL,
			updated_at        INTEGER NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at DESC, id DESC)`)
	return err
}

// Get retrieves a single task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Task, error) {
	return sqliteGet(ctx, s.db, id)
}

// List returns tasks filtered by f, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Task, error) {
	query := `SELECT ` + sqliteTaskColumns + ` FROM tasks WHERE 1 = 1`
	var args []any
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.Open {
		query += " AND status <> 'done'"
	}
	query += " ORDER BY created_at DESC, id DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := sqliteScan(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

// Delete removes a task and clears parent references to it.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	return s.InTx(ctx, func(tx Tx) error {
		stx := tx.(*sqliteTx)
		if _, err := stx.tx.ExecContext(ctx, `UPDATE tasks SET parent_id = NULL WHERE parent_id = ?`, id); err != nil {
			return fmt.Errorf("detach children of %d: %w", id, err)
		}
		res, err := stx.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete task %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(id)
		}
		return nil
	})
}

// Count returns total task count.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// InTx runs fn inside a database transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (s *sqliteTx) Get(ctx context.Context, id int64) (*Task, error) {
	return sqliteGet(ctx, s.tx, id)
}

func (s *sqliteTx) Create(ctx context.Context, t *Task) (*Task, error) {
	if err := prepare(t, time.Now().UTC()); err != nil {
		return nil, err
	}
	lists, err := marshalLists(t)
	if err != nil {
		return nil, err
	}
	res, err := s.tx.ExecContext(ctx, `
		INSERT INTO tasks (title, notes, channel, due, recurrence, priority, project, context, people, links, status, estimated_minutes, parent_id, history, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?)`,
		t.Title, t.Notes, t.Channel, unixNanoPtr(t.Due), t.Recurrence, t.Priority, t.Project,
		lists[0], lists[1], lists[2], string(t.Status), t.EstimatedMinutes, t.ParentID,
		t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create task: last insert id: %w", err)
	}
	return t, nil
}

func (s *sqliteTx) Save(ctx context.Context, t *Task) error {
	if err := checkSave(t); err != nil {
		return err
	}
	lists, err := marshalLists(t)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, notes = ?, channel = ?, due = ?, recurrence = ?, priority = ?,
			project = ?, context = ?, people = ?, links = ?, status = ?, estimated_minutes = ?,
			parent_id = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Notes, t.Channel, unixNanoPtr(t.Due), t.Recurrence, t.Priority, t.Project,
		lists[0], lists[1], lists[2], string(t.Status), t.EstimatedMinutes, t.ParentID,
		now.UnixNano(), t.ID)
	if err != nil {
		return fmt.Errorf("save task %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(t.ID)
	}
	t.UpdatedAt = now
	return nil
}

func (s *sqliteTx) AppendHistory(ctx context.Context, id int64, entry HistoryEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	res, err := s.tx.ExecContext(ctx, `
		UPDATE tasks SET history = json_insert(history, '$[#]', json(?)), updated_at = ? WHERE id = ?`,
		string(entryJSON), time.Now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("append history to task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

type sqlQueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sqliteGet(ctx context.Context, q sqlQueryRower, id int64) (*Task, error) {
	t, err := sqliteScan(q.QueryRowContext(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func sqliteScan(row interface{ Scan(dest ...any) error }) (*Task, error) {
	var t Task
	var status, contextJSON, peopleJSON, linksJSON, historyJSON string
	var due, estimated, parent sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(&t.ID, &t.Title, &t.Notes, &t.Channel, &due, &t.Recurrence, &t.Priority, &t.Project,
		&contextJSON, &peopleJSON, &linksJSON, &status, &estimated, &parent, &historyJSON,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if due.Valid {
		d := time.Unix(0, due.Int64).UTC()
		t.Due = &d
	}
	if estimated.Valid {
		m := int(estimated.Int64)
		t.EstimatedMinutes = &m
	}
	if parent.Valid {
		p := parent.Int64
		t.ParentID = &p
	}
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	t.UpdatedAt = time.Unix(0, updatedAt).UTC()

	for _, f := range []struct {
		raw string
		dst any
	}{
		{contextJSON, &t.Context},
		{peopleJSON, &t.People},
		{linksJSON, &t.Links},
		{historyJSON, &t.History},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("unmarshal task %d: %w", t.ID, err)
		}
	}
	t.Context = nonNil(t.Context)
	t.People = nonNil(t.People)
	t.Links = nonNil(t.Links)
	if t.History == nil {
		t.History = []HistoryEntry{}
	}
	return &t, nil
}

func marshalLists(t *Task) ([3]string, error) {
	var out [3]string
	for i, l := range [][]string{t.Context, t.People, t.Links} {
		b, err := json.Marshal(nonNil(l))
		if err != nil {
			return out, fmt.Errorf("marshal task lists: %w", err)
		}
		out[i] = string(b)
	}
	return out, nil
}

func unixNanoPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixNano()
}
