package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const pgTaskColumns = `id, title, notes, channel, due, recurrence, priority, project, context, people, links, status, estimated_minutes, parent_id, history, created_at, updated_at`

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                BIGSERIAL PRIMARY KEY,
			title             TEXT NOT NULL,
			notes             TEXT NOT NULL DEFAULT '',
			channel           TEXT NOT NULL DEFAULT '',
			due               TIMESTAMPTZ,
			recurrence        TEXT NOT NULL DEFAULT '',
			priority          TEXT NOT NULL DEFAULT '',
			project           TEXT NOT NULL DEFAULT '',
			context           TEXT[] NOT NULL DEFAULT '{}',
			people            TEXT[] NOT NULL DEFAULT '{}',
			links             TEXT[] NOT NULL DEFAULT '{}',
			status            TEXT NOT NULL DEFAULT 'inbox',
			estimated_minutes INTEGER,
			parent_id         BIGINT REFERENCES tasks(id),
			history           JSONB NOT NULL DEFAULT '[]',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at DESC, id DESC)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id) WHERE parent_id IS NOT NULL`)
	return err
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (*Task, error) {
	t, err := pgScanOne(s.pool.QueryRow(ctx, `SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// List returns tasks filtered by f, newest first.
func (s *PgStore) List(ctx context.Context, f Filter) ([]Task, error) {
	query := `SELECT ` + pgTaskColumns + ` FROM tasks WHERE TRUE`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Open {
		query += " AND status <> 'done'"
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := pgScanOne(rows)
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
func (s *PgStore) Delete(ctx context.Context, id int64) error {
	return s.InTx(ctx, func(tx Tx) error {
		ptx := tx.(*pgTx)
		if _, err := ptx.tx.Exec(ctx, `UPDATE tasks SET parent_id = NULL WHERE parent_id = $1`, id); err != nil {
			return fmt.Errorf("detach children of %d: %w", id, err)
		}
		tag, err := ptx.tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete task %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return notFound(id)
		}
		return nil
	})
}

// Count returns total task count.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// InTx runs fn inside a database transaction.
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (p *pgTx) Get(ctx context.Context, id int64) (*Task, error) {
	t, err := pgScanOne(p.tx.QueryRow(ctx, `SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (p *pgTx) Create(ctx context.Context, t *Task) (*Task, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if err := prepare(t, now); err != nil {
		return nil, err
	}
	err := p.tx.QueryRow(ctx, `
		INSERT INTO tasks (title, notes, channel, due, recurrence, priority, project, context, people, links, status, estimated_minutes, parent_id, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, '[]'::jsonb, $14, $15)
		RETURNING id`,
		t.Title, t.Notes, t.Channel, t.Due, t.Recurrence, t.Priority, t.Project, t.Context, t.People, t.Links,
		string(t.Status), t.EstimatedMinutes, t.ParentID, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (p *pgTx) Save(ctx context.Context, t *Task) error {
	if err := checkSave(t); err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	tag, err := p.tx.Exec(ctx, `
		UPDATE tasks SET title = $1, notes = $2, channel = $3, due = $4, recurrence = $5, priority = $6,
			project = $7, context = $8, people = $9, links = $10, status = $11, estimated_minutes = $12,
			parent_id = $13, updated_at = $14
		WHERE id = $15`,
		t.Title, t.Notes, t.Channel, t.Due, t.Recurrence, t.Priority, t.Project,
		nonNil(t.Context), nonNil(t.People), nonNil(t.Links), string(t.Status), t.EstimatedMinutes,
		t.ParentID, now, t.ID)
	if err != nil {
		return fmt.Errorf("save task %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(t.ID)
	}
	t.UpdatedAt = now
	return nil
}

func (p *pgTx) AppendHistory(ctx context.Context, id int64, entry HistoryEntry) error {
	entryJSON, err := json.Marshal([]HistoryEntry{entry})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	tag, err := p.tx.Exec(ctx, `
		UPDATE tasks SET history = history || $1::jsonb, updated_at = $2 WHERE id = $3`,
		string(entryJSON), time.Now().UTC().Truncate(time.Microsecond), id)
	if err != nil {
		return fmt.Errorf("append history to task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func pgScanOne(row pgx.Row) (*Task, error) {
	var t Task
	var status string
	var historyJSON []byte
	err := row.Scan(&t.ID, &t.Title, &t.Notes, &t.Channel, &t.Due, &t.Recurrence, &t.Priority, &t.Project,
		&t.Context, &t.People, &t.Links, &status, &t.EstimatedMinutes, &t.ParentID, &historyJSON,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if err := json.Unmarshal(historyJSON, &t.History); err != nil {
		return nil, fmt.Errorf("unmarshal history of task %d: %w", t.ID, err)
	}
	t.Context = nonNil(t.Context)
	t.People = nonNil(t.People)
	t.Links = nonNil(t.Links)
	if t.History == nil {
		t.History = []HistoryEntry{}
	}
	return &t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
