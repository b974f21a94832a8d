package eventgraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore is an EventStore on a database/sql SQLite handle. The chain is
// ordered by insertion sequence.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const sqliteEventColumns = `id, type, timestamp, source, content, causes, hash, prev_hash`

// EnsureTable creates the events table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			id        TEXT NOT NULL UNIQUE,
			type      TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			source    TEXT NOT NULL,
			content   TEXT NOT NULL DEFAULT '{}',
			causes    TEXT NOT NULL DEFAULT '[]',
			hash      TEXT NOT NULL,
			prev_hash TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`)
	return err
}

// Append creates and stores a new event, computing the hash chain.
func (s *SQLiteStore) Append(ctx context.Context, eventType, source string, content map[string]any, causes []string) (*Event, error) {
	content, causes = normalizeContent(content, causes)
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	causesJSON, err := json.Marshal(causes)
	if err != nil {
		return nil, fmt.Errorf("marshal causes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var prevHash string
	err = tx.QueryRowContext(ctx, `SELECT hash FROM events ORDER BY seq DESC LIMIT 1`).Scan(&prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	e := &Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Content:   content,
		Causes:    causes,
		PrevHash:  prevHash,
	}
	e.Hash = computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, contentJSON)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, type, timestamp, source, content, causes, hash, prev_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Timestamp.UnixNano(), e.Source, string(contentJSON), string(causesJSON), e.Hash, e.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit event: %w", err)
	}
	return e, nil
}

// Get retrieves a single event by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Event, error) {
	events, err := s.query(ctx, `SELECT `+sqliteEventColumns+` FROM events WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("get event %s: %w", id, ErrNotFound)
	}
	return &events[0], nil
}

// Recent returns the most recent events, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.query(ctx, `SELECT `+sqliteEventColumns+` FROM events ORDER BY seq DESC LIMIT ?`, sqliteLimit(limit))
}

// ByType returns events of the given type, newest first.
func (s *SQLiteStore) ByType(ctx context.Context, eventType string, limit int) ([]Event, error) {
	return s.query(ctx, `SELECT `+sqliteEventColumns+` FROM events WHERE type = ? ORDER BY seq DESC LIMIT ?`, eventType, sqliteLimit(limit))
}

// Count returns the total number of events.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// VerifyChain walks the chain in insertion order and verifies hash integrity.
func (s *SQLiteStore) VerifyChain(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteEventColumns+` FROM events ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	defer rows.Close()

	prevHash := ""
	i := 0
	for rows.Next() {
		e, raw, err := scanSQLiteEvent(rows)
		if err != nil {
			return fmt.Errorf("verify chain scan row %d: %w", i, err)
		}
		remarshaled, _ := json.Marshal(e.Content)
		if err := checkLink(i, e, prevHash, remarshaled, []byte(raw)); err != nil {
			return err
		}
		prevHash = e.Hash
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("verify chain rows: %w", err)
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, _, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}

// scanSQLiteEvent also returns the content column as stored.
func scanSQLiteEvent(rows *sql.Rows) (*Event, string, error) {
	var e Event
	var ts int64
	var contentJSON, causesJSON string
	if err := rows.Scan(&e.ID, &e.Type, &ts, &e.Source, &contentJSON, &causesJSON, &e.Hash, &e.PrevHash); err != nil {
		return nil, "", err
	}
	e.Timestamp = time.Unix(0, ts).UTC()
	if err := json.Unmarshal([]byte(contentJSON), &e.Content); err != nil {
		return nil, "", fmt.Errorf("unmarshal content: %w", err)
	}
	if err := json.Unmarshal([]byte(causesJSON), &e.Causes); err != nil {
		return nil, "", fmt.Errorf("unmarshal causes: %w", err)
	}
	return &e, contentJSON, nil
}

func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
