package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusInbox      Status = "inbox"
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusDelegated  Status = "delegated"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInbox, StatusPlanned, StatusInProgress, StatusDone, StatusDelegated:
		return true
	}
	return false
}

// MaxTitleLen is the longest title, in characters, a store accepts.
const MaxTitleLen = 280

var (
	// ErrNotFound is returned when a task id does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrInvalid is returned for field values the store refuses to persist.
	ErrInvalid = errors.New("invalid task")
)

// Task represents a unit of work captured by the assistant.
type Task struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	Notes            string         `json:"notes,omitempty"`
	Channel          string         `json:"channel,omitempty"`
	Due              *time.Time     `json:"due,omitempty"`
	Recurrence       string         `json:"recurrence,omitempty"`
	Priority         string         `json:"priority,omitempty"` // P0..P3, P0 = highest
	Project          string         `json:"project,omitempty"`
	Context          []string       `json:"context"`
	People           []string       `json:"people"`
	Links            []string       `json:"links"`
	Status           Status         `json:"status"`
	EstimatedMinutes *int           `json:"estimated_minutes,omitempty"`
	ParentID         *int64         `json:"parent_id,omitempty"` // lineage: subtask or merged-into
	History          []HistoryEntry `json:"history"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Event kinds recorded in a task's history.
const (
	EventSuggestionApply    = "suggestion_apply"
	EventSuggestionFeedback = "suggestion_feedback"
)

// HistoryEntry is one append-only audit record on a task.
type HistoryEntry struct {
	Event          string    `json:"event"`
	ID             string    `json:"id"`   // suggestion id
	Type           string    `json:"type"` // combine, split
	Accepted       bool      `json:"accepted"`
	Timestamp      time.Time `json:"timestamp"`
	Merged         []int64   `json:"merged,omitempty"`
	Children       []int64   `json:"children,omitempty"`
	ChosenSubtasks []string  `json:"chosen_subtasks,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

// Filter narrows a List call.
type Filter struct {
	Status Status // exact match when set
	Open   bool   // exclude done tasks
	Limit  int
	Offset int
}

// Store is the contract for task persistence. List orders by creation,
// newest first.
type Store interface {
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, f Filter) ([]Task, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	// InTx runs fn in a single transaction. Nothing fn wrote survives if it
	// returns an error. fn must only use tx, never the Store itself.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	EnsureTable(ctx context.Context) error
}

// Tx is the view of the store available inside InTx.
type Tx interface {
	// Get returns the task, locking it for the rest of the transaction where
	// the backend supports row locks.
	Get(ctx context.Context, id int64) (*Task, error)
	// Create inserts t, assigning ID and timestamps. History is ignored.
	Create(ctx context.Context, t *Task) (*Task, error)
	// Save writes every mutable field of t except History.
	Save(ctx context.Context, t *Task) error
	// AppendHistory appends entry to the task's history log.
	AppendHistory(ctx context.Context, id int64, entry HistoryEntry) error
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Title            *string    `json:"title"`
	Notes            *string    `json:"notes"`
	Channel          *string    `json:"channel"`
	Due              *time.Time `json:"due"`
	Recurrence       *string    `json:"recurrence"`
	Priority         *string    `json:"priority"`
	Project          *string    `json:"project"`
	Context          *[]string  `json:"context"`
	People           *[]string  `json:"people"`
	Links            *[]string  `json:"links"`
	Status           *Status    `json:"status"`
	EstimatedMinutes *int       `json:"estimated_minutes"`
	ParentID         *int64     `json:"parent_id"`
}

// ApplyTo copies the set fields onto t.
func (p Patch) ApplyTo(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Channel != nil {
		t.Channel = *p.Channel
	}
	if p.Due != nil {
		due := p.Due.UTC()
		t.Due = &due
	}
	if p.Recurrence != nil {
		t.Recurrence = *p.Recurrence
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Project != nil {
		t.Project = *p.Project
	}
	if p.Context != nil {
		t.Context = *p.Context
	}
	if p.People != nil {
		t.People = *p.People
	}
	if p.Links != nil {
		t.Links = *p.Links
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.EstimatedMinutes != nil {
		t.EstimatedMinutes = p.EstimatedMinutes
	}
	if p.ParentID != nil {
		t.ParentID = p.ParentID
	}
}

// Create inserts t in its own transaction.
func Create(ctx context.Context, s Store, t *Task) (*Task, error) {
	var created *Task
	err := s.InTx(ctx, func(tx Tx) error {
		var err error
		created, err = tx.Create(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update applies p to the task with the given id in its own transaction.
func Update(ctx context.Context, s Store, id int64, p Patch) (*Task, error) {
	var updated *Task
	err := s.InTx(ctx, func(tx Tx) error {
		t, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		p.ApplyTo(t)
		if err := tx.Save(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// prepare fills defaults and validates t before an insert.
func prepare(t *Task, now time.Time) error {
	t.Title = strings.TrimSpace(t.Title)
	if err := checkTitle(t.Title); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = StatusInbox
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, t.Status)
	}
	if t.Context == nil {
		t.Context = []string{}
	}
	if t.People == nil {
		t.People = []string{}
	}
	if t.Links == nil {
		t.Links = []string{}
	}
	if t.Due != nil {
		due := t.Due.UTC()
		t.Due = &due
	}
	t.History = []HistoryEntry{}
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// checkSave validates a task about to be written by Tx.Save.
func checkSave(t *Task) error {
	if err := checkTitle(strings.TrimSpace(t.Title)); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, t.Status)
	}
	return nil
}

func checkTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleLen {
		return fmt.Errorf("%w: title is %d characters, limit %d", ErrInvalid, n, MaxTitleLen)
	}
	return nil
}

func notFound(id int64) error {
	return fmt.Errorf("%w: %d", ErrNotFound, id)
}

func clone(t *Task) *Task {
	cp := *t
	cp.Context = append([]string{}, t.Context...)
	cp.People = append([]string{}, t.People...)
	cp.Links = append([]string{}, t.Links...)
	cp.History = append([]HistoryEntry{}, t.History...)
	if t.Due != nil {
		d := *t.Due
		cp.Due = &d
	}
	if t.ParentID != nil {
		p := *t.ParentID
		cp.ParentID = &p
	}
	if t.EstimatedMinutes != nil {
		m := *t.EstimatedMinutes
		cp.EstimatedMinutes = &m
	}
	return &cp
}
