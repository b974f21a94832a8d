package task

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-process task store. Transactions hold the store lock for
// their whole duration and stage writes until fn returns nil.
type MemStore struct {
	mu     sync.Mutex
	tasks  map[int64]*Task
	nextID int64
	now    func() time.Time
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		tasks:  make(map[int64]*Task),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnsureTable is a no-op for the in-memory store.
func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

// Get retrieves a single task by ID.
func (s *MemStore) Get(_ context.Context, id int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound(id)
	}
	return clone(t), nil
}

// List returns tasks matching f, newest first.
func (s *MemStore) List(_ context.Context, f Filter) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Open && t.Status == StatusDone {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(all) {
			return []Task{}, nil
		}
		all = all[f.Offset:]
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	out := make([]Task, 0, len(all))
	for _, t := range all {
		out = append(out, *clone(t))
	}
	return out, nil
}

// Delete removes a task and clears parent references to it.
func (s *MemStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return notFound(id)
	}
	delete(s.tasks, id)
	for _, t := range s.tasks {
		if t.ParentID != nil && *t.ParentID == id {
			t.ParentID = nil
		}
	}
	return nil
}

// Count returns total task count.
func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks), nil
}

// InTx runs fn against a staged view of the store.
func (s *MemStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s, staged: make(map[int64]*Task), nextID: s.nextID}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, t := range tx.staged {
		s.tasks[id] = t
	}
	s.nextID = tx.nextID
	return nil
}

type memTx struct {
	s      *MemStore
	staged map[int64]*Task
	nextID int64
}

func (tx *memTx) lookup(id int64) (*Task, bool) {
	if t, ok := tx.staged[id]; ok {
		return t, true
	}
	t, ok := tx.s.tasks[id]
	return t, ok
}

func (tx *memTx) Get(_ context.Context, id int64) (*Task, error) {
	t, ok := tx.lookup(id)
	if !ok {
		return nil, notFound(id)
	}
	return clone(t), nil
}

func (tx *memTx) Create(_ context.Context, t *Task) (*Task, error) {
	if err := prepare(t, tx.s.now()); err != nil {
		return nil, err
	}
	t.ID = tx.nextID
	tx.nextID++
	tx.staged[t.ID] = clone(t)
	return clone(t), nil
}

func (tx *memTx) Save(_ context.Context, t *Task) error {
	cur, ok := tx.lookup(t.ID)
	if !ok {
		return notFound(t.ID)
	}
	if err := checkSave(t); err != nil {
		return err
	}
	next := clone(t)
	next.History = append([]HistoryEntry{}, cur.History...)
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = tx.s.now()
	tx.staged[t.ID] = next
	t.UpdatedAt = next.UpdatedAt
	return nil
}

func (tx *memTx) AppendHistory(_ context.Context, id int64, entry HistoryEntry) error {
	cur, ok := tx.lookup(id)
	if !ok {
		return notFound(id)
	}
	next := clone(cur)
	next.History = append(next.History, entry)
	next.UpdatedAt = tx.s.now()
	tx.staged[id] = next
	return nil
}
