package eventgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process EventStore.
type MemStore struct {
	mu     sync.RWMutex
	events []Event
	byID   map[string]int
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[string]int)}
}

// EnsureTable is a no-op for the in-memory store.
func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

// Append stores a new event at the head of the chain.
func (s *MemStore) Append(_ context.Context, eventType, source string, content map[string]any, causes []string) (*Event, error) {
	content, causes = normalizeContent(content, causes)
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var prevHash string
	if n := len(s.events); n > 0 {
		prevHash = s.events[n-1].Hash
	}
	e := Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Content:   content,
		Causes:    causes,
		PrevHash:  prevHash,
	}
	e.Hash = computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, contentJSON)
	s.byID[e.ID] = len(s.events)
	s.events = append(s.events, e)
	return &e, nil
}

// Get retrieves a single event by ID.
func (s *MemStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("get event %s: %w", id, ErrNotFound)
	}
	e := s.events[i]
	return &e, nil
}

// Recent returns up to limit events, newest first.
func (s *MemStore) Recent(_ context.Context, limit int) ([]Event, error) {
	return s.newest(limit, func(*Event) bool { return true }), nil
}

// ByType returns up to limit events of the given type, newest first.
func (s *MemStore) ByType(_ context.Context, eventType string, limit int) ([]Event, error) {
	return s.newest(limit, func(e *Event) bool { return e.Type == eventType }), nil
}

func (s *MemStore) newest(limit int, keep func(*Event) bool) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Event{}
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if keep(&s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	return out
}

// Count returns the total number of events.
func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// VerifyChain walks the chain from the first event and checks every link.
func (s *MemStore) VerifyChain(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prevHash := ""
	for i := range s.events {
		e := &s.events[i]
		contentJSON, err := json.Marshal(e.Content)
		if err != nil {
			return fmt.Errorf("event %d (%s): marshal content: %w", i, e.ID, err)
		}
		if err := checkLink(i, e, prevHash, contentJSON, nil); err != nil {
			return err
		}
		prevHash = e.Hash
	}
	return nil
}
