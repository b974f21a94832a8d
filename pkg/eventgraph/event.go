package eventgraph

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get for an unknown event id.
var ErrNotFound = errors.New("event not found")

// ErrChainBroken is wrapped by VerifyChain when a link or hash does not match.
var ErrChainBroken = errors.New("event chain broken")

// Event is a single entry in the hash-chained, append-only audit journal.
type Event struct {
	ID        string         `json:"id"`        // UUID v7 (time-ordered)
	Type      string         `json:"type"`      // e.g. "suggestion.applied", "task.created"
	Timestamp time.Time      `json:"timestamp"` // when the event occurred
	Source    string         `json:"source"`    // component that emitted it
	Content   map[string]any `json:"content"`   // event payload
	Causes    []string       `json:"causes"`    // IDs of causing events
	Hash      string         `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string         `json:"prev_hash"` // hash chain link
}

// EventStore is the contract for event persistence. Recent and ByType return
// newest first.
type EventStore interface {
	Append(ctx context.Context, eventType, source string, content map[string]any, causes []string) (*Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
	ByType(ctx context.Context, eventType string, limit int) ([]Event, error)
	Count(ctx context.Context) (int, error)
	VerifyChain(ctx context.Context) error
	EnsureTable(ctx context.Context) error
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(prevHash, id, eventType, source string, timestamp time.Time, contentJSON []byte) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, id, eventType, source, timestamp.UnixNano(), string(contentJSON))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}

// checkLink verifies one event against the hash of its predecessor. raw is
// the content as stored; it is tried when re-marshalling the decoded content
// does not reproduce the hash (JSONB normalizes whitespace and key order).
func checkLink(i int, e *Event, prevHash string, remarshaled, raw []byte) error {
	if e.PrevHash != prevHash {
		return fmt.Errorf("%w: event %d (%s): prev_hash mismatch: got %s, want %s", ErrChainBroken, i, e.ID, e.PrevHash, prevHash)
	}
	expected := computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, remarshaled)
	if e.Hash == expected {
		return nil
	}
	if raw != nil && e.Hash == computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, raw) {
		return nil
	}
	return fmt.Errorf("%w: event %d (%s): hash mismatch: got %s, want %s", ErrChainBroken, i, e.ID, e.Hash, expected)
}

func normalizeContent(content map[string]any, causes []string) (map[string]any, []string) {
	if content == nil {
		content = map[string]any{}
	}
	if causes == nil {
		causes = []string{}
	}
	return content, causes
}
