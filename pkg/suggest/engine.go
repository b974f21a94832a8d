package suggest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"va-tasks/pkg/eventgraph"
	"va-tasks/pkg/task"
)

// Journal event types appended after a committed apply or feedback.
const (
	EventApplied  = "suggestion.applied"
	EventFeedback = "suggestion.feedback"
)

const journalSource = "suggest"

// DefaultListLimit caps how many open tasks Suggest compares.
const DefaultListLimit = 200

// Engine generates suggestions from a task store and applies them.
type Engine struct {
	store     task.Store
	journal   eventgraph.EventStore
	log       *zap.Logger
	now       func() time.Time
	listLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the source of history timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithListLimit sets how many open tasks Suggest loads.
func WithListLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.listLimit = n
		}
	}
}

// New creates an Engine. journal may be nil; logger may be nil.
func New(store task.Store, journal eventgraph.EventStore, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:     store,
		journal:   journal,
		log:       logger.With(zap.String("component", "suggest")),
		now:       func() time.Time { return time.Now().UTC() },
		listLimit: DefaultListLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Suggest loads the most recent open tasks and generates suggestions over
// them. It never writes to the store.
func (e *Engine) Suggest(ctx context.Context, opts Options) ([]Suggestion, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	tasks, err := e.store.List(ctx, task.Filter{Open: true, Limit: e.listLimit})
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	out := Generate(tasks, opts)
	e.log.Debug("suggestions generated",
		zap.Int("open_tasks", len(tasks)),
		zap.Float64("threshold", opts.Threshold),
		zap.Int("top_k", opts.TopK),
		zap.Int("count", len(out)))
	return out, nil
}

// record appends to the journal. The task write has already committed, so a
// journal failure is logged and dropped.
func (e *Engine) record(ctx context.Context, eventType string, content map[string]any) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Append(ctx, eventType, journalSource, content, nil); err != nil {
		e.log.Warn("journal append failed", zap.String("event_type", eventType), zap.Error(err))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, task.ErrNotFound)
}
