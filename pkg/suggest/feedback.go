package suggest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"va-tasks/pkg/task"
)

// FeedbackRequest is an accept or reject verdict on a suggestion.
type FeedbackRequest struct {
	ID             string   `json:"id"`
	Type           Kind     `json:"type"`
	Accepted       bool     `json:"accepted"`
	TaskIDs        []int64  `json:"task_ids,omitempty"`
	TaskID         *int64   `json:"task_id,omitempty"`
	ChosenSubtasks []string `json:"chosen_subtasks,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// FeedbackResult lists the tasks that received the entry, in request order.
type FeedbackResult struct {
	Touched []int64 `json:"touched"`
}

// targets returns the task ids a feedback request refers to.
func (r FeedbackRequest) targets() []int64 {
	switch r.Type {
	case KindCombine:
		return r.TaskIDs
	case KindSplit:
		if r.TaskID != nil {
			return []int64{*r.TaskID}
		}
		return r.TaskIDs
	}
	return nil
}

// Feedback appends a suggestion_feedback entry to every referenced task that
// still exists. Missing tasks are skipped, not reported as errors. All
// appends commit together.
func (e *Engine) Feedback(ctx context.Context, req FeedbackRequest) (*FeedbackResult, error) {
	if err := checkSuggestionID(req.ID); err != nil {
		return nil, err
	}
	if req.Type != KindCombine && req.Type != KindSplit {
		return nil, fmt.Errorf("%w: unknown suggestion type %q", ErrValidation, req.Type)
	}

	entry := task.HistoryEntry{
		Event:          task.EventSuggestionFeedback,
		ID:             req.ID,
		Type:           string(req.Type),
		Accepted:       req.Accepted,
		Reason:         req.Reason,
		ChosenSubtasks: req.ChosenSubtasks,
		Timestamp:      e.now(),
	}

	touched := []int64{}
	err := e.store.InTx(ctx, func(tx task.Tx) error {
		touched = touched[:0]
		for _, id := range req.targets() {
			err := tx.AppendHistory(ctx, id, entry)
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			touched = append(touched, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("feedback %s: %w", req.ID, err)
	}

	e.log.Info("feedback recorded",
		zap.String("suggestion_id", req.ID),
		zap.String("type", string(req.Type)),
		zap.Bool("accepted", req.Accepted),
		zap.Int64s("touched", touched))
	e.record(ctx, EventFeedback, map[string]any{
		"suggestion_id": req.ID,
		"type":          string(req.Type),
		"accepted":      req.Accepted,
		"touched":       touched,
	})
	return &FeedbackResult{Touched: touched}, nil
}
