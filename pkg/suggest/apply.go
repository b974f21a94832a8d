package suggest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"va-tasks/pkg/task"
)

// ApplyRequest is an accepted suggestion as resent by the client. For a
// split, ChosenSubtasks wins over the proposed Subtasks when both are set.
type ApplyRequest struct {
	ID             string   `json:"id"`
	Type           Kind     `json:"type"`
	TaskIDs        []int64  `json:"task_ids,omitempty"`
	TaskID         *int64   `json:"task_id,omitempty"`
	Subtasks       []string `json:"subtasks,omitempty"`
	ChosenSubtasks []string `json:"chosen_subtasks,omitempty"`
}

// CombineResult names the surviving and the retired task.
type CombineResult struct {
	PrimaryID   int64 `json:"primary_id"`
	SecondaryID int64 `json:"secondary_id"`
}

// SplitResult lists the children created under the parent.
type SplitResult struct {
	ParentID int64   `json:"parent_id"`
	Children []int64 `json:"children"`
}

// ApplyResult holds exactly one of the embedded results, matching Type.
type ApplyResult struct {
	Type Kind `json:"type"`
	*CombineResult
	*SplitResult
}

// Apply validates req and dispatches to ApplyCombine or ApplySplit.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	switch req.Type {
	case KindCombine:
		if len(req.TaskIDs) != 2 {
			return nil, fmt.Errorf("%w: combine requires exactly two task_ids, got %d", ErrValidation, len(req.TaskIDs))
		}
		res, err := e.ApplyCombine(ctx, req.TaskIDs[0], req.TaskIDs[1], req.ID)
		if err != nil {
			return nil, err
		}
		return &ApplyResult{Type: KindCombine, CombineResult: res}, nil
	case KindSplit:
		if req.TaskID == nil {
			return nil, fmt.Errorf("%w: split requires task_id", ErrValidation)
		}
		subtasks := req.ChosenSubtasks
		if len(subtasks) == 0 {
			subtasks = req.Subtasks
		}
		res, err := e.ApplySplit(ctx, *req.TaskID, subtasks, req.ID)
		if err != nil {
			return nil, err
		}
		return &ApplyResult{Type: KindSplit, SplitResult: res}, nil
	default:
		return nil, fmt.Errorf("%w: unknown suggestion type %q", ErrValidation, req.Type)
	}
}

// ApplyCombine merges a and b into the task with the shorter title and
// retires the other: status done, parent set to the survivor. Both tasks get
// the same history entry. Everything commits in one transaction.
func (e *Engine) ApplyCombine(ctx context.Context, a, b int64, suggestionID string) (*CombineResult, error) {
	if err := checkSuggestionID(suggestionID); err != nil {
		return nil, err
	}
	if a == b {
		return nil, fmt.Errorf("%w: combine needs two distinct tasks, got %d twice", ErrValidation, a)
	}

	var res *CombineResult
	err := e.store.InTx(ctx, func(tx task.Tx) error {
		// Lock rows in id order so opposing applies cannot deadlock.
		lo, hi := a, b
		if lo > hi {
			lo, hi = hi, lo
		}
		locked := make(map[int64]*task.Task, 2)
		for _, id := range []int64{lo, hi} {
			t, err := tx.Get(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = t
		}

		primary, secondary := ChoosePrimary(locked[a], locked[b])
		merged := MergeCombine(*primary, *secondary)
		if err := tx.Save(ctx, &merged); err != nil {
			return err
		}

		secondary.Status = task.StatusDone
		parent := primary.ID
		secondary.ParentID = &parent
		if err := tx.Save(ctx, secondary); err != nil {
			return err
		}

		entry := task.HistoryEntry{
			Event:     task.EventSuggestionApply,
			ID:        suggestionID,
			Type:      string(KindCombine),
			Accepted:  true,
			Timestamp: e.now(),
			Merged:    []int64{primary.ID, secondary.ID},
		}
		for _, id := range entry.Merged {
			if err := tx.AppendHistory(ctx, id, entry); err != nil {
				return err
			}
		}
		res = &CombineResult{PrimaryID: primary.ID, SecondaryID: secondary.ID}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply combine %s: %w", suggestionID, err)
	}

	e.log.Info("combine applied",
		zap.String("suggestion_id", suggestionID),
		zap.Int64("primary_id", res.PrimaryID),
		zap.Int64("secondary_id", res.SecondaryID))
	e.record(ctx, EventApplied, map[string]any{
		"suggestion_id": suggestionID,
		"type":          string(KindCombine),
		"primary_id":    res.PrimaryID,
		"secondary_id":  res.SecondaryID,
	})
	return res, nil
}

// ApplySplit creates one child of taskID per subtask title. Children inherit
// the parent's channel, due, priority, project and tag lists and start in the
// inbox. The parent's history lists the new ids. Nothing is kept if any step
// fails.
func (e *Engine) ApplySplit(ctx context.Context, taskID int64, subtasks []string, suggestionID string) (*SplitResult, error) {
	if err := checkSuggestionID(suggestionID); err != nil {
		return nil, err
	}
	titles, err := cleanSubtasks(subtasks)
	if err != nil {
		return nil, err
	}

	var res *SplitResult
	err = e.store.InTx(ctx, func(tx task.Tx) error {
		parent, err := tx.Get(ctx, taskID)
		if err != nil {
			return err
		}

		children := make([]int64, 0, len(titles))
		for _, title := range titles {
			child, err := tx.Create(ctx, childOf(parent, title))
			if err != nil {
				return fmt.Errorf("create subtask %q: %w", title, err)
			}
			children = append(children, child.ID)
		}

		entry := task.HistoryEntry{
			Event:     task.EventSuggestionApply,
			ID:        suggestionID,
			Type:      string(KindSplit),
			Accepted:  true,
			Timestamp: e.now(),
			Children:  children,
		}
		if err := tx.AppendHistory(ctx, parent.ID, entry); err != nil {
			return err
		}
		res = &SplitResult{ParentID: parent.ID, Children: children}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply split %s: %w", suggestionID, err)
	}

	e.log.Info("split applied",
		zap.String("suggestion_id", suggestionID),
		zap.Int64("parent_id", res.ParentID),
		zap.Int64s("children", res.Children))
	e.record(ctx, EventApplied, map[string]any{
		"suggestion_id": suggestionID,
		"type":          string(KindSplit),
		"parent_id":     res.ParentID,
		"children":      res.Children,
	})
	return res, nil
}

func childOf(parent *task.Task, title string) *task.Task {
	child := &task.Task{
		Title:    title,
		Channel:  parent.Channel,
		Priority: parent.Priority,
		Project:  parent.Project,
		Context:  append([]string{}, parent.Context...),
		People:   append([]string{}, parent.People...),
		Links:    append([]string{}, parent.Links...),
		Status:   task.StatusInbox,
	}
	if parent.Due != nil {
		due := *parent.Due
		child.Due = &due
	}
	pid := parent.ID
	child.ParentID = &pid
	return child
}

func cleanSubtasks(subtasks []string) ([]string, error) {
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("%w: no subtasks provided", ErrValidation)
	}
	titles := make([]string, 0, len(subtasks))
	for i, s := range subtasks {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("%w: subtask %d is blank", ErrValidation, i)
		}
		titles = append(titles, s)
	}
	return titles, nil
}

func checkSuggestionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: suggestion id is required", ErrValidation)
	}
	return nil
}
