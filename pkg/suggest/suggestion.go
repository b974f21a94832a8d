// Package suggest proposes merging near-duplicate tasks and splitting
// multi-action tasks, and applies or records feedback on those proposals.
//
// Generation is pure and deterministic: the same open task list always yields
// the same suggestions with the same ids. Suggestions are never stored; a
// caller applying one resends the payload it received.
package suggest

import (
	"errors"
	"fmt"
	"math"

	"va-tasks/pkg/task"
)

// Kind discriminates the suggestion variants.
type Kind string

const (
	KindCombine Kind = "combine"
	KindSplit   Kind = "split"
)

// ErrValidation is returned for malformed requests, before the store is touched.
var ErrValidation = errors.New("invalid suggestion request")

// Suggestion is a combine or split proposal. Combine fills TaskIDs and Title,
// split fills TaskID and Subtasks.
type Suggestion struct {
	ID        string   `json:"id"`
	Type      Kind     `json:"type"`
	Score     float64  `json:"score"`
	TaskIDs   []int64  `json:"task_ids,omitempty"`
	Title     string   `json:"title,omitempty"`
	TaskID    int64    `json:"task_id,omitempty"`
	Subtasks  []string `json:"subtasks,omitempty"`
	Rationale string   `json:"rationale"`
}

// Limits on Options.TopK.
const (
	MinTopK = 1
	MaxTopK = 20
)

// Options controls suggestion generation.
type Options struct {
	Threshold    float64 `json:"threshold" yaml:"threshold"`
	TopK         int     `json:"top_k" yaml:"top_k"`
	IncludeSplit bool    `json:"include_split" yaml:"include_split"`
}

// DefaultOptions returns threshold 0.45, top 5, splits included.
func DefaultOptions() Options {
	return Options{Threshold: 0.45, TopK: 5, IncludeSplit: true}
}

// Validate checks the threshold and cap bounds.
func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrValidation, o.Threshold)
	}
	if o.TopK < MinTopK || o.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k %d outside [%d,%d]", ErrValidation, o.TopK, MinTopK, MaxTopK)
	}
	return nil
}

// Generate builds the interleaved suggestion list for tasks. tasks is not
// modified; its order is the tie-break for equal scores.
func Generate(tasks []task.Task, opts Options) []Suggestion {
	combine := BuildCombine(tasks, opts.Threshold, opts.TopK)
	var split []Suggestion
	if opts.IncludeSplit {
		split = BuildSplit(tasks, opts.TopK)
	}
	return Interleave(combine, split, opts.TopK)
}
