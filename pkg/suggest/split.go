package suggest

import (
	"math"

	"va-tasks/pkg/task"
	"va-tasks/pkg/text"
)

const splitRationale = "Title appears to contain multiple actions (commas/and)."

// splitScore grows with the phrase count and never exceeds 0.9.
func splitScore(phrases int) float64 {
	return math.Min(0.4+0.1*float64(phrases), 0.9)
}

// BuildSplit proposes splitting every task whose title yields at least two
// phrases, in list order, up to topK.
func BuildSplit(tasks []task.Task, topK int) []Suggestion {
	out := []Suggestion{}
	for i := range tasks {
		t := &tasks[i]
		subs := text.SplitPhrases(t.Title)
		if len(subs) < 2 {
			continue
		}
		score := splitScore(len(subs))
		out = append(out, Suggestion{
			ID:        SuggestionID(SplitSeed(t.ID, subs, score)),
			Type:      KindSplit,
			Score:     score,
			TaskID:    t.ID,
			Subtasks:  subs,
			Rationale: splitRationale,
		})
		if len(out) >= topK {
			break
		}
	}
	return out
}
