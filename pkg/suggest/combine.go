package suggest

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"va-tasks/pkg/similarity"
	"va-tasks/pkg/task"
	"va-tasks/pkg/text"
)

type scoredPair struct {
	score float64
	i, j  int
}

// BuildCombine proposes merging pairs of tasks whose title similarity is at
// least threshold. Pairs are taken best first and each task appears in at
// most one suggestion. At most topK suggestions are returned.
func BuildCombine(tasks []task.Task, threshold float64, topK int) []Suggestion {
	tokens := make([][]string, len(tasks))
	for i := range tasks {
		tokens[i] = text.Tokenize(tasks[i].Title)
	}

	var pairs []scoredPair
	for i := 0; i < len(tasks); i++ {
		for j := i + 1; j < len(tasks); j++ {
			if s := similarity.Cosine(tokens[i], tokens[j]); s >= threshold {
				pairs = append(pairs, scoredPair{score: s, i: i, j: j})
			}
		}
	}
	// Stable: equal scores keep discovery order.
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].score > pairs[b].score })

	used := make(map[int64]bool)
	out := []Suggestion{}
	for _, p := range pairs {
		t1, t2 := &tasks[p.i], &tasks[p.j]
		if used[t1.ID] || used[t2.ID] {
			continue
		}
		title := t1.Title
		if utf8.RuneCountInString(t2.Title) < utf8.RuneCountInString(t1.Title) {
			title = t2.Title
		}
		out = append(out, Suggestion{
			ID:        SuggestionID(CombineSeed(t1.ID, t2.ID, p.score, title)),
			Type:      KindCombine,
			Score:     p.score,
			TaskIDs:   []int64{t1.ID, t2.ID},
			Title:     title,
			Rationale: fmt.Sprintf("High textual similarity between '%s' and '%s'.", t1.Title, t2.Title),
		})
		used[t1.ID] = true
		used[t2.ID] = true
		if len(out) >= topK {
			break
		}
	}
	return out
}
