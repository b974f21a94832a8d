package suggest

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"va-tasks/pkg/task"
)

var workedTitles = []string{
	"Send weekly status report to Alice",
	"Send status report",
	"Buy milk",
	"Buy whole milk at the store",
	"Plan and draft and send Q3 report",
}

// openTasks returns the seed titles as a store would list them: ids 1..5 in
// creation order, newest first.
func openTasks() []task.Task {
	out := make([]task.Task, 0, len(workedTitles))
	for i := len(workedTitles) - 1; i >= 0; i-- {
		out = append(out, task.Task{ID: int64(i + 1), Title: workedTitles[i], Status: task.StatusInbox})
	}
	return out
}

func TestBuildCombineGreedy(t *testing.T) {
	got := BuildCombine(openTasks(), 0.3, 10)
	want := []Suggestion{
		{
			ID:        "2437625c3015",
			Type:      KindCombine,
			Score:     0.707106781187,
			TaskIDs:   []int64{2, 1},
			Title:     "Send status report",
			Rationale: "High textual similarity between 'Send status report' and 'Send weekly status report to Alice'.",
		},
		{
			ID:        "ea42250ee405",
			Type:      KindCombine,
			Score:     0.57735026919,
			TaskIDs:   []int64{4, 3},
			Title:     "Buy milk",
			Rationale: "High textual similarity between 'Buy whole milk at the store' and 'Buy milk'.",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("BuildCombine mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCombineMutualExclusion(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Title: "call the bank today"},
		{ID: 2, Title: "call the bank"},
		{ID: 3, Title: "call bank"},
		{ID: 4, Title: "the bank call"},
	}
	got := BuildCombine(tasks, 0.1, 10)
	seen := map[int64]bool{}
	for _, s := range got {
		for _, id := range s.TaskIDs {
			assert.False(t, seen[id], "task %d appears in two combine suggestions", id)
			seen[id] = true
		}
	}
	assert.Len(t, got, 2)
}

func TestBuildCombineThresholdAndCap(t *testing.T) {
	assert.Len(t, BuildCombine(openTasks(), 0.6, 10), 1)
	assert.Len(t, BuildCombine(openTasks(), 0.3, 1), 1)
	assert.Empty(t, BuildCombine(openTasks(), 1, 10))
	assert.Empty(t, BuildCombine(nil, 0, 10))
}

func TestBuildCombineTieKeepsDiscoveryOrder(t *testing.T) {
	tasks := []task.Task{
		{ID: 10, Title: "water plants"},
		{ID: 11, Title: "water plants"},
		{ID: 12, Title: "feed cat"},
		{ID: 13, Title: "feed cat"},
	}
	got := BuildCombine(tasks, 0.5, 10)
	require.Len(t, got, 2)
	assert.Equal(t, []int64{10, 11}, got[0].TaskIDs)
	assert.Equal(t, []int64{12, 13}, got[1].TaskIDs)
	assert.Equal(t, 1.0, got[0].Score)
}

func TestBuildCombineTitleTieTakesFirst(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Title: "Pay rent"},
		{ID: 2, Title: "pay RENT"},
	}
	got := BuildCombine(tasks, 0.5, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "Pay rent", got[0].Title)
}

func TestBuildSplit(t *testing.T) {
	got := BuildSplit(openTasks(), 10)
	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, "f31ec00f07a0", s.ID)
	assert.Equal(t, KindSplit, s.Type)
	assert.Equal(t, int64(5), s.TaskID)
	assert.Equal(t, []string{"Plan", "draft", "send Q3 report"}, s.Subtasks)
	assert.InDelta(t, 0.7, s.Score, 1e-9)
	assert.Equal(t, splitRationale, s.Rationale)
}

func TestSplitScoreCapped(t *testing.T) {
	assert.InDelta(t, 0.6, splitScore(2), 1e-12)
	assert.InDelta(t, 0.9, splitScore(5), 1e-12)
	assert.Equal(t, 0.9, splitScore(9))
	for n := 2; n < 12; n++ {
		assert.LessOrEqual(t, splitScore(n), 0.9)
		assert.GreaterOrEqual(t, splitScore(n+1), splitScore(n))
	}
}

func TestBuildSplitCap(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Title: "wash car and mow lawn"},
		{ID: 2, Title: "call mom, pay rent"},
		{ID: 3, Title: "single action"},
	}
	got := BuildSplit(tasks, 1)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].TaskID)
}

func TestInterleave(t *testing.T) {
	c := func(id string) Suggestion { return Suggestion{ID: id, Type: KindCombine} }
	s := func(id string) Suggestion { return Suggestion{ID: id, Type: KindSplit} }
	ids := func(list []Suggestion) []string {
		out := []string{}
		for _, x := range list {
			out = append(out, x.ID)
		}
		return out
	}

	tests := []struct {
		name    string
		combine []Suggestion
		split   []Suggestion
		topK    int
		want    []string
	}{
		{"alternate", []Suggestion{c("c1"), c("c2")}, []Suggestion{s("s1"), s("s2")}, 10, []string{"c1", "s1", "c2", "s2"}},
		{"combine heavy", []Suggestion{c("c1"), c("c2"), c("c3")}, []Suggestion{s("s1")}, 10, []string{"c1", "s1", "c2", "c3"}},
		{"split only", nil, []Suggestion{s("s1"), s("s2")}, 10, []string{"s1", "s2"}},
		{"cap after combine", []Suggestion{c("c1"), c("c2")}, []Suggestion{s("s1"), s("s2")}, 3, []string{"c1", "s1", "c2"}},
		{"cap one", []Suggestion{c("c1")}, []Suggestion{s("s1")}, 1, []string{"c1"}},
		{"empty", nil, nil, 5, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Interleave(tt.combine, tt.split, tt.topK)
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Fatalf("Interleave mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGenerateWorkedExample(t *testing.T) {
	got := Generate(openTasks(), Options{Threshold: 0.3, TopK: 10, IncludeSplit: true})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"2437625c3015", "f31ec00f07a0", "ea42250ee405"},
		[]string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, []Kind{KindCombine, KindSplit, KindCombine},
		[]Kind{got[0].Type, got[1].Type, got[2].Type})

	for _, s := range got {
		assert.False(t, math.IsNaN(s.Score))
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}

	noSplit := Generate(openTasks(), Options{Threshold: 0.3, TopK: 10})
	for _, s := range noSplit {
		assert.Equal(t, KindCombine, s.Type)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	opts := Options{Threshold: 0.2, TopK: 20, IncludeSplit: true}
	tasks := openTasks()
	first := Generate(tasks, opts)
	second := Generate(tasks, opts)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Generate is not deterministic (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(openTasks(), tasks); diff != "" {
		t.Fatalf("Generate modified its input:\n%s", diff)
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.NoError(t, Options{Threshold: 0, TopK: 1}.Validate())
	assert.NoError(t, Options{Threshold: 1, TopK: 20}.Validate())

	for _, o := range []Options{
		{Threshold: -0.01, TopK: 5},
		{Threshold: 1.01, TopK: 5},
		{Threshold: 0.5, TopK: 0},
		{Threshold: 0.5, TopK: 21},
		{Threshold: math.NaN(), TopK: 5},
	} {
		assert.ErrorIs(t, o.Validate(), ErrValidation, "%+v", o)
	}
}
