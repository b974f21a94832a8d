package suggest

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"va-tasks/pkg/task"
)

func TestPriorityRank(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"P0", 0},
		{"P3", 3},
		{"p2", 2},
		{"", unrankedPriority},
		{"P", unrankedPriority},
		{"high", unrankedPriority},
		{"Px", unrankedPriority},
	}
	for _, tt := range tests {
		if got := PriorityRank(tt.in); got != tt.want {
			t.Errorf("PriorityRank(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBetterPriority(t *testing.T) {
	assert.Equal(t, "P0", BetterPriority("P2", "P0"))
	assert.Equal(t, "P1", BetterPriority("P1", "P3"))
	assert.Equal(t, "P2", BetterPriority("P2", ""))
	assert.Equal(t, "P2", BetterPriority("", "P2"))
	assert.Equal(t, "P1", BetterPriority("P1", "p1"), "tie goes to the first argument")
	assert.Equal(t, "urgent", BetterPriority("urgent", "whenever"), "unparsable values tie")
	assert.Equal(t, "P3", BetterPriority("soon", "P3"))
}

func TestUnionOrdered(t *testing.T) {
	tests := []struct {
		a, b, want []string
	}{
		{nil, nil, []string{}},
		{[]string{"home"}, nil, []string{"home"}},
		{nil, []string{"work"}, []string{"work"}},
		{[]string{"home", "phone"}, []string{"phone", "work", "home", "car"}, []string{"home", "phone", "work", "car"}},
		{[]string{"a", "a"}, []string{"b", "b"}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, UnionOrdered(tt.a, tt.b)); diff != "" {
			t.Errorf("UnionOrdered(%v, %v) mismatch (-want +got):\n%s", tt.a, tt.b, diff)
		}
	}
}

func TestChoosePrimary(t *testing.T) {
	a := &task.Task{ID: 1, Title: "Buy whole milk at the store"}
	b := &task.Task{ID: 2, Title: "Buy milk"}
	p, s := ChoosePrimary(a, b)
	assert.Equal(t, int64(2), p.ID)
	assert.Equal(t, int64(1), s.ID)

	c := &task.Task{ID: 3, Title: "Buy eggs"}
	p, _ = ChoosePrimary(c, b)
	assert.Equal(t, int64(3), p.ID, "equal length keeps the first argument")

	// Rune count, not bytes: "Café run" is 8 characters.
	d := &task.Task{ID: 4, Title: "Café run"}
	p, _ = ChoosePrimary(d, b)
	assert.Equal(t, int64(4), p.ID)
}

func TestMergeCombine(t *testing.T) {
	early := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)

	primary := task.Task{
		ID:       1,
		Title:    "Buy milk",
		Notes:    "2%",
		Priority: "P2",
		Context:  []string{"errand"},
		People:   []string{},
		Links:    []string{"https://shop.example/milk"},
		Due:      &late,
	}
	secondary := task.Task{
		ID:       2,
		Title:    "Buy whole milk at the store",
		Priority: "P1",
		Project:  "groceries",
		Context:  []string{"errand", "car"},
		People:   []string{"sam"},
		Due:      &early,
	}

	merged := MergeCombine(primary, secondary)
	assert.Equal(t, int64(1), merged.ID)
	assert.Equal(t, "Buy milk", merged.Title)
	assert.Equal(t, "P1", merged.Priority)
	assert.Equal(t, "groceries", merged.Project)
	assert.Equal(t, []string{"errand", "car"}, merged.Context)
	assert.Equal(t, []string{"sam"}, merged.People)
	assert.Equal(t, []string{"https://shop.example/milk"}, merged.Links)
	assert.True(t, merged.Due.Equal(early))
	assert.Equal(t, "2%\n\nMerged #2: Buy whole milk at the store", merged.Notes)

	// Inputs are untouched.
	assert.Equal(t, []string{"errand"}, primary.Context)
	assert.Equal(t, "P2", primary.Priority)
	assert.True(t, primary.Due.Equal(late))
}

func TestMergeCombineKeepsPrimaryValues(t *testing.T) {
	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := due.Add(time.Hour)
	primary := task.Task{ID: 1, Title: "a", Priority: "P0", Project: "home", Due: &due}
	secondary := task.Task{ID: 2, Title: "bb", Priority: "P3", Project: "work", Due: &later}

	merged := MergeCombine(primary, secondary)
	assert.Equal(t, "P0", merged.Priority)
	assert.Equal(t, "home", merged.Project)
	assert.True(t, merged.Due.Equal(due))
	assert.Equal(t, "Merged #2: bb", merged.Notes)

	noDue := MergeCombine(task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "bb"})
	assert.Nil(t, noDue.Due)
	assert.Empty(t, noDue.Priority)

	adopted := MergeCombine(task.Task{ID: 1, Title: "a"}, secondary)
	assert.True(t, adopted.Due.Equal(later))
	assert.Equal(t, "P3", adopted.Priority)
}
