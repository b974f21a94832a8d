package suggest

import "testing"

func TestSeedScore(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{0.6, "0.6"},
		{0.7000000000000001, "0.7"},
		{0.707106781187, "0.7071"},
		{0.57735026919, "0.5774"},
		{0.12345, "0.1235"},
		{0.00004, "0.0"},
		{0.9, "0.9"},
	}
	for _, tt := range tests {
		if got := seedScore(tt.in); got != tt.want {
			t.Errorf("seedScore(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCombineSeedSortsPair(t *testing.T) {
	want := "combine|[1, 2]|0.7071|Send status report"
	if got := CombineSeed(2, 1, 0.707106781187, "Send status report"); got != want {
		t.Fatalf("CombineSeed(2,1) = %q, want %q", got, want)
	}
	if got := CombineSeed(1, 2, 0.707106781187, "Send status report"); got != want {
		t.Fatalf("CombineSeed(1,2) = %q, want %q", got, want)
	}
}

func TestSplitSeed(t *testing.T) {
	want := "split|5|Plan,draft,send Q3 report|0.7"
	if got := SplitSeed(5, []string{"Plan", "draft", "send Q3 report"}, 0.7000000000000001); got != want {
		t.Fatalf("SplitSeed = %q, want %q", got, want)
	}
}

func TestSuggestionIDKnownSeeds(t *testing.T) {
	tests := []struct {
		seed string
		want string
	}{
		{"combine|[1, 2]|0.7071|Send status report", "2437625c3015"},
		{"combine|[3, 4]|0.5774|Buy milk", "ea42250ee405"},
		{"split|5|Plan,draft,send Q3 report|0.7", "f31ec00f07a0"},
		{"split|7|x,y|0.6", "a7f39807f7ec"},
	}
	for _, tt := range tests {
		got := SuggestionID(tt.seed)
		if got != tt.want {
			t.Errorf("SuggestionID(%q) = %s, want %s", tt.seed, got, tt.want)
		}
		if len(got) != 12 {
			t.Errorf("id %q should be 12 chars", got)
		}
	}
}
