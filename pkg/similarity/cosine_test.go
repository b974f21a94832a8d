package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"va-tasks/pkg/text"
)

func TestCosineEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine(nil, []string{"a"}))
	assert.Equal(t, 0.0, Cosine([]string{"a"}, []string{}))
}

func TestCosineSelfIsOne(t *testing.T) {
	for _, tokens := range [][]string{
		{"a"},
		{"send", "status", "report"},
		{"buy", "milk", "milk", "milk"},
		text.Tokenize("Plan and draft and send Q3 report"),
	} {
		assert.Equal(t, 1.0, Cosine(tokens, tokens), "tokens %v", tokens)
	}
}

func TestCosineSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Send weekly status report to Alice", "Send status report"},
		{"Buy milk", "Buy whole milk at the store"},
		{"Plan and draft and send Q3 report", "Send status report"},
		{"a a b", "a b b b"},
	}
	for _, p := range pairs {
		a, b := text.Tokenize(p[0]), text.Tokenize(p[1])
		assert.Equal(t, Cosine(a, b), Cosine(b, a), "pair %q", p)
	}
}

func TestCosineKnownValues(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Send weekly status report to Alice", "Send status report", 3 / math.Sqrt(18)},
		{"Buy milk", "Buy whole milk at the store", 2 / math.Sqrt(12)},
		{"alpha beta", "gamma delta", 0},
		{"a a b", "a b", 3 / (math.Sqrt(5) * math.Sqrt(2))},
	}
	for _, tt := range tests {
		got := Cosine(text.Tokenize(tt.a), text.Tokenize(tt.b))
		assert.InDelta(t, tt.want, got, 1e-12, "%q vs %q", tt.a, tt.b)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}
