// Package similarity scores how alike two token sequences are.
package similarity

import (
	"math"
	"strconv"
)

// Cosine returns the term-frequency cosine similarity of a and b in [0,1].
// Either side empty yields 0. The result is rounded to 12 decimal places and
// clamped so threshold comparisons never see float drift past the bounds.
func Cosine(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	fa, fb := frequencies(a), frequencies(b)

	var dot float64
	for tok, ca := range fa {
		dot += float64(ca * fb[tok])
	}
	na, nb := norm(fa), norm(fb)
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp(round12(dot / (na * nb)))
}

func frequencies(tokens []string) map[string]int {
	m := make(map[string]int, len(tokens))
	for _, t := range tokens {
		m[t]++
	}
	return m
}

func norm(f map[string]int) float64 {
	var sum float64
	for _, c := range f {
		sum += float64(c * c)
	}
	return math.Sqrt(sum)
}

// round12 rounds half-to-even at 12 decimals via the decimal formatter.
func round12(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 12, 64), 64)
	return r
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
