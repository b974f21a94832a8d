package suggest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// SuggestionID returns the first 12 hex characters of the SHA-1 of seed.
func SuggestionID(seed string) string {
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])[:12]
}

// CombineSeed is the identity seed of a combine suggestion. The pair is
// sorted so discovery order does not change the id.
func CombineSeed(a, b int64, score float64, title string) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("combine|[%d, %d]|%s|%s", a, b, seedScore(score), title)
}

// SplitSeed is the identity seed of a split suggestion.
func SplitSeed(taskID int64, subtasks []string, score float64) string {
	return fmt.Sprintf("split|%d|%s|%s", taskID, strings.Join(subtasks, ","), seedScore(score))
}

// seedScore rounds v to 4 decimals and renders the shortest decimal that
// round-trips, always with a fractional part ("0.7071", "0.6", "1.0").
// Existing ids depend on this exact rendering.
func seedScore(v float64) string {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 4, 64), 64)
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
