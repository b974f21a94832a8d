// Package text turns task titles into comparable tokens and candidate
// subtask phrases.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]+`)
	phraseBreak = regexp.MustCompile(`(?i),|and`)
)

// minPhraseLen is the shortest fragment, in characters, SplitPhrases keeps.
const minPhraseLen = 3

// Normalize lower-cases s, collapses every run of characters outside
// [a-z0-9] into a single space and trims the result.
func Normalize(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

// Tokenize returns the whitespace-separated tokens of Normalize(s).
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

// SplitPhrases breaks a title on commas and the standalone word "and".
// Fragments are whitespace-collapsed, stripped of surrounding " ,;.-" and
// dropped when shorter than three characters. The result may be empty or a
// single phrase; callers decide whether that makes the title splittable.
func SplitPhrases(title string) []string {
	var out []string
	for _, frag := range splitBreaks(title) {
		p := strings.Trim(strings.Join(strings.Fields(frag), " "), " ,;.-")
		if utf8.RuneCountInString(p) < minPhraseLen {
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitBreaks cuts s at every comma and at every "and" whose neighbours are
// not word runes. Word runes are Unicode letters, digits and underscore.
func splitBreaks(s string) []string {
	var frags []string
	start := 0
	for _, m := range phraseBreak.FindAllStringIndex(s, -1) {
		if s[m[0]] != ',' && !standalone(s, m[0], m[1]) {
			continue
		}
		frags = append(frags, s[start:m[0]])
		start = m[1]
	}
	return append(frags, s[start:])
}

func standalone(s string, lo, hi int) bool {
	if lo > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:lo]); isWordRune(r) {
			return false
		}
	}
	if hi < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[hi:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
