package suggest

// Interleave alternates combine and split suggestions, combine first, until
// both are exhausted or topK are taken. Order within each stream is kept.
func Interleave(combine, split []Suggestion, topK int) []Suggestion {
	out := []Suggestion{}
	i, j := 0, 0
	for len(out) < topK && (i < len(combine) || j < len(split)) {
		if i < len(combine) {
			out = append(out, combine[i])
			i++
		}
		if len(out) >= topK {
			break
		}
		if j < len(split) {
			out = append(out, split[j])
			j++
		}
	}
	return out
}
