// Package quickentry parses one-line task capture text such as
// "Email Joel re SOW tomorrow 4pm #Acme @email +Joel p1".
package quickentry

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	priorityRe = regexp.MustCompile(`(?i)\b(p[0-3])\b`)
	projectRe  = regexp.MustCompile(`#([\p{L}\p{N}_\-]+)`)
	contextRe  = regexp.MustCompile(`@([\p{L}\p{N}_\-]+)`)
	peopleRe   = regexp.MustCompile(`\+([\p{L}\p{N}_\-]+)`)

	dayRe    = regexp.MustCompile(`(?i)\b(?:(next)\s+)?(today|tonight|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	timeRe   = regexp.MustCompile(`(?i)^\s*(at\s+)?(\d{1,2})(?::([0-5]\d))?\s*(am|pm)?\b`)
	atTimeRe = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::([0-5]\d))?\s*(am|pm)?\b`)
)

// Default clock times when a day is named without a time.
const (
	todayHour    = 17
	tonightHour  = 20
	otherDayHour = 9
)

// Result is the structured form of a quick-entry line.
type Result struct {
	Title    string     `json:"title"`
	Due      *time.Time `json:"due,omitempty"`
	Priority string     `json:"priority,omitempty"`
	Project  string     `json:"project,omitempty"`
	Context  []string   `json:"context"`
	People   []string   `json:"people"`
}

// Parse extracts priority (first p0..p3, upper-cased), the first #project,
// every @context and +person, and a simple due phrase. Relative days are
// resolved against now in loc. Whatever remains becomes the title; if
// nothing remains the trimmed input is used.
func Parse(text string, now time.Time, loc *time.Location) Result {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	original := strings.TrimSpace(text)
	work := original

	res := Result{Context: []string{}, People: []string{}}
	if m := priorityRe.FindStringSubmatchIndex(work); m != nil {
		res.Priority = strings.ToUpper(work[m[2]:m[3]])
		work = work[:m[0]] + work[m[1]:]
	}

	if projects := submatches(projectRe, work); len(projects) > 0 {
		res.Project = projects[0]
	}
	res.Context = append(res.Context, submatches(contextRe, work)...)
	res.People = append(res.People, submatches(peopleRe, work)...)
	work = projectRe.ReplaceAllString(work, "")
	work = contextRe.ReplaceAllString(work, "")
	work = peopleRe.ReplaceAllString(work, "")

	res.Due, work = extractDue(work, now)

	res.Title = strings.Trim(strings.Join(strings.Fields(work), " "), ",;")
	if res.Title == "" {
		res.Title = original
	}
	return res
}

func submatches(re *regexp.Regexp, s string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// extractDue resolves the last day phrase in s, with an optional time right
// after it, or failing that a bare "at <time>". The matched text is cut out
// of the returned string.
func extractDue(s string, now time.Time) (*time.Time, string) {
	if days := dayRe.FindAllStringSubmatchIndex(s, -1); len(days) > 0 {
		m := days[len(days)-1]
		word := strings.ToLower(s[m[4]:m[5]])
		start, end := m[0], m[1]

		date, hour, minute := resolveDay(word, now)
		if t := timeRe.FindStringSubmatch(s[end:]); t != nil {
			h, mins, ok := clock(t[2], t[3], t[4], t[1] != "" || t[3] != "" || t[4] != "", word == "tonight")
			if ok {
				hour, minute = h, mins
				end += len(t[0])
			}
		}
		due := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, now.Location())
		return &due, s[:start] + s[end:]
	}

	if ats := atTimeRe.FindAllStringSubmatchIndex(s, -1); len(ats) > 0 {
		m := ats[len(ats)-1]
		meridiem := ""
		if m[6] >= 0 {
			meridiem = s[m[6]:m[7]]
		}
		minutes := ""
		if m[4] >= 0 {
			minutes = s[m[4]:m[5]]
		}
		h, mins, ok := clock(s[m[2]:m[3]], minutes, meridiem, true, false)
		if !ok {
			return nil, s
		}
		due := time.Date(now.Year(), now.Month(), now.Day(), h, mins, 0, 0, now.Location())
		if !due.After(now) {
			due = due.AddDate(0, 0, 1)
		}
		return &due, s[:m[0]] + s[m[1]:]
	}
	return nil, s
}

// resolveDay returns the calendar day a day word refers to and its default
// clock time.
func resolveDay(word string, now time.Time) (time.Time, int, int) {
	switch word {
	case "today":
		return now, todayHour, 0
	case "tonight":
		return now, tonightHour, 0
	case "tomorrow":
		return now.AddDate(0, 0, 1), otherDayHour, 0
	}
	target := weekdays[word]
	ahead := (int(target) - int(now.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return now.AddDate(0, 0, ahead), otherDayHour, 0
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// clock converts hour, minute and am/pm text into a 24h time. explicit
// reports whether the text is unambiguously a time (has "at", minutes or a
// meridiem); a bare number is not. evening shifts bare hours before noon to pm.
func clock(hourText, minuteText, meridiem string, explicit, evening bool) (int, int, bool) {
	if !explicit {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return 0, 0, false
	}
	minute := 0
	if minuteText != "" {
		minute, _ = strconv.Atoi(minuteText)
	}
	switch strings.ToLower(meridiem) {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		hour %= 12
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		hour = hour%12 + 12
	default:
		if hour > 23 {
			return 0, 0, false
		}
		if evening && hour < 12 {
			hour += 12
		}
	}
	return hour, minute, true
}
