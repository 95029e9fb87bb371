// Package schedule implements the weekly opening-hours mini-language that
// gates when wave alerts are permitted to fire.
//
// The grammar is a permissive subset of the OSM opening_hours syntax:
//
//	24/7
//	Mo-Fr 05:00-17:00; Sa-Su 07:00-12:00
//	Mo,We,Fr 06:00-09:00 16:00-19:00
//	Su off
//
// Rules are separated by ';'. A rule starts with an optional day part
// (comma-separated weekday abbreviations or A-B ranges over Mo..Su); if the
// first token of a rule contains a digit the rule applies to all seven days.
// The remainder is one or more HH:MM-HH:MM ranges, space- or comma-joined.
// The token "off" closes the rule's days. Days never mentioned stay closed.
//
// Parsing is deliberately forgiving: malformed day or time tokens are
// skipped and Parse never fails. An empty spec means always open.
package schedule

import (
	"strconv"
	"strings"
	"time"
)

// minutesPerDay is the size of the per-day interval space.
const minutesPerDay = 24 * 60

// dayIndex maps weekday abbreviations to indices in the Mo..Su ordered week.
var dayIndex = map[string]int{
	"Mo": 0, "Tu": 1, "We": 2, "Th": 3, "Fr": 4, "Sa": 5, "Su": 6,
}

// interval is a half-open [Start, End) minute range within one day.
type interval struct {
	Start int
	End   int
}

// WeekSchedule is the parsed, immutable form of an opening-hours spec: one
// sorted, non-overlapping interval list per weekday (0=Monday .. 6=Sunday).
type WeekSchedule struct {
	days [7][]interval
}

// Parse builds a WeekSchedule from a textual spec. It never fails: tokens
// that do not fit the grammar are silently dropped. An empty spec and the
// literal "24/7" both produce a schedule that is open at every instant.
func Parse(spec string) *WeekSchedule {
	ws := &WeekSchedule{}

	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "24/7" {
		for d := range ws.days {
			ws.days[d] = []interval{{0, minutesPerDay}}
		}
		return ws
	}

	for _, rule := range strings.Split(spec, ";") {
		applyRule(ws, rule)
	}

	for d := range ws.days {
		ws.days[d] = normalize(ws.days[d])
	}

	return ws
}

// applyRule tokenizes a single rule and folds it into the interval table.
func applyRule(ws *WeekSchedule, rule string) {
	parts := strings.Fields(rule)
	if len(parts) == 0 {
		return
	}

	var dayTokens, timeTokens []string
	if strings.ContainsAny(parts[0], "0123456789") {
		// No day part: the rule applies to the whole week.
		timeTokens = parts
	} else {
		dayTokens = strings.Split(parts[0], ",")
		timeTokens = parts[1:]
	}

	days := expandDays(dayTokens)

	// "off" closes the matched days outright.
	for _, tok := range timeTokens {
		if strings.EqualFold(tok, "off") {
			for _, d := range days {
				ws.days[d] = nil
			}
			return
		}
	}

	// Time ranges may be space- or comma-joined; rejoin and resplit so both
	// separators are handled uniformly.
	for _, tok := range strings.Split(strings.Join(timeTokens, ","), ",") {
		iv, ok := parseClockRange(tok)
		if !ok {
			continue
		}
		for _, d := range days {
			ws.days[d] = append(ws.days[d], iv)
		}
	}
}

// expandDays resolves day tokens into weekday indices. Ranges may wrap past
// Sunday (Sa-Tu). Unrecognized tokens are ignored; if nothing resolves, the
// rule falls back to all seven days.
func expandDays(tokens []string) []int {
	if len(tokens) == 0 {
		return allDays()
	}

	var days []int
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if a, b, isRange := strings.Cut(tok, "-"); isRange {
			ai, aok := dayIndex[a]
			bi, bok := dayIndex[b]
			if !aok || !bok {
				continue
			}
			if ai <= bi {
				for d := ai; d <= bi; d++ {
					days = append(days, d)
				}
			} else {
				for d := ai; d < 7; d++ {
					days = append(days, d)
				}
				for d := 0; d <= bi; d++ {
					days = append(days, d)
				}
			}
		} else if d, ok := dayIndex[tok]; ok {
			days = append(days, d)
		}
	}

	if len(days) == 0 {
		return allDays()
	}
	return days
}

func allDays() []int {
	return []int{0, 1, 2, 3, 4, 5, 6}
}

// parseClockRange parses a single "HH:MM-HH:MM" token. Overnight wraps are
// not supported: the range is accepted only if start < end.
func parseClockRange(tok string) (interval, bool) {
	from, to, found := strings.Cut(strings.TrimSpace(tok), "-")
	if !found {
		return interval{}, false
	}

	start, ok := parseClock(from)
	if !ok {
		return interval{}, false
	}
	end, ok := parseClock(to)
	if !ok {
		return interval{}, false
	}

	if start < 0 || start >= minutesPerDay || end < 0 || end > minutesPerDay || start >= end {
		return interval{}, false
	}
	return interval{Start: start, End: end}, true
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	hh, mm, found := strings.Cut(s, ":")
	if !found || len(mm) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, false
	}
	if hour < 0 || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// normalize sorts a day's intervals and merges adjacent or overlapping ones
// in a single sweep, so lookups scan a minimal sorted list.
func normalize(ivs []interval) []interval {
	if len(ivs) == 0 {
		return nil
	}

	// Insertion sort: interval lists are tiny.
	for i := 1; i < len(ivs); i++ {
		for j := i; j > 0 && less(ivs[j], ivs[j-1]); j-- {
			ivs[j], ivs[j-1] = ivs[j-1], ivs[j]
		}
	}

	merged := ivs[:1]
	for _, iv := range ivs[1:] {
		last := &merged[len(merged)-1]
		if iv.Start > last.End {
			merged = append(merged, iv)
		} else if iv.End > last.End {
			last.End = iv.End
		}
	}
	return merged
}

func less(a, b interval) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End < b.End
}

// Open reports whether t falls inside the schedule. The caller is expected
// to pass a time already converted to the display timezone; only the
// weekday and time-of-day of t are consulted. Interval starts are
// inclusive, ends exclusive.
func (ws *WeekSchedule) Open(t time.Time) bool {
	// time.Weekday counts Sunday=0; the interval table counts Monday=0.
	day := (int(t.Weekday()) + 6) % 7
	minute := t.Hour()*60 + t.Minute()

	for _, iv := range ws.days[day] {
		if iv.Start <= minute && minute < iv.End {
			return true
		}
	}
	return false
}
