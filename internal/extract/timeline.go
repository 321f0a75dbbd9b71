package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var timelinePattern = regexp.MustCompile(`^\s*(?:[-*•]\s+)?(\d{1,2})(?:st|nd|rd|th)?\s+([A-Za-z]+)\.?,?\s+(\d{4})\s*[:\-–—]\s*(\S.*)$`)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// extractTimeline returns entries sorted by date. Lines whose date does not
// resolve to a real calendar day are dropped.
func extractTimeline(lines []line) []TimelineEntry {
	out := []TimelineEntry{}
	for _, ln := range lines {
		entry, ok := parseTimelineLine(ln)
		if ok {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func isTimelineLine(s string) bool {
	_, ok := parseTimelineLine(line{text: s})
	return ok
}

func parseTimelineLine(ln line) (TimelineEntry, bool) {
	m := timelinePattern.FindStringSubmatch(ln.text)
	if m == nil {
		return TimelineEntry{}, false
	}
	date, ok := parseDate(m[1], m[2], m[3])
	if !ok {
		return TimelineEntry{}, false
	}
	desc := strings.TrimSpace(m[4])
	if desc == "" {
		return TimelineEntry{}, false
	}
	return TimelineEntry{Date: date, Description: desc, Offset: ln.offset}, true
}

func parseDate(dayStr, monthStr, yearStr string) (time.Time, bool) {
	month, ok := monthNames[strings.ToLower(monthStr)]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month || d.Year() != year {
		return time.Time{}, false
	}
	return d, true
}
