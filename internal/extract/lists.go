package extract

import (
	"regexp"
	"strings"
)

var listItemPattern = regexp.MustCompile(`^\s*(?:([-*•])|(\d+)[.)])\s+(\S.*)$`)

// extractLists groups consecutive list lines. A blank line, a non-list line or
// a dated timeline line closes the current group.
func extractLists(lines []line) []List {
	var out []List
	var cur *List
	closeGroup := func() {
		if cur != nil && len(cur.Items) > 0 {
			out = append(out, *cur)
		}
		cur = nil
	}
	for _, ln := range lines {
		m := listItemPattern.FindStringSubmatch(ln.text)
		if m == nil || isTimelineLine(ln.text) {
			closeGroup()
			continue
		}
		ordinal := m[2] != ""
		if cur == nil {
			cur = &List{Ordered: true, Offset: ln.offset}
		}
		if !ordinal {
			cur.Ordered = false
		}
		cur.Items = append(cur.Items, strings.TrimSpace(m[3]))
	}
	closeGroup()
	if out == nil {
		return []List{}
	}
	return out
}
