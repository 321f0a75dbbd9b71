package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type statKind int

const (
	kindCurrency statKind = iota
	kindPercent
	kindDuration
	kindBare
)

var (
	currencyPattern = regexp.MustCompile(`(?i)£\s?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?(?:\s?(?:bn|billion|million|m|k)\b)?`)
	percentPattern  = regexp.MustCompile(`(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?\s?%`)
	durationPattern = regexp.MustCompile(`(?i)(?:\d{1,3}(?:,\d{3})+|\d+)\s+(?:working\s+)?(?:days?|weeks?|months?|years?|hours?)\b`)
	barePattern     = regexp.MustCompile(`\b(?:\d{1,3}(?:,\d{3})+|\d{4,})(?:\.\d+)?\b`)
	leadingNumber   = regexp.MustCompile(`(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?`)
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "with": true, "and": true, "or": true, "by": true, "from": true,
	"was": true, "were": true, "is": true, "are": true, "be": true, "been": true, "than": true,
	"about": true, "around": true, "over": true, "under": true, "nearly": true, "almost": true,
	"some": true, "only": true, "just": true, "per": true, "as": true, "into": true, "its": true,
	"their": true, "while": true, "after": true, "within": true, "up": true, "more": true,
}

type candidate struct {
	start, end int
	kind       statKind
}

func (e *Extractor) extractStats(text string) []Stat {
	var cands []candidate
	add := func(re *regexp.Regexp, kind statKind) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if kind == kindBare && e.skipBare(text[loc[0]:loc[1]]) {
				continue
			}
			cands = append(cands, candidate{start: loc[0], end: loc[1], kind: kind})
		}
	}
	add(currencyPattern, kindCurrency)
	add(percentPattern, kindPercent)
	add(durationPattern, kindDuration)
	add(barePattern, kindBare)

	accepted := resolveLongestLeftmost(cands)
	out := make([]Stat, 0, len(accepted))
	prevEnd := 0
	for i, c := range accepted {
		raw := text[c.start:c.end]
		value, unit, ok := parseStat(raw, c.kind)
		if !ok {
			continue
		}
		nextStart := len(text)
		if i+1 < len(accepted) {
			nextStart = accepted[i+1].start
		}
		out = append(out, Stat{
			Label:  e.labelFor(text, c.start, c.end, prevEnd, nextStart),
			Value:  value,
			Unit:   unit,
			Raw:    raw,
			Offset: c.start,
		})
		prevEnd = c.end
	}
	return out
}

// resolveLongestLeftmost keeps, among overlapping matches, the one that
// starts first and, for equal starts, the longest.
func resolveLongestLeftmost(cands []candidate) []candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		return cands[i].end-cands[i].start > cands[j].end-cands[j].start
	})
	var out []candidate
	lastEnd := -1
	for _, c := range cands {
		if c.start < lastEnd {
			continue
		}
		out = append(out, c)
		lastEnd = c.end
	}
	return out
}

// skipBare drops small numbers and four-digit years.
func (e *Extractor) skipBare(raw string) bool {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return true
	}
	if v < float64(e.cfg.MinLargeInteger) {
		return true
	}
	if len(raw) == 4 && v >= 1900 && v <= 2099 {
		return true
	}
	return false
}

func parseStat(raw string, kind statKind) (float64, string, bool) {
	num := leadingNumber.FindString(raw)
	if num == "" {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, "", false
	}
	switch kind {
	case kindCurrency:
		lower := strings.ToLower(raw)
		switch {
		case strings.HasSuffix(lower, "bn") || strings.HasSuffix(lower, "billion"):
			v *= 1e9
		case strings.HasSuffix(lower, "m") || strings.HasSuffix(lower, "million"):
			v *= 1e6
		case strings.HasSuffix(lower, "k"):
			v *= 1e3
		}
		return v, "£", true
	case kindPercent:
		return v, "%", true
	case kindDuration:
		fields := strings.Fields(strings.ToLower(raw))
		unit := fields[len(fields)-1]
		if !strings.HasSuffix(unit, "s") {
			unit += "s"
		}
		if len(fields) == 3 {
			unit = "working " + unit
		}
		return v, unit, true
	default:
		return v, "", true
	}
}

// labelFor takes the nearest preceding phrase inside the same clause, falling
// back to the phrase that follows the number.
func (e *Extractor) labelFor(text string, start, end, prevEnd, nextStart int) string {
	from := prevEnd
	if idx := strings.LastIndexAny(text[from:start], ".,;:!?\n()"); idx >= 0 {
		from += idx + 1
	}
	words := labelWords(text[from:start])
	if len(words) > e.cfg.LabelWindow {
		words = words[len(words)-e.cfg.LabelWindow:]
	}
	if label := strings.Join(trimStopWords(words), " "); label != "" {
		return label
	}

	to := nextStart
	if idx := strings.IndexAny(text[end:to], ".,;:!?\n()"); idx >= 0 {
		to = end + idx
	}
	words = labelWords(text[end:to])
	if len(words) > e.cfg.LabelWindow {
		words = words[:e.cfg.LabelWindow]
	}
	return strings.Join(trimStopWords(words), " ")
}

func labelWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, `"'“”‘’*_`)
		if w != "" && utf8.ValidString(w) && strings.IndexFunc(w, isWordRune) >= 0 {
			out = append(out, w)
		}
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func trimStopWords(words []string) []string {
	for len(words) > 0 && stopWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	for len(words) > 0 && stopWords[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return words
}
