// Package extract pulls structured entities out of article text with
// deterministic rules. Nothing here performs I/O or calls a model.
package extract

import (
	"strings"
)

type Extractor struct {
	cfg Config
}

func New(cfg Config) *Extractor {
	if cfg.LabelWindow <= 0 {
		cfg.LabelWindow = DefaultLabelWindow
	}
	if cfg.MinQuoteLength <= 0 {
		cfg.MinQuoteLength = DefaultMinQuoteLength
	}
	if cfg.MinLargeInteger <= 0 {
		cfg.MinLargeInteger = DefaultMinLargeInteger
	}
	return &Extractor{cfg: cfg}
}

// Extract never fails: categories with no matches come back as empty slices.
func (e *Extractor) Extract(text string) Result {
	res := emptyResult()
	text = normalize(text)
	if strings.TrimSpace(text) == "" {
		return res
	}
	lines := splitLines(text)
	sentences := splitSentences(text)

	res.Stats = e.extractStats(text)
	res.Quotes = e.extractQuotes(text, lines)
	res.Timeline = extractTimeline(lines)
	res.Lists = extractLists(lines)
	res.Comparisons = extractComparisons(text, sentences)
	res.KeyPercentages = extractKeyPercentages(text, sentences)
	return res
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

type line struct {
	text   string
	offset int
}

func splitLines(text string) []line {
	var out []line
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			out = append(out, line{text: text[start:i], offset: start})
			start = i + 1
		}
	}
	return out
}

type span struct {
	start, end int
}

// splitSentences cuts on newlines and on . ! ? followed by whitespace, except
// after the "vs." abbreviation.
func splitSentences(text string) []span {
	var out []span
	start := 0
	flush := func(end int) {
		s, e := start, end
		for s < e && isSpace(text[s]) {
			s++
		}
		for e > s && isSpace(text[e-1]) {
			e--
		}
		if e > s {
			out = append(out, span{start: s, end: e})
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			flush(i)
			start = i + 1
			continue
		}
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(text) && !isSpace(text[i+1]) {
			continue
		}
		if c == '.' && endsWithFold(text[start:i], "vs") {
			continue
		}
		flush(i + 1)
		start = i + 1
	}
	flush(len(text))
	return out
}

func sentenceAt(sentences []span, offset int) (span, bool) {
	for _, s := range sentences {
		if offset >= s.start && offset < s.end {
			return s, true
		}
	}
	return span{}, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\v' || c == '\f'
}

func endsWithFold(s, suffix string) bool {
	s = strings.TrimRight(s, " \t")
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	if !strings.EqualFold(tail, suffix) {
		return false
	}
	if len(s) == len(suffix) {
		return true
	}
	prev := s[len(s)-len(suffix)-1]
	return !isWordByte(prev)
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
