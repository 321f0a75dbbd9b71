package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	straightQuotePattern = regexp.MustCompile(`"([^"\n]+)"`)
	curlyQuotePattern    = regexp.MustCompile(`“([^”\n]+)”`)
	dashAttribution      = regexp.MustCompile(`^[ \t]*[,.]?[ \t]*(?:—|–|--?)[ \t]*((?:Dr\.?\s+|Mr\.?\s+|Mrs\.?\s+|Ms\.?\s+)?[A-Z][\p{L}'’.-]*(?:[ \t]+[A-Z][\p{L}'’.-]*){0,3})`)
	saidAttribution      = regexp.MustCompile(`^[ \t]*[,.]?[ \t]*(?i:said)[ \t]+((?:the[ \t]+)?[A-Z][\p{L}'’.-]*(?:[ \t]+[A-Z][\p{L}'’.-]*){0,3})`)
	trailingDashName     = regexp.MustCompile(`\s+(?:—|–|--)\s*([A-Z][\p{L}'’.-]*(?:[ \t]+[A-Z][\p{L}'’.-]*){0,3})\s*$`)
	standaloneDashName   = regexp.MustCompile(`^\s*(?:—|–|--?)\s*([A-Z][\p{L}'’.-]*(?:[ \t]+[A-Z][\p{L}'’.-]*){0,3})\s*$`)
)

func (e *Extractor) extractQuotes(text string, lines []line) []Quote {
	blocks, regions := e.blockQuotes(lines)
	out := append([]Quote{}, blocks...)

	inBlock := func(pos int) bool {
		for _, r := range regions {
			if pos >= r.start && pos < r.end {
				return true
			}
		}
		return false
	}
	for _, re := range []*regexp.Regexp{straightQuotePattern, curlyQuotePattern} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if inBlock(m[0]) {
				continue
			}
			body := cleanQuote(text[m[2]:m[3]])
			if utf8.RuneCountInString(body) < e.cfg.MinQuoteLength {
				continue
			}
			out = append(out, Quote{
				Text:        body,
				Attribution: attributionAfter(text[m[1]:]),
				Offset:      m[0],
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// blockQuotes joins runs of "> " lines. An attribution may sit at the end of
// the quoted text or on the line right after the block.
func (e *Extractor) blockQuotes(lines []line) ([]Quote, []span) {
	var quotes []Quote
	var regions []span
	for i := 0; i < len(lines); i++ {
		if !isBlockQuoteLine(lines[i].text) {
			continue
		}
		start := lines[i].offset
		var parts []string
		j := i
		for ; j < len(lines) && isBlockQuoteLine(lines[j].text); j++ {
			parts = append(parts, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[j].text), ">")))
		}
		end := lines[j-1].offset + len(lines[j-1].text)
		body := collapseSpaces(strings.Join(parts, " "))
		attribution := ""
		if m := trailingDashName.FindStringSubmatchIndex(body); m != nil {
			attribution = body[m[2]:m[3]]
			body = strings.TrimSpace(body[:m[0]])
		} else if j < len(lines) {
			if m := standaloneDashName.FindStringSubmatch(lines[j].text); m != nil {
				attribution = m[1]
				end = lines[j].offset + len(lines[j].text)
				j++
			}
		}
		regions = append(regions, span{start: start, end: end})
		body = cleanQuote(body)
		if utf8.RuneCountInString(body) >= e.cfg.MinQuoteLength {
			quotes = append(quotes, Quote{Text: body, Attribution: strings.TrimRight(attribution, "."), Offset: start})
		}
		i = j - 1
	}
	return quotes, regions
}

func isBlockQuoteLine(s string) bool {
	return strings.HasPrefix(strings.TrimLeft(s, " \t"), ">")
}

func cleanQuote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"“”`)
	s = strings.TrimRight(s, ",")
	return strings.TrimSpace(s)
}

func attributionAfter(rest string) string {
	for _, re := range []*regexp.Regexp{dashAttribution, saidAttribution} {
		if m := re.FindStringSubmatch(rest); m != nil {
			return strings.TrimRight(strings.TrimSpace(m[1]), ".,")
		}
	}
	return ""
}
