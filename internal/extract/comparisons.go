package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	connectivePattern = regexp.MustCompile(`(?i)\s+(?:vs\.?|versus|compared\s+(?:to|with)|whereas)\s+`)
	markerPrefix      = regexp.MustCompile(`^\s*(?:>\s*)?(?:[-*•]\s+|\d+[.)]\s+)?`)
)

const sideCutset = " \t,;:.!?\"'“”‘’()-–—"

func extractComparisons(text string, sentences []span) []Comparison {
	out := []Comparison{}
	for _, s := range sentences {
		sentence := text[s.start:s.end]
		loc := connectivePattern.FindStringIndex(sentence)
		if loc == nil {
			continue
		}
		left := strings.Trim(markerPrefix.ReplaceAllString(sentence[:loc[0]], ""), sideCutset)
		right := strings.Trim(sentence[loc[1]:], sideCutset)
		if left == "" || right == "" {
			continue
		}
		out = append(out, Comparison{Left: left, Right: right, Offset: s.start})
	}
	return out
}

// extractKeyPercentages deduplicates on value plus normalized sentence context;
// the first occurrence wins.
func extractKeyPercentages(text string, sentences []span) []KeyPercentage {
	out := []KeyPercentage{}
	seen := map[string]bool{}
	for _, loc := range percentPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		v, err := strconv.ParseFloat(strings.ReplaceAll(leadingNumber.FindString(raw), ",", ""), 64)
		if err != nil {
			continue
		}
		context := raw
		if s, ok := sentenceAt(sentences, loc[0]); ok {
			context = strings.TrimSpace(markerPrefix.ReplaceAllString(text[s.start:s.end], ""))
		}
		key := strconv.FormatFloat(v, 'f', -1, 64) + "|" + strings.ToLower(collapseSpaces(context))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, KeyPercentage{Value: v, Context: context, Offset: loc[0]})
	}
	return out
}
