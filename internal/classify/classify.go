// Package classify scores a case narrative and its supporting documents
// against a weighted signal table and decides the case type, confidence,
// penalty metadata and routing.
package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// categoryOrder fixes signal evaluation order so output is deterministic.
var categoryOrder = []CaseType{TypeComplaint, TypePenaltyAppeal, TypeStatutoryReview, TypeTribunalAppeal}

// priority breaks score ties; lower wins.
var priority = map[CaseType]int{
	TypeTribunalAppeal:  0,
	TypeStatutoryReview: 1,
	TypePenaltyAppeal:   2,
	TypeComplaint:       3,
}

type compiledSignal struct {
	Signal
	re *regexp.Regexp
}

type Engine struct {
	table   WeightTable
	signals map[CaseType][]compiledSignal
}

func New(table WeightTable) (*Engine, error) {
	if table.Threshold == 0 {
		table.Threshold = DefaultThreshold
	}
	if table.LowConfidenceThreshold == 0 {
		table.LowConfidenceThreshold = DefaultLowConfidenceThreshold
	}
	if err := table.validate(); err != nil {
		return nil, err
	}
	e := &Engine{table: table, signals: make(map[CaseType][]compiledSignal, len(table.Categories))}
	for cat, signals := range table.Categories {
		for _, s := range signals {
			re, err := regexp.Compile("(?i)" + s.Pattern)
			if err != nil {
				return nil, fmt.Errorf("signal %s/%s: %w", cat, s.Name, err)
			}
			e.signals[cat] = append(e.signals[cat], compiledSignal{Signal: s, re: re})
		}
	}
	return e, nil
}

// Classify never fails; weak evidence surfaces as LowConfidence.
func (e *Engine) Classify(narrative string, documents ...Document) Classification {
	var b strings.Builder
	b.WriteString(narrative)
	for _, d := range documents {
		b.WriteString("\n\n")
		b.WriteString(d.Text)
	}
	text := b.String()

	scores := make(map[CaseType]float64, len(categoryOrder))
	signals := []string{}
	penaltyFired := false
	for _, cat := range categoryOrder {
		seen := map[string]bool{}
		var total float64
		for _, s := range e.signals[cat] {
			if seen[s.Name] || !s.re.MatchString(text) {
				continue
			}
			seen[s.Name] = true
			total += s.Weight
			signals = append(signals, string(cat)+":"+s.Name)
			if s.Penalty {
				penaltyFired = true
			}
		}
		scores[cat] = clip(total)
	}

	c := Classification{Signals: signals, Scores: scores}
	threshold := e.table.Threshold
	switch {
	case scores[TypeComplaint] >= threshold && scores[TypePenaltyAppeal] >= threshold:
		c.PrimaryType = TypeMixed
		secondary := TypeComplaint
		if scores[TypePenaltyAppeal] > scores[TypeComplaint] {
			secondary = TypePenaltyAppeal
		}
		c.SecondaryType = &secondary
		c.Confidence = clip((scores[TypeComplaint] + scores[TypePenaltyAppeal]) / 2)
	default:
		ranked := rank(scores)
		var above []CaseType
		for _, cat := range ranked {
			if scores[cat] >= threshold {
				above = append(above, cat)
			}
		}
		if len(above) == 0 {
			c.PrimaryType = TypeComplaint
			c.Confidence = scores[TypeComplaint]
			break
		}
		c.PrimaryType = above[0]
		c.Confidence = scores[above[0]]
		if len(above) > 1 {
			secondary := above[1]
			c.SecondaryType = &secondary
		}
	}
	c.LowConfidence = c.Confidence < e.table.LowConfidenceThreshold
	if penaltyFired {
		c.Penalty = extractPenalty(text)
	}
	c.Routing = RouteFor(c.PrimaryType, c.SecondaryType)
	return c
}

// rank orders categories by score descending with the priority tie-break.
func rank(scores map[CaseType]float64) []CaseType {
	out := append([]CaseType(nil), categoryOrder...)
	sort.SliceStable(out, func(i, j int) bool {
		if scores[out[i]] != scores[out[j]] {
			return scores[out[i]] > scores[out[j]]
		}
		return priority[out[i]] < priority[out[j]]
	})
	return out
}

func clip(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
