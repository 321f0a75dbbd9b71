package classify

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultThreshold              = 0.3
	DefaultLowConfidenceThreshold = 0.5
)

// Signal is one weighted textual feature. Penalty marks signals that are
// specific enough to trigger penalty metadata extraction.
type Signal struct {
	Name    string  `yaml:"name"`
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
	Penalty bool    `yaml:"penalty,omitempty"`
}

// WeightTable is the tunable scoring model. The defaults are hand-calibrated
// against sample cases and are expected to be overridden from YAML.
type WeightTable struct {
	Threshold              float64               `yaml:"threshold"`
	LowConfidenceThreshold float64               `yaml:"low_confidence_threshold"`
	Categories             map[CaseType][]Signal `yaml:"categories"`
}

func DefaultWeights() WeightTable {
	return WeightTable{
		Threshold:              DefaultThreshold,
		LowConfidenceThreshold: DefaultLowConfidenceThreshold,
		Categories: map[CaseType][]Signal{
			TypeComplaint: {
				{Name: "formal_complaint", Pattern: `\bformal complaint\b`, Weight: 0.3},
				{Name: "complaint", Pattern: `\bcomplain(?:t|ts|ed|ing)?\b`, Weight: 0.15},
				{Name: "charter_breach", Pattern: `\b(?:hmrc\s+|taxpayers'?\s+)?charter\b`, Weight: 0.25},
				{Name: "delay", Pattern: `\b(?:unreasonabl[ey]\s+)?delay(?:s|ed)?\b`, Weight: 0.15},
				{Name: "poor_service", Pattern: `\bpoor service\b|\bunprofessional\b|\brude\b`, Weight: 0.15},
				{Name: "crg_reference", Pattern: `\bCRG\s?\d{3,4}\b`, Weight: 0.2},
				{Name: "chg_reference", Pattern: `\bCHG\s?\d{3,4}\b`, Weight: 0.2},
				{Name: "tier_escalation", Pattern: `\btier\s?(?:1|2|one|two)\b`, Weight: 0.15},
				{Name: "adjudicator", Pattern: `\badjudicator\b`, Weight: 0.2},
				{Name: "maladministration", Pattern: `\bmaladministration\b`, Weight: 0.25},
				{Name: "lost_correspondence", Pattern: `\blost (?:correspondence|post|letters?|documents?)\b|\bno response\b|\bignored\b`, Weight: 0.15},
				{Name: "professional_fees", Pattern: `\bprofessional (?:fees|costs)\b|\bwasted (?:time|costs)\b`, Weight: 0.1},
			},
			TypePenaltyAppeal: {
				{Name: "penalty", Pattern: `\bpenalt(?:y|ies)\b`, Weight: 0.2, Penalty: true},
				{Name: "appeal", Pattern: `\bappeal(?:s|ed|ing)?\b`, Weight: 0.15},
				{Name: "reasonable_excuse", Pattern: `\breasonable excuse\b`, Weight: 0.3, Penalty: true},
				{Name: "penalty_schedule", Pattern: `\b(?:paragraph|para\.?)\s*\d+[A-Z]?,?\s*(?:of\s+)?schedule\s*(?:24|41|55|56)\b|\bschedule\s*(?:24|41|55|56)\b`, Weight: 0.3, Penalty: true},
				{Name: "penalty_notice_code", Pattern: `\bSA\s?3\d{2}[A-Z]?\b|\bCH\s?\d{5}\b`, Weight: 0.2, Penalty: true},
				{Name: "late_filing_payment", Pattern: `\blate (?:filing|payment|submission)\b|\bsurcharge\b`, Weight: 0.2, Penalty: true},
				{Name: "special_circumstances", Pattern: `\bspecial (?:circumstances|reduction)\b`, Weight: 0.15, Penalty: true},
				{Name: "monetary_amount", Pattern: `£\s?\d`, Weight: 0.1},
			},
			TypeStatutoryReview: {
				{Name: "statutory_review", Pattern: `\bstatutory review\b|\bindependent review\b`, Weight: 0.35},
				{Name: "review_offer", Pattern: `\boffer (?:of|a) review\b|\breview of (?:the|that|this|hmrc'?s) decision\b`, Weight: 0.25},
				{Name: "tma_section_49", Pattern: `\bsection\s*49[A-I]\b|\bs\.?\s?49[A-I]\b`, Weight: 0.3},
				{Name: "decision_letter", Pattern: `\bview of the matter letter\b|\bdecision letter\b`, Weight: 0.15},
			},
			TypeTribunalAppeal: {
				{Name: "first_tier_tribunal", Pattern: `\bfirst[- ]tier tribunal\b|\bFTT\b|\btax chamber\b`, Weight: 0.4},
				{Name: "tribunal_notice", Pattern: `\bnotice of appeal\b|\bnotify the tribunal\b|\bappeal to (?:the )?tribunal\b`, Weight: 0.3},
				{Name: "tribunal", Pattern: `\btribunal\b`, Weight: 0.15},
			},
		},
	}
}

// LoadWeights decodes a YAML weight table. Missing thresholds and categories
// fall back to DefaultWeights.
func LoadWeights(r io.Reader) (WeightTable, error) {
	var table WeightTable
	if err := yaml.NewDecoder(r).Decode(&table); err != nil && err != io.EOF {
		return WeightTable{}, fmt.Errorf("decode weight table: %w", err)
	}
	def := DefaultWeights()
	if table.Threshold <= 0 {
		table.Threshold = def.Threshold
	}
	if table.LowConfidenceThreshold <= 0 {
		table.LowConfidenceThreshold = def.LowConfidenceThreshold
	}
	if len(table.Categories) == 0 {
		table.Categories = def.Categories
	}
	return table, nil
}

func LoadWeightsFile(path string) (WeightTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return WeightTable{}, err
	}
	defer f.Close()
	return LoadWeights(f)
}

func (t WeightTable) validate() error {
	if t.Threshold <= 0 || t.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0,1], got %v", t.Threshold)
	}
	for cat, signals := range t.Categories {
		switch cat {
		case TypeComplaint, TypePenaltyAppeal, TypeStatutoryReview, TypeTribunalAppeal:
		default:
			return fmt.Errorf("category %q cannot carry signals", cat)
		}
		for _, s := range signals {
			if s.Weight < 0 {
				return fmt.Errorf("signal %s/%s has negative weight", cat, s.Name)
			}
		}
	}
	return nil
}
