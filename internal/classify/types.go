package classify

import (
	"fmt"
	"strings"
	"time"
)

type CaseType string

const (
	TypeComplaint       CaseType = "complaint"
	TypePenaltyAppeal   CaseType = "penalty_appeal"
	TypeMixed           CaseType = "mixed"
	TypeStatutoryReview CaseType = "statutory_review"
	TypeTribunalAppeal  CaseType = "tribunal_appeal"
)

func ParseCaseType(s string) (CaseType, error) {
	t := CaseType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeComplaint, TypePenaltyAppeal, TypeMixed, TypeStatutoryReview, TypeTribunalAppeal:
		return t, nil
	default:
		return "", fmt.Errorf("unknown case type %q", s)
	}
}

type Document struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// PenaltyDetails is only present when penalty-specific signals fire. Fields
// that could not be read from the text stay unset.
type PenaltyDetails struct {
	PenaltyType    string     `json:"penalty_type,omitempty"`
	Regime         string     `json:"regime,omitempty"`
	Amount         *float64   `json:"amount,omitempty"`
	TaxYears       []string   `json:"tax_years,omitempty"`
	NoticeDate     *time.Time `json:"notice_date,omitempty"`
	AppealDeadline *time.Time `json:"appeal_deadline,omitempty"`
	Statute        string     `json:"statute,omitempty"`
}

type Routing struct {
	PrimaryLetterType   string `json:"primary_letter_type"`
	SecondaryLetterType string `json:"secondary_letter_type,omitempty"`
	RecipientTeam       string `json:"recipient_team"`
	Pipeline            string `json:"pipeline"`
}

type OverrideAudit struct {
	From   CaseType  `json:"from"`
	To     CaseType  `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type Classification struct {
	PrimaryType   CaseType             `json:"primary_type"`
	SecondaryType *CaseType            `json:"secondary_type,omitempty"`
	Confidence    float64              `json:"confidence"`
	LowConfidence bool                 `json:"low_confidence"`
	Signals       []string             `json:"signals"`
	Scores        map[CaseType]float64 `json:"scores"`
	Penalty       *PenaltyDetails      `json:"penalty_details,omitempty"`
	Routing       Routing              `json:"routing"`
	Override      *OverrideAudit       `json:"override,omitempty"`
}
