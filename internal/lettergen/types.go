package lettergen

import (
	"math"
	"strings"
	"time"
)

type Stage string

const (
	StageStarting  Stage = "starting"
	StageFacts     Stage = "stage1"
	StageStructure Stage = "stage2"
	StageTone      Stage = "stage3"
	StageComplete  Stage = "complete"
	StageFailed    Stage = "error"
)

// Rank orders stages so callers can enforce forward-only transitions.
func (s Stage) Rank() int {
	switch s {
	case StageStarting:
		return 0
	case StageFacts:
		return 1
	case StageStructure:
		return 2
	case StageTone:
		return 3
	case StageComplete, StageFailed:
		return 4
	default:
		return -1
	}
}

func (s Stage) Terminal() bool { return s == StageComplete || s == StageFailed }

type CaseMetadata struct {
	CaseReference string  `json:"case_reference"`
	Department    string  `json:"department"`
	LetterType    string  `json:"letter_type,omitempty"`
	RecipientTeam string  `json:"recipient_team,omitempty"`
	ClientName    string  `json:"client_name,omitempty"`
	TaxReference  string  `json:"tax_reference,omitempty"`
	PracticeName  string  `json:"practice_name,omitempty"`
	ChargeOutRate float64 `json:"charge_out_rate,omitempty"`
	Hours         float64 `json:"hours,omitempty"`
}

// feesPence is charge-out rate × hours in pence. ok is false when either
// input is missing, in which case no fee claim is made.
func (m CaseMetadata) feesPence() (int64, bool) {
	if m.ChargeOutRate <= 0 || m.Hours <= 0 {
		return 0, false
	}
	return int64(math.Round(m.ChargeOutRate * m.Hours * 100)), true
}

func (m CaseMetadata) missing() []string {
	var out []string
	if strings.TrimSpace(m.CaseReference) == "" {
		out = append(out, "case_reference")
	}
	if strings.TrimSpace(m.Department) == "" {
		out = append(out, "department")
	}
	return out
}

type Request struct {
	Analysis string       `json:"analysis"`
	Metadata CaseMetadata `json:"metadata"`
}

type Letter struct {
	CaseReference    string    `json:"case_reference"`
	LetterType       string    `json:"letter_type,omitempty"`
	Markdown         string    `json:"markdown"`
	HTML             string    `json:"html"`
	ProfessionalFees string    `json:"professional_fees,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
}
