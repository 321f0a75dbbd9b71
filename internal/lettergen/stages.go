package lettergen

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/joelkehle/hmrc-complaints/internal/llm"
)

const systemPrompt = `You are a senior UK chartered tax adviser drafting correspondence to HMRC on
behalf of a client. You write in plain British English, cite HMRC's Charter,
the Complaint Handling Guidance (CHG) and Complaints Resolution Guidance (CRG)
only where the facts support it, and never invent facts, dates or amounts.`

const stage1Instructions = `Stage 1: Fact extraction.
From the complaint analysis below, list every verifiable fact as a markdown
bullet. Lead each bullet with its date when one is known. Include amounts
exactly as written. Do not add commentary, argument or facts that are not in
the analysis.`

const stage2Instructions = `Stage 2: Structuring.
Using only the facts below, draft the body of a %s letter to %s.
Structure it with these markdown sections:
- a subject heading of the form "Re: <subject>, <case reference>"
- Background (chronology of events)
- Issues (each failure, mapped to the Charter commitment or CRG/CHG
  paragraph it breaches, where applicable)
- Impact on the client
- Resolution sought
Keep every amount and date exactly as given.`

const stage3Instructions = `Stage 3: Tone and register.
Rewrite the draft below as the final letter. It must be firm, courteous and
professional, suitable for the recipient team, and addressed from the
practice on behalf of the client. Keep the structure and every fact. Output
markdown only, with no preamble.`

type StageRunner interface {
	RunStage1(ctx context.Context, req Request) (string, error)
	RunStage2(ctx context.Context, req Request, facts string) (string, error)
	RunStage3(ctx context.Context, req Request, draft, fees string) (string, error)
}

type LLMStageRunner struct {
	caller llm.Caller
}

func NewLLMStageRunner(caller llm.Caller) *LLMStageRunner {
	return &LLMStageRunner{caller: caller}
}

func (r *LLMStageRunner) RunStage1(ctx context.Context, req Request) (string, error) {
	prompt := fmt.Sprintf("%s\n\n%s\nComplaint analysis:\n%s", stage1Instructions, caseHeader(req.Metadata), req.Analysis)
	return r.caller.Complete(ctx, systemPrompt, prompt)
}

func (r *LLMStageRunner) RunStage2(ctx context.Context, req Request, facts string) (string, error) {
	letterType := req.Metadata.LetterType
	if letterType == "" {
		letterType = "complaint"
	}
	recipient := req.Metadata.RecipientTeam
	if recipient == "" {
		recipient = "HMRC " + req.Metadata.Department
	}
	prompt := fmt.Sprintf("%s\n\n%s\nFacts:\n%s",
		fmt.Sprintf(stage2Instructions, strings.ReplaceAll(letterType, "_", " "), recipient),
		caseHeader(req.Metadata),
		facts,
	)
	return r.caller.Complete(ctx, systemPrompt, prompt)
}

func (r *LLMStageRunner) RunStage3(ctx context.Context, req Request, draft, fees string) (string, error) {
	feeLine := "Do not claim professional fees and do not introduce any monetary amount that is not already in the draft."
	if fees != "" {
		feeLine = fmt.Sprintf("Claim reimbursement of professional fees of %s (%g hours at %s per hour). Do not introduce any other monetary amount.",
			fees, req.Metadata.Hours, FormatGBP(int64(math.Round(req.Metadata.ChargeOutRate*100))))
	}
	prompt := fmt.Sprintf("%s\n%s\n\n%s\nDraft:\n%s", stage3Instructions, feeLine, caseHeader(req.Metadata), draft)
	return r.caller.Complete(ctx, systemPrompt, prompt)
}

func caseHeader(m CaseMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case reference: %s\n", m.CaseReference)
	fmt.Fprintf(&b, "HMRC department: %s\n", m.Department)
	if m.ClientName != "" {
		fmt.Fprintf(&b, "Client: %s\n", m.ClientName)
	}
	if m.TaxReference != "" {
		fmt.Fprintf(&b, "Tax reference: %s\n", m.TaxReference)
	}
	if m.PracticeName != "" {
		fmt.Fprintf(&b, "Practice: %s\n", m.PracticeName)
	}
	return b.String()
}
