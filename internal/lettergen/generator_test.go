package lettergen

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/joelkehle/hmrc-complaints/internal/llm"
)

type mockRunner struct {
	s1, s2, s3 string
	err        map[Stage]error
	block      map[Stage]bool
	calls      map[Stage]int
	gotFacts   string
	gotDraft   string
	gotFees    string
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		s1:    baseFacts,
		s2:    baseDraft,
		s3:    baseLetter,
		err:   map[Stage]error{},
		block: map[Stage]bool{},
		calls: map[Stage]int{},
	}
}

func (m *mockRunner) run(ctx context.Context, stage Stage, out string) (string, error) {
	m.calls[stage]++
	if m.block[stage] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return out, m.err[stage]
}

func (m *mockRunner) RunStage1(ctx context.Context, _ Request) (string, error) {
	return m.run(ctx, StageFacts, m.s1)
}

func (m *mockRunner) RunStage2(ctx context.Context, _ Request, facts string) (string, error) {
	m.gotFacts = facts
	return m.run(ctx, StageStructure, m.s2)
}

func (m *mockRunner) RunStage3(ctx context.Context, _ Request, draft, fees string) (string, error) {
	m.gotDraft = draft
	m.gotFees = fees
	return m.run(ctx, StageTone, m.s3)
}

const baseFacts = `- 3 March 2024: HMRC issued a late filing penalty of £1,300.
- 10 April 2024: the appeal was sent and no response followed.`

const baseDraft = `## Re: Formal complaint, ABC-1

### Background
HMRC issued a penalty of £1,300 on 3 March 2024. Our appeal of 10 April 2024 went unanswered.

### Resolution sought
Cancellation of the penalty and reimbursement of professional fees.`

const baseLetter = `## Re: Formal complaint, ABC-1

Dear Sir or Madam,

HMRC issued a penalty of £1,300 on 3 March 2024 and has not answered our appeal of 10 April 2024.
We ask that the penalty is cancelled and that our professional fees of £450.00 (3 hours at £150.00 per hour) are reimbursed.

Yours faithfully,`

func baseRequest() Request {
	return Request{
		Analysis: "HMRC issued a penalty of £1,300 and then ignored two letters over six months.",
		Metadata: CaseMetadata{
			CaseReference: "ABC-1",
			Department:    "Self Assessment",
			LetterType:    "complaint_tier1",
			ChargeOutRate: 150,
			Hours:         3,
		},
	}
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type progressEvent struct {
	Stage   Stage
	Percent int
}

func TestGenerateSuccess(t *testing.T) {
	r := newMockRunner()
	g := NewGenerator(r, Config{}, quietLogger())
	var events []progressEvent
	var outputs []Stage
	letter, err := g.Generate(context.Background(), baseRequest(),
		WithProgress(func(stage Stage, percent int, _ string) {
			events = append(events, progressEvent{stage, percent})
		}),
		WithStageOutput(func(stage Stage, _ string) { outputs = append(outputs, stage) }),
	)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []progressEvent{
		{StageStarting, 0},
		{StageFacts, 10}, {StageFacts, 33},
		{StageStructure, 40}, {StageStructure, 66},
		{StageTone, 70}, {StageTone, 95},
		{StageComplete, 100},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Stage{StageFacts, StageStructure, StageTone}, outputs); diff != "" {
		t.Fatalf("stage outputs mismatch:\n%s", diff)
	}
	if r.gotFacts != baseFacts || r.gotDraft != baseDraft {
		t.Fatal("stage outputs were not chained")
	}
	if r.gotFees != "£450.00" || letter.ProfessionalFees != "£450.00" {
		t.Fatalf("unexpected fees %q/%q", r.gotFees, letter.ProfessionalFees)
	}
	if letter.Markdown != baseLetter {
		t.Fatalf("unexpected markdown: %s", letter.Markdown)
	}
	if !strings.Contains(letter.HTML, `data-letter-subject="true"`) {
		t.Fatalf("expected rendered html, got: %s", letter.HTML)
	}
	if letter.CaseReference != "ABC-1" || letter.GeneratedAt.IsZero() {
		t.Fatalf("unexpected letter metadata: %+v", letter)
	}
}

func TestGenerateProgressIsMonotonic(t *testing.T) {
	g := NewGenerator(newMockRunner(), Config{}, quietLogger())
	last, lastRank := -1, -1
	_, err := g.Generate(context.Background(), baseRequest(), WithProgress(func(stage Stage, percent int, _ string) {
		if percent < last || stage.Rank() < lastRank {
			t.Fatalf("progress went backwards: %s %d after %d", stage, percent, last)
		}
		last, lastRank = percent, stage.Rank()
	}))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if last != 100 {
		t.Fatalf("expected final 100, got %d", last)
	}
}

func TestGenerateStage2EmptyOutputFails(t *testing.T) {
	r := newMockRunner()
	r.s2 = "```\n```"
	g := NewGenerator(r, Config{}, quietLogger())
	var last progressEvent
	letter, err := g.Generate(context.Background(), baseRequest(), WithProgress(func(stage Stage, percent int, _ string) {
		last = progressEvent{stage, percent}
	}))
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Stage != StageStructure {
		t.Fatalf("expected stage2 generation error, got %v", err)
	}
	if !errors.Is(err, ErrEmptyOutput) {
		t.Fatalf("expected empty output cause, got %v", err)
	}
	if r.calls[StageTone] != 0 {
		t.Fatal("stage3 must not run after stage2 failure")
	}
	if letter.Markdown != "" || letter.HTML != "" {
		t.Fatal("expected no partial letter")
	}
	if last != (progressEvent{StageStructure, 40}) {
		t.Fatalf("unexpected last progress %+v", last)
	}
}

func TestGenerateShortOutputFails(t *testing.T) {
	r := newMockRunner()
	r.s1 = "too short"
	_, err := NewGenerator(r, Config{}, quietLogger()).Generate(context.Background(), baseRequest())
	if !errors.Is(err, ErrOutputTooShort) {
		t.Fatalf("expected too-short error, got %v", err)
	}
	if r.calls[StageStructure] != 0 {
		t.Fatal("stage2 must not run")
	}
}

func TestGenerateMissingMetadataMakesNoCalls(t *testing.T) {
	r := newMockRunner()
	req := baseRequest()
	req.Metadata.Department = " "
	events := 0
	_, err := NewGenerator(r, Config{}, quietLogger()).Generate(context.Background(), req,
		WithProgress(func(Stage, int, string) { events++ }))
	if !errors.Is(err, ErrMissingMetadata) {
		t.Fatalf("expected missing metadata, got %v", err)
	}
	if !strings.Contains(err.Error(), "department") {
		t.Fatalf("expected field name in error, got %v", err)
	}
	if len(r.calls) != 0 || events != 0 {
		t.Fatalf("expected no calls and no progress, got %v / %d", r.calls, events)
	}
}

func TestGenerateProviderErrorIsStageTagged(t *testing.T) {
	r := newMockRunner()
	r.err[StageFacts] = &llm.ProviderError{Provider: llm.ProviderAnthropic, Status: 503, Class: llm.FailureServer, Err: errors.New("overloaded")}
	_, err := NewGenerator(r, Config{}, quietLogger()).Generate(context.Background(), baseRequest())
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Stage != StageFacts {
		t.Fatalf("expected stage1 error, got %v", err)
	}
	var perr *llm.ProviderError
	if !errors.As(err, &perr) || perr.Status != 503 {
		t.Fatalf("expected provider error in chain, got %v", err)
	}
	if r.calls[StageFacts] != 1 {
		t.Fatalf("expected exactly one attempt, got %d", r.calls[StageFacts])
	}
}

func TestGenerateTimeout(t *testing.T) {
	r := newMockRunner()
	r.block[StageStructure] = true
	g := NewGenerator(r, Config{Budget: 20 * time.Millisecond}, quietLogger())
	_, err := g.Generate(context.Background(), baseRequest())
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Stage != StageStructure {
		t.Fatalf("expected stage2 failure, got %v", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if r.calls[StageTone] != 0 {
		t.Fatal("stage3 must not run after timeout")
	}
}

func TestGenerateCancelledBetweenStages(t *testing.T) {
	r := newMockRunner()
	cancelled := false
	_, err := NewGenerator(r, Config{}, quietLogger()).Generate(context.Background(), baseRequest(),
		WithStageOutput(func(stage Stage, _ string) {
			if stage == StageFacts {
				cancelled = true
			}
		}),
		WithCancelCheck(func() bool { return cancelled }),
	)
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Stage != StageStructure || !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected cancellation before stage2, got %v", err)
	}
	if r.calls[StageFacts] != 1 || r.calls[StageStructure] != 0 {
		t.Fatalf("unexpected calls %v", r.calls)
	}
}

func TestGenerateRejectsInventedAmounts(t *testing.T) {
	r := newMockRunner()
	r.s3 = baseLetter + "\nWe also claim compensation of £9,999.00 for distress."
	_, err := NewGenerator(r, Config{}, quietLogger()).Generate(context.Background(), baseRequest())
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Stage != StageTone {
		t.Fatalf("expected stage3 failure, got %v", err)
	}
	var cerr *CurrencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected currency error, got %v", err)
	}
	if diff := cmp.Diff([]string{"£9,999.00"}, cerr.Amounts); diff != "" {
		t.Fatalf("amounts mismatch:\n%s", diff)
	}
}

func TestGenerateWithoutFeesRejectsFeeClaims(t *testing.T) {
	r := newMockRunner()
	req := baseRequest()
	req.Metadata.ChargeOutRate = 0
	_, err := NewGenerator(r, Config{}, quietLogger()).Generate(context.Background(), req)
	var cerr *CurrencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected currency error without a charge-out rate, got %v", err)
	}
	if r.gotFees != "" {
		t.Fatalf("expected no fees passed to stage3, got %q", r.gotFees)
	}
}

func TestGenerateStripsFences(t *testing.T) {
	r := newMockRunner()
	r.s3 = "```markdown\n" + baseLetter + "\n```"
	letter, err := NewGenerator(r, Config{}, quietLogger()).Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if letter.Markdown != baseLetter {
		t.Fatalf("expected fences stripped, got: %s", letter.Markdown)
	}
}

func TestFormatGBP(t *testing.T) {
	cases := map[int64]string{
		0:         "£0.00",
		5:         "£0.05",
		45000:     "£450.00",
		123456:    "£1,234.56",
		100000000: "£1,000,000.00",
	}
	for in, want := range cases {
		if got := FormatGBP(in); got != want {
			t.Fatalf("FormatGBP(%d) = %q, want %q", in, got, want)
		}
	}
}
