// Package lettergen turns a complaint analysis and case metadata into a
// finished letter through three sequential LLM stages.
package lettergen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/hmrc-complaints/internal/llm"
	"github.com/joelkehle/hmrc-complaints/internal/render"
)

const (
	DefaultBudget = 5 * time.Minute

	MinFactsLength  = 40
	MinDraftLength  = 120
	MinLetterLength = 120
)

const tracerName = "github.com/joelkehle/hmrc-complaints/internal/lettergen"

type ProgressFn func(stage Stage, percent int, message string)

type Option func(*runOptions)

type runOptions struct {
	progress    ProgressFn
	cancelled   func() bool
	stageOutput func(stage Stage, output string)
}

func WithProgress(fn ProgressFn) Option {
	return func(o *runOptions) { o.progress = fn }
}

// WithCancelCheck is polled between stages; an in-flight stage always runs
// to completion.
func WithCancelCheck(fn func() bool) Option {
	return func(o *runOptions) { o.cancelled = fn }
}

// WithStageOutput receives each validated stage output.
func WithStageOutput(fn func(stage Stage, output string)) Option {
	return func(o *runOptions) { o.stageOutput = fn }
}

func (o *runOptions) emit(stage Stage, percent int, message string) {
	if o.progress != nil {
		o.progress(stage, percent, message)
	}
}

type Config struct {
	Budget time.Duration
}

type Generator struct {
	runner StageRunner
	budget time.Duration
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewGenerator(runner StageRunner, cfg Config, logger *slog.Logger) *Generator {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		runner: runner,
		budget: cfg.Budget,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
}

type step struct {
	stage    Stage
	label    string
	startPct int
	donePct  int
	minLen   int
}

var (
	stepFacts     = step{stage: StageFacts, label: "Stage 1: Extracting case facts", startPct: 10, donePct: 33, minLen: MinFactsLength}
	stepStructure = step{stage: StageStructure, label: "Stage 2: Structuring the letter", startPct: 40, donePct: 66, minLen: MinDraftLength}
	stepTone      = step{stage: StageTone, label: "Stage 3: Applying tone and register", startPct: 70, donePct: 95, minLen: MinLetterLength}
)

func (g *Generator) Generate(ctx context.Context, req Request, opts ...Option) (Letter, error) {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if missing := req.Metadata.missing(); len(missing) > 0 {
		return Letter{}, fmt.Errorf("%w: %s", ErrMissingMetadata, strings.Join(missing, ", "))
	}
	if strings.TrimSpace(req.Analysis) == "" {
		return Letter{}, ErrEmptyAnalysis
	}

	ctx, span := g.tracer.Start(ctx, "lettergen.generate", trace.WithAttributes(
		attribute.String("case.reference", req.Metadata.CaseReference),
		attribute.String("case.letter_type", req.Metadata.LetterType),
	))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, g.budget)
	defer cancel()

	started := g.now()
	fees := ""
	if pence, ok := req.Metadata.feesPence(); ok {
		fees = FormatGBP(pence)
	}
	allowed := allowedAmounts(req)

	o.emit(StageStarting, 0, "Preparing letter generation")

	facts, err := g.runStep(ctx, &o, stepFacts, func(ctx context.Context) (string, error) {
		return g.runner.RunStage1(ctx, req)
	}, nil)
	if err != nil {
		return g.fail(span, req, err)
	}
	draft, err := g.runStep(ctx, &o, stepStructure, func(ctx context.Context) (string, error) {
		return g.runner.RunStage2(ctx, req, facts)
	}, nil)
	if err != nil {
		return g.fail(span, req, err)
	}
	final, err := g.runStep(ctx, &o, stepTone, func(ctx context.Context) (string, error) {
		return g.runner.RunStage3(ctx, req, draft, fees)
	}, func(out string) error { return validateAmounts(out, allowed) })
	if err != nil {
		return g.fail(span, req, err)
	}

	html, err := render.HTML(final)
	if err != nil {
		return g.fail(span, req, &GenerationError{Stage: StageTone, Err: err})
	}
	letter := Letter{
		CaseReference:    req.Metadata.CaseReference,
		LetterType:       req.Metadata.LetterType,
		Markdown:         final,
		HTML:             html,
		ProfessionalFees: fees,
		GeneratedAt:      g.now().UTC(),
	}
	o.emit(StageComplete, 100, "Letter ready")
	g.logger.Info("letter generated",
		"case_reference", req.Metadata.CaseReference,
		"letter_type", req.Metadata.LetterType,
		"duration", g.now().Sub(started).Round(time.Millisecond),
	)
	return letter, nil
}

func (g *Generator) runStep(ctx context.Context, o *runOptions, s step, run func(context.Context) (string, error), check func(string) error) (string, error) {
	if o.cancelled != nil && o.cancelled() {
		return "", &GenerationError{Stage: s.stage, Err: ErrCancelled}
	}
	if ctx.Err() != nil {
		return "", g.stageError(ctx, s.stage, ctx.Err())
	}
	o.emit(s.stage, s.startPct, s.label+"...")

	stageCtx, span := g.tracer.Start(ctx, "lettergen."+string(s.stage))
	defer span.End()
	started := g.now()

	out, err := run(stageCtx)
	if err == nil {
		out = llm.StripCodeFences(out)
		switch {
		case out == "":
			err = ErrEmptyOutput
		case len(out) < s.minLen:
			err = fmt.Errorf("%w: %d < %d", ErrOutputTooShort, len(out), s.minLen)
		case check != nil:
			err = check(out)
		}
	}
	if err != nil {
		gerr := g.stageError(ctx, s.stage, err)
		span.RecordError(gerr)
		span.SetStatus(codes.Error, gerr.Error())
		return "", gerr
	}
	span.SetAttributes(attribute.Int("output.length", len(out)))
	o.emit(s.stage, s.donePct, fmt.Sprintf("%s complete in %s", strings.SplitN(s.label, ":", 2)[0], g.now().Sub(started).Round(time.Millisecond)))
	if o.stageOutput != nil {
		o.stageOutput(s.stage, out)
	}
	return out, nil
}

func (g *Generator) stageError(ctx context.Context, stage Stage, err error) *GenerationError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, g.budget, err)
	}
	return &GenerationError{Stage: stage, Err: err}
}

func (g *Generator) fail(span trace.Span, req Request, err error) (Letter, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	stage := Stage("")
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		stage = gerr.Stage
	}
	g.logger.Warn("letter generation failed",
		"case_reference", req.Metadata.CaseReference,
		"stage", string(stage),
		"error", err,
	)
	return Letter{}, err
}
