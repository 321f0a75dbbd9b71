// Package stream runs letter generation sessions and relays their progress
// to a remote subscriber over server-sent events.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joelkehle/hmrc-complaints/internal/lettergen"
	"github.com/joelkehle/hmrc-complaints/internal/llm"
)

type Generator interface {
	Generate(ctx context.Context, req lettergen.Request, opts ...lettergen.Option) (lettergen.Letter, error)
}

type Gateway struct {
	gen    Generator
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewGateway(gen Generator, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{gen: gen, logger: logger}
}

// Start launches one session. The pipeline runs on a context detached from
// ctx so that a disconnect never aborts an LLM call mid-flight; deadlines
// come from the generator's own budget.
func (g *Gateway) Start(ctx context.Context, req lettergen.Request) *Session {
	s := newSession(uuid.NewString())
	runCtx := context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer s.close()
		g.run(runCtx, s, req)
	}()
	return s
}

// Wait blocks until every started session has finished.
func (g *Gateway) Wait() { g.wg.Wait() }

func (g *Gateway) run(ctx context.Context, s *Session, req lettergen.Request) {
	log := g.logger.With("session_id", s.ID, "case_reference", req.Metadata.CaseReference)
	log.Info("letter session started")

	letter, err := g.gen.Generate(ctx, req,
		lettergen.WithProgress(s.progress),
		lettergen.WithCancelCheck(s.Cancelled),
		lettergen.WithStageOutput(s.recordOutput),
	)
	if err != nil {
		data := errorData(s.ID, err)
		s.finish(Event{Type: EventError, Data: data})
		if s.Cancelled() {
			log.Info("letter session cancelled", "stage", data.Stage)
			return
		}
		log.Warn("letter session failed", "stage", data.Stage, "code", data.Code, "error", err)
		return
	}
	s.finish(Event{Type: EventComplete, Data: CompleteData{SessionID: s.ID, Letter: letter}})
	if s.Cancelled() {
		log.Info("letter completed after subscriber left")
		return
	}
	log.Info("letter session complete")
}

func errorData(sessionID string, err error) ErrorData {
	data := ErrorData{SessionID: sessionID, Code: "generation_failed", Message: err.Error()}
	var gerr *lettergen.GenerationError
	if errors.As(err, &gerr) {
		data.Stage = string(gerr.Stage)
	}
	var perr *llm.ProviderError
	switch {
	case errors.Is(err, lettergen.ErrCancelled):
		data.Code = "cancelled"
	case errors.Is(err, lettergen.ErrTimeout):
		data.Code = "timeout"
	case errors.Is(err, lettergen.ErrMissingMetadata), errors.Is(err, lettergen.ErrEmptyAnalysis):
		data.Code = "invalid_request"
	case errors.As(err, &perr):
		data.Code = "provider_" + perr.Class.String()
	}
	return data
}
