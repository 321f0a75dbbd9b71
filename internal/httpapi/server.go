package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joelkehle/hmrc-complaints/internal/classify"
	"github.com/joelkehle/hmrc-complaints/internal/extract"
	"github.com/joelkehle/hmrc-complaints/internal/knowledge"
	"github.com/joelkehle/hmrc-complaints/internal/layout"
	"github.com/joelkehle/hmrc-complaints/internal/lettergen"
	"github.com/joelkehle/hmrc-complaints/internal/llm"
	"github.com/joelkehle/hmrc-complaints/internal/render"
	"github.com/joelkehle/hmrc-complaints/internal/store"
	"github.com/joelkehle/hmrc-complaints/internal/stream"
)

const maxBodyBytes = 4 << 20

type Extractor interface {
	Extract(text string) extract.Result
	ExtractHTML(html string) (extract.Result, error)
}

type LayoutMapper interface {
	Map(ctx context.Context, res extract.Result, opts layout.Options) layout.Layout
}

type Classifier interface {
	Classify(narrative string, documents ...classify.Document) classify.Classification
}

type CaseStore interface {
	SaveClassification(ctx context.Context, caseRef string, c classify.Classification) error
	GetClassification(ctx context.Context, caseRef string) (classify.Classification, error)
	SaveOverride(ctx context.Context, caseRef string, c classify.Classification) error
	Overrides(ctx context.Context, caseRef string) ([]classify.OverrideAudit, error)
}

type LetterStreamer interface {
	ServeSSE(w http.ResponseWriter, r *http.Request, req lettergen.Request) (*stream.Session, error)
}

type PDFRenderer interface {
	Render(ctx context.Context, doc render.Document) ([]byte, error)
}

type Assistant interface {
	Ask(ctx context.Context, question string, history []llm.Message) (knowledge.Answer, error)
}

// Deps wires the server. Nil components leave their routes answering 503.
type Deps struct {
	Extractor  Extractor
	Mapper     LayoutMapper
	Classifier Classifier
	Cases      CaseStore
	Letters    LetterStreamer
	PDF        PDFRenderer
	Chat       Assistant

	// LayoutDefaults seeds per-request layout options.
	LayoutDefaults layout.Options
	Logger         *slog.Logger
}

type Server struct {
	deps   Deps
	logger *slog.Logger
	clock  func() time.Time
	mux    *http.ServeMux
}

func NewServer(deps Deps) http.Handler {
	return newServer(deps)
}

func newServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, logger: logger, clock: time.Now}
	s.mux = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/extract", s.handleExtract)
	mux.HandleFunc("/v1/layout", s.handleLayout)
	mux.HandleFunc("/v1/classify", s.handleClassify)
	mux.HandleFunc("/v1/cases/", s.handleCases)
	mux.HandleFunc("/v1/letters/stream", s.handleLetterStream)
	mux.HandleFunc("/v1/letters/pdf", s.handleLetterPDF)
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

// decode reads the request body into dst and writes the error response
// itself when that fails.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	blob, err := readBody(w, r)
	if err != nil {
		writeError(w, validationError("read body: %v", err))
		return false
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		writeError(w, invalidJSON(err))
		return false
	}
	return true
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

type extractRequest struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

func (s *Server) extractFrom(req extractRequest) (extract.Result, error) {
	if strings.TrimSpace(req.HTML) != "" {
		return s.deps.Extractor.ExtractHTML(req.HTML)
	}
	return s.deps.Extractor.Extract(req.Text), nil
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	if s.deps.Extractor == nil {
		writeError(w, unavailable("extractor"))
		return
	}
	var req extractRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.extractFrom(req)
	if err != nil {
		writeError(w, validationError("parse html: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

type layoutRequest struct {
	extractRequest
	Result       *extract.Result `json:"result"`
	Title        string          `json:"title"`
	Subtitle     string          `json:"subtitle"`
	EnableImages *bool           `json:"enable_images"`
	SectionSize  int             `json:"section_size"`
	MaxListItems int             `json:"max_list_items"`
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	if s.deps.Mapper == nil {
		writeError(w, unavailable("layout mapper"))
		return
	}
	var req layoutRequest
	if !decode(w, r, &req) {
		return
	}

	var res extract.Result
	switch {
	case req.Result != nil:
		res = *req.Result
	case s.deps.Extractor == nil:
		writeError(w, unavailable("extractor"))
		return
	default:
		var err error
		if res, err = s.extractFrom(req.extractRequest); err != nil {
			writeError(w, validationError("parse html: %v", err))
			return
		}
	}

	opts := s.deps.LayoutDefaults
	opts.Title = req.Title
	opts.Subtitle = req.Subtitle
	if req.EnableImages != nil {
		opts.EnableImages = *req.EnableImages
	}
	if req.SectionSize > 0 {
		opts.SectionSize = req.SectionSize
	}
	if req.MaxListItems > 0 {
		opts.MaxListItems = req.MaxListItems
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "layout": s.deps.Mapper.Map(r.Context(), res, opts)})
}

type classifyRequest struct {
	CaseReference string              `json:"case_reference"`
	Narrative     string              `json:"narrative"`
	Documents     []classify.Document `json:"documents"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	if s.deps.Classifier == nil {
		writeError(w, unavailable("classifier"))
		return
	}
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Narrative) == "" && len(req.Documents) == 0 {
		writeError(w, validationError("narrative or documents required"))
		return
	}

	c := s.deps.Classifier.Classify(req.Narrative, req.Documents...)
	ref := strings.TrimSpace(req.CaseReference)
	if ref != "" && s.deps.Cases != nil {
		if err := s.deps.Cases.SaveClassification(r.Context(), ref, c); err != nil {
			writeError(w, err)
			return
		}
	}
	s.logger.Info("case classified",
		"case_reference", ref,
		"primary_type", string(c.PrimaryType),
		"confidence", c.Confidence,
		"low_confidence", c.LowConfidence,
	)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "case_reference": ref, "classification": c})
}

// handleCases serves /v1/cases/{ref}/classification and
// /v1/cases/{ref}/override.
func (s *Server) handleCases(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/cases/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, newError(CodeNotFound, "unknown case route"))
		return
	}
	if s.deps.Cases == nil {
		writeError(w, unavailable("case store"))
		return
	}
	ref := parts[0]
	switch parts[1] {
	case "classification":
		s.handleGetClassification(w, r, ref)
	case "override":
		s.handleOverride(w, r, ref)
	default:
		writeError(w, newError(CodeNotFound, "unknown case route"))
	}
}

func (s *Server) handleGetClassification(w http.ResponseWriter, r *http.Request, ref string) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	c, err := s.deps.Cases.GetClassification(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	trail, err := s.deps.Cases.Overrides(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"case_reference": ref,
		"classification": c,
		"overrides":      trail,
	})
}

type overrideRequest struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request, ref string) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	var req overrideRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, validationError("reason is required"))
		return
	}
	newType, err := classify.ParseCaseType(req.Type)
	if err != nil {
		writeError(w, validationError("%v", err))
		return
	}
	current, err := s.deps.Cases.GetClassification(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	updated, err := classify.Override(current, newType, req.Reason)
	if err != nil {
		writeError(w, validationError("%v", err))
		return
	}
	if err := s.deps.Cases.SaveOverride(r.Context(), ref, updated); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("classification overridden",
		"case_reference", ref,
		"from", string(current.PrimaryType),
		"to", string(newType),
	)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "case_reference": ref, "classification": updated})
}

func (s *Server) handleLetterStream(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	if s.deps.Letters == nil {
		writeError(w, unavailable("letter generator"))
		return
	}
	var req lettergen.Request
	if !decode(w, r, &req) {
		return
	}
	s.applyRouting(r.Context(), &req.Metadata)

	sess, err := s.deps.Letters.ServeSSE(w, r, req)
	if err != nil {
		writeError(w, newError(CodeInternal, err.Error()))
		return
	}
	s.logger.Info("letter stream closed", "session_id", sess.ID, "case_reference", req.Metadata.CaseReference)
}

// applyRouting fills letter type and recipient from the stored
// classification when the caller left them blank.
func (s *Server) applyRouting(ctx context.Context, md *lettergen.CaseMetadata) {
	if s.deps.Cases == nil || md.CaseReference == "" {
		return
	}
	if md.LetterType != "" && md.RecipientTeam != "" {
		return
	}
	c, err := s.deps.Cases.GetClassification(ctx, md.CaseReference)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("classification lookup failed", "case_reference", md.CaseReference, "error", err)
		}
		return
	}
	if md.LetterType == "" {
		md.LetterType = c.Routing.PrimaryLetterType
	}
	if md.RecipientTeam == "" {
		md.RecipientTeam = c.Routing.RecipientTeam
	}
}

type pdfRequest struct {
	Title         string `json:"title"`
	CaseReference string `json:"case_reference"`
	Markdown      string `json:"markdown"`
}

func (s *Server) handleLetterPDF(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	if s.deps.PDF == nil {
		writeError(w, unavailable("pdf renderer"))
		return
	}
	var req pdfRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Markdown) == "" {
		writeError(w, validationError("markdown is required"))
		return
	}
	title := req.Title
	if title == "" {
		title = "Letter " + req.CaseReference
	}
	pdf, err := s.deps.PDF.Render(r.Context(), render.Document{
		Title:         title,
		CaseReference: req.CaseReference,
		Markdown:      req.Markdown,
		GeneratedAt:   s.clock(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	if req.CaseReference != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+safeFilename(req.CaseReference)+`.pdf"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func safeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

type chatRequest struct {
	Question string        `json:"question"`
	History  []llm.Message `json:"history"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	if s.deps.Chat == nil {
		writeError(w, unavailable("knowledge chat"))
		return
	}
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	ans, err := s.deps.Chat.Ask(r.Context(), req.Question, req.History)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"answer":        ans.Answer,
		"sources":       ans.Sources,
		"context_found": ans.ContextFound,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"components": map[string]bool{
			"extract":  s.deps.Extractor != nil,
			"layout":   s.deps.Mapper != nil,
			"classify": s.deps.Classifier != nil,
			"cases":    s.deps.Cases != nil,
			"letters":  s.deps.Letters != nil,
			"pdf":      s.deps.PDF != nil,
			"chat":     s.deps.Chat != nil,
		},
	})
}
