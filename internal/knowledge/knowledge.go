// Package knowledge answers free-text questions grounded on a retrieved
// slice of the HMRC guidance corpus.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/joelkehle/hmrc-complaints/internal/llm"
)

const (
	DefaultThreshold = 0.7
	DefaultLimit     = 10
	DefaultTopK      = 5
)

const NoContextNote = "No relevant context found in the knowledge base for this question."

const baseSystemPrompt = `You are an assistant for UK accountants handling HMRC complaints, penalty
appeals and reviews. Answer precisely and practically. Cite guidance (CHG,
CRG, the HMRC Charter, legislation) only when it appears in the reference
material or you are certain of it.`

var ErrEmptyQuestion = errors.New("question is empty")

// Chunk is a read-only projection of one corpus entry.
type Chunk struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Chunk, error)
}

type Answer struct {
	Answer       string  `json:"answer"`
	Sources      []Chunk `json:"sources"`
	ContextFound bool    `json:"context_found"`
}

type Config struct {
	Threshold float64
	Limit     int
	TopK      int
}

type Service struct {
	embedder Embedder
	searcher Searcher
	chat     llm.ChatCaller
	cfg      Config
	logger   *slog.Logger
}

func NewService(embedder Embedder, searcher Searcher, chat llm.ChatCaller, cfg Config, logger *slog.Logger) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, searcher: searcher, chat: chat, cfg: cfg, logger: logger}
}

func (s *Service) Ask(ctx context.Context, question string, history []llm.Message) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	chunks, err := s.searcher.Search(ctx, vec, s.cfg.Threshold, s.cfg.Limit)
	if err != nil {
		return Answer{}, fmt.Errorf("search knowledge: %w", err)
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Similarity > chunks[j].Similarity })

	system := buildSystemPrompt(chunks)
	reply, err := s.chat.Chat(ctx, system, history, question)
	if err != nil {
		return Answer{}, err
	}

	sources := chunks
	if len(sources) > s.cfg.TopK {
		sources = sources[:s.cfg.TopK]
	}
	if sources == nil {
		sources = []Chunk{}
	}
	s.logger.Debug("knowledge answer", "chunks", len(chunks), "sources", len(sources))
	return Answer{Answer: strings.TrimSpace(reply), Sources: sources, ContextFound: len(chunks) > 0}, nil
}

func buildSystemPrompt(chunks []Chunk) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	b.WriteString("\n\n")
	if len(chunks) == 0 {
		b.WriteString(NoContextNote)
		b.WriteString(" Say so where it matters and flag any uncertainty.")
		return b.String()
	}
	b.WriteString("Reference material:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, c.Title)
		if c.Category != "" {
			fmt.Fprintf(&b, " (%s)", c.Category)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(c.Content))
		b.WriteString("\n")
	}
	return b.String()
}
