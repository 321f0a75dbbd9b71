package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"

	"github.com/joelkehle/hmrc-complaints/internal/llm"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeEmbedder struct {
	calls []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

type fakeSearcher struct {
	chunks       []Chunk
	gotThreshold float64
	gotLimit     int
	gotEmbedding []float32
}

func (f *fakeSearcher) Search(_ context.Context, embedding []float32, threshold float64, limit int) ([]Chunk, error) {
	f.gotEmbedding = embedding
	f.gotThreshold = threshold
	f.gotLimit = limit
	return f.chunks, nil
}

type fakeChat struct {
	calls   int
	system  string
	history []llm.Message
	reply   string
	err     error
}

func (f *fakeChat) Chat(_ context.Context, system string, history []llm.Message, _ string) (string, error) {
	f.calls++
	f.system = system
	f.history = history
	return f.reply, f.err
}

func chunks(n int) []Chunk {
	out := make([]Chunk, n)
	for i := range out {
		out[i] = Chunk{
			ID:         fmt.Sprintf("c%d", i),
			Title:      fmt.Sprintf("Guidance %d", i),
			Category:   "CRG",
			Content:    fmt.Sprintf("content %d", i),
			Similarity: 0.71 + float64(i)*0.02,
		}
	}
	return out
}

func TestAskUsesRetrievedContext(t *testing.T) {
	emb := &fakeEmbedder{}
	search := &fakeSearcher{chunks: chunks(7)}
	chat := &fakeChat{reply: "  Use CRG 3250 for fee claims.  "}
	svc := NewService(emb, search, chat, Config{}, quietLogger())

	history := []llm.Message{{Role: llm.RoleUser, Content: "hi"}, {Role: llm.RoleAssistant, Content: "hello"}}
	ans, err := svc.Ask(context.Background(), " Can my client claim costs? ", history)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if search.gotThreshold != DefaultThreshold || search.gotLimit != DefaultLimit {
		t.Fatalf("unexpected search params %v/%d", search.gotThreshold, search.gotLimit)
	}
	if diff := cmp.Diff([]string{"Can my client claim costs?"}, emb.calls); diff != "" {
		t.Fatalf("embed calls mismatch:\n%s", diff)
	}
	if chat.calls != 1 {
		t.Fatalf("expected one chat call, got %d", chat.calls)
	}
	if len(chat.history) != 2 {
		t.Fatal("history not forwarded")
	}
	if ans.Answer != "Use CRG 3250 for fee claims." || !ans.ContextFound {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if len(ans.Sources) != DefaultTopK {
		t.Fatalf("expected %d sources, got %d", DefaultTopK, len(ans.Sources))
	}
	for i := 1; i < len(ans.Sources); i++ {
		if ans.Sources[i].Similarity > ans.Sources[i-1].Similarity {
			t.Fatal("sources must be ordered by similarity")
		}
	}
	if ans.Sources[0].ID != "c6" {
		t.Fatalf("expected best chunk first, got %s", ans.Sources[0].ID)
	}
	for _, c := range chunks(7) {
		if !strings.Contains(chat.system, c.Content) {
			t.Fatalf("system prompt missing %q", c.Content)
		}
	}
}

func TestAskWithoutContextStillAnswers(t *testing.T) {
	chat := &fakeChat{reply: "General answer."}
	svc := NewService(&fakeEmbedder{}, &fakeSearcher{}, chat, Config{}, quietLogger())
	ans, err := svc.Ask(context.Background(), "What is a CHG?", nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(chat.system, NoContextNote) {
		t.Fatalf("expected no-context note, got:\n%s", chat.system)
	}
	if ans.ContextFound || ans.Sources == nil || len(ans.Sources) != 0 {
		t.Fatalf("unexpected answer %+v", ans)
	}
}

func TestAskErrors(t *testing.T) {
	svc := NewService(&fakeEmbedder{}, &fakeSearcher{}, &fakeChat{}, Config{}, quietLogger())
	if _, err := svc.Ask(context.Background(), "   ", nil); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected empty question error, got %v", err)
	}

	boom := errors.New("boom")
	chat := &fakeChat{}
	svc = NewService(&fakeEmbedder{err: boom}, &fakeSearcher{}, chat, Config{}, quietLogger())
	if _, err := svc.Ask(context.Background(), "q", nil); !errors.Is(err, boom) {
		t.Fatalf("expected embed error, got %v", err)
	}
	if chat.calls != 0 {
		t.Fatal("chat must not run when embedding fails")
	}

	svc = NewService(&fakeEmbedder{}, &fakeSearcher{}, &fakeChat{err: boom}, Config{}, quietLogger())
	if _, err := svc.Ask(context.Background(), "q", nil); !errors.Is(err, boom) {
		t.Fatalf("expected chat error, got %v", err)
	}
}

type fakeModels struct {
	resp  *genai.EmbedContentResponse
	err   error
	model string
	dims  int32
	text  string
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.model = model
	if cfg != nil && cfg.OutputDimensionality != nil {
		f.dims = *cfg.OutputDimensionality
	}
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.text = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func TestGeminiEmbedder(t *testing.T) {
	m := &fakeModels{resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2}}}}}
	e := NewGeminiEmbedderWithModels(m, "", 0)
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if diff := cmp.Diff([]float32{0.1, 0.2}, vec); diff != "" {
		t.Fatalf("vector mismatch:\n%s", diff)
	}
	if m.model != DefaultEmbeddingModel || m.dims != DefaultEmbeddingDimensions || m.text != "hello" {
		t.Fatalf("unexpected request %+v", m)
	}

	empty := NewGeminiEmbedderWithModels(&fakeModels{resp: &genai.EmbedContentResponse{}}, "", 0)
	if _, err := empty.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected empty embedding error")
	}
	if _, err := NewGeminiEmbedder(context.Background(), "", "", 0); err == nil {
		t.Fatal("expected missing key error")
	}
}

type memoryWriter struct {
	chunks []EmbeddedChunk
}

func (m *memoryWriter) UpsertChunk(_ context.Context, c EmbeddedChunk) error {
	m.chunks = append(m.chunks, c)
	return nil
}

func TestLoadCorpusAndIngest(t *testing.T) {
	long := strings.Repeat("a", 700) + "\n\n" + strings.Repeat("b", 700)
	src := fmt.Sprintf(`
documents:
  - id: crg-3250
    title: Reimbursing costs
    category: CRG
    content: |
      HMRC may reimburse reasonable professional costs.

      Costs must be directly caused by HMRC's mistake.
  - id: long
    title: Long guidance
    category: CHG
    content: %q
`, long)
	corpus, err := LoadCorpus(strings.NewReader(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(corpus.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(corpus.Documents))
	}
	emb := &fakeEmbedder{}
	w := &memoryWriter{}
	n, err := Ingest(context.Background(), emb, w, corpus, quietLogger())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 3 || len(w.chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", n)
	}
	ids := []string{w.chunks[0].ID, w.chunks[1].ID, w.chunks[2].ID}
	if diff := cmp.Diff([]string{"crg-3250", "long#1", "long#2"}, ids); diff != "" {
		t.Fatalf("chunk ids mismatch:\n%s", diff)
	}
	if !strings.HasPrefix(emb.calls[0], "Reimbursing costs\n\n") {
		t.Fatalf("expected title in embedded text, got %q", emb.calls[0])
	}
}

func TestLoadCorpusRequiresIDs(t *testing.T) {
	if _, err := LoadCorpus(strings.NewReader("documents:\n  - title: x\n")); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestSplitChunks(t *testing.T) {
	got := SplitChunks("one\n\ntwo\n\n\n\nthree", 9)
	if diff := cmp.Diff([]string{"one\n\ntwo", "three"}, got); diff != "" {
		t.Fatalf("chunks mismatch:\n%s", diff)
	}
	if SplitChunks("  ", 10) != nil {
		t.Fatal("expected no chunks for blank text")
	}
}
