package knowledge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxChunkChars bounds the size of a chunk; documents are split on
// paragraph boundaries below it.
const MaxChunkChars = 1200

type Document struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	Content  string `yaml:"content"`
}

type Corpus struct {
	Documents []Document `yaml:"documents"`
}

type EmbeddedChunk struct {
	ID        string
	Title     string
	Category  string
	Content   string
	Embedding []float32
}

type ChunkWriter interface {
	UpsertChunk(ctx context.Context, c EmbeddedChunk) error
}

func LoadCorpus(r io.Reader) (Corpus, error) {
	var c Corpus
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return Corpus{}, fmt.Errorf("decode corpus: %w", err)
	}
	for i, d := range c.Documents {
		if strings.TrimSpace(d.ID) == "" {
			return Corpus{}, fmt.Errorf("document %d has no id", i)
		}
	}
	return c, nil
}

// Ingest embeds and stores every chunk of the corpus, returning how many
// chunks were written.
func Ingest(ctx context.Context, embedder Embedder, w ChunkWriter, corpus Corpus, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := 0
	for _, d := range corpus.Documents {
		parts := SplitChunks(d.Content, MaxChunkChars)
		for i, part := range parts {
			id := d.ID
			if len(parts) > 1 {
				id = fmt.Sprintf("%s#%d", d.ID, i+1)
			}
			vec, err := embedder.Embed(ctx, d.Title+"\n\n"+part)
			if err != nil {
				return n, fmt.Errorf("embed %s: %w", id, err)
			}
			if err := w.UpsertChunk(ctx, EmbeddedChunk{ID: id, Title: d.Title, Category: d.Category, Content: part, Embedding: vec}); err != nil {
				return n, fmt.Errorf("store %s: %w", id, err)
			}
			n++
		}
		logger.Info("document ingested", "id", d.ID, "chunks", len(parts))
	}
	return n, nil
}

// SplitChunks groups paragraphs into chunks of at most max characters. A
// single paragraph longer than max becomes its own chunk.
func SplitChunks(text string, max int) []string {
	var out []string
	var cur strings.Builder
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(p) > max {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
