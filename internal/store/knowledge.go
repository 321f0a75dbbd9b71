package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/joelkehle/hmrc-complaints/internal/knowledge"
)

func (s *Store) UpsertChunk(ctx context.Context, c knowledge.EmbeddedChunk) error {
	if c.ID == "" {
		return errors.New("chunk id is required")
	}
	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk %s has no embedding", c.ID)
	}
	q, args, err := builder.Insert("knowledge_chunks").
		Columns("id", "title", "category", "content", "dims", "embedding", "updated_at").
		Values(c.ID, c.Title, c.Category, c.Content, len(c.Embedding), encodeEmbedding(c.Embedding), s.now()).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			content = excluded.content,
			dims = excluded.dims,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

type chunkRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Category  string `db:"category"`
	Content   string `db:"content"`
	Embedding []byte `db:"embedding"`
}

// Search ranks every chunk of matching dimensionality by cosine similarity
// and returns those at or above threshold, best first. Negative
// similarities count as zero.
func (s *Store) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]knowledge.Chunk, error) {
	if len(embedding) == 0 {
		return nil, errors.New("empty query embedding")
	}
	q, args, err := builder.Select("id", "title", "category", "content", "embedding").
		From("knowledge_chunks").
		Where(sq.Eq{"dims": len(embedding)}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := []knowledge.Chunk{}
	for _, r := range rows {
		sim := cosine(embedding, decodeEmbedding(r.Embedding))
		if sim < threshold {
			continue
		}
		out = append(out, knowledge.Chunk{ID: r.ID, Title: r.Title, Category: r.Category, Content: r.Content, Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM knowledge_chunks")
	return n, err
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case sim < 0:
		return 0
	case sim > 1:
		return 1
	default:
		return sim
	}
}
