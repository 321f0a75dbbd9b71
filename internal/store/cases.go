package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/joelkehle/hmrc-complaints/internal/classify"
)

func (s *Store) SaveClassification(ctx context.Context, caseRef string, c classify.Classification) error {
	return s.saveClassification(ctx, s.db, caseRef, c)
}

func (s *Store) saveClassification(ctx context.Context, db sqlx.ExtContext, caseRef string, c classify.Classification) error {
	caseRef = strings.TrimSpace(caseRef)
	if caseRef == "" {
		return errors.New("case reference is required")
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	secondary := ""
	if c.SecondaryType != nil {
		secondary = string(*c.SecondaryType)
	}
	now := s.now()
	q, args, err := builder.Insert("classifications").
		Columns("case_reference", "primary_type", "secondary_type", "confidence", "low_confidence", "payload", "created_at", "updated_at").
		Values(caseRef, string(c.PrimaryType), secondary, c.Confidence, boolToInt(c.LowConfidence), string(payload), now, now).
		Suffix(`ON CONFLICT(case_reference) DO UPDATE SET
			primary_type = excluded.primary_type,
			secondary_type = excluded.secondary_type,
			confidence = excluded.confidence,
			low_confidence = excluded.low_confidence,
			payload = excluded.payload,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, q, args...)
	return err
}

func (s *Store) GetClassification(ctx context.Context, caseRef string) (classify.Classification, error) {
	q, args, err := builder.Select("payload").
		From("classifications").
		Where(sq.Eq{"case_reference": strings.TrimSpace(caseRef)}).
		ToSql()
	if err != nil {
		return classify.Classification{}, err
	}
	var payload string
	if err := s.db.GetContext(ctx, &payload, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return classify.Classification{}, fmt.Errorf("classification %s: %w", caseRef, ErrNotFound)
		}
		return classify.Classification{}, err
	}
	var c classify.Classification
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return classify.Classification{}, fmt.Errorf("decode classification %s: %w", caseRef, err)
	}
	return c, nil
}

// SaveOverride stores an overridden classification and appends its audit
// entry in one transaction.
func (s *Store) SaveOverride(ctx context.Context, caseRef string, c classify.Classification) error {
	if c.Override == nil {
		return errors.New("classification carries no override")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.saveClassification(ctx, tx, caseRef, c); err != nil {
		return err
	}
	q, args, err := builder.Insert("classification_overrides").
		Columns("case_reference", "from_type", "to_type", "reason", "created_at").
		Values(strings.TrimSpace(caseRef), string(c.Override.From), string(c.Override.To), c.Override.Reason, c.Override.At.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return err
	}
	return tx.Commit()
}

type overrideRow struct {
	FromType  string `db:"from_type"`
	ToType    string `db:"to_type"`
	Reason    string `db:"reason"`
	CreatedAt string `db:"created_at"`
}

// Overrides returns the audit trail for a case, oldest first.
func (s *Store) Overrides(ctx context.Context, caseRef string) ([]classify.OverrideAudit, error) {
	q, args, err := builder.Select("from_type", "to_type", "reason", "created_at").
		From("classification_overrides").
		Where(sq.Eq{"case_reference": strings.TrimSpace(caseRef)}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []overrideRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]classify.OverrideAudit, 0, len(rows))
	for _, r := range rows {
		at, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
		out = append(out, classify.OverrideAudit{
			From:   classify.CaseType(r.FromType),
			To:     classify.CaseType(r.ToType),
			Reason: r.Reason,
			At:     at,
		})
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
