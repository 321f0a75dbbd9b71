// Package store persists case classifications, their override audit trail
// and the embedded knowledge corpus in SQLite.
package store

import (
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS classifications (
	case_reference TEXT PRIMARY KEY,
	primary_type   TEXT NOT NULL,
	secondary_type TEXT NOT NULL DEFAULT '',
	confidence     REAL NOT NULL,
	low_confidence INTEGER NOT NULL DEFAULT 0,
	payload        TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS classification_overrides (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	case_reference TEXT NOT NULL,
	from_type      TEXT NOT NULL,
	to_type        TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_overrides_case ON classification_overrides(case_reference, id);

CREATE TABLE IF NOT EXISTS knowledge_chunks (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	dims       INTEGER NOT NULL,
	embedding  BLOB NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_dims ON knowledge_chunks(dims);
`

type Store struct {
	db    *sqlx.DB
	clock func() time.Time
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, clock: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) now() string {
	return s.clock().UTC().Format(time.RFC3339Nano)
}

// builder produces ?-placeholder SQL for SQLite.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
