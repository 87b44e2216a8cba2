// Package logging persists the decision provenance log in SQLite.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id              TEXT NOT NULL,
	intent               TEXT NOT NULL,
	confidence           REAL NOT NULL,
	next_step            TEXT NOT NULL,
	rule                 TEXT NOT NULL,
	reason               TEXT,
	missing_json         TEXT,
	retrieval_confidence REAL NOT NULL,
	evidence_pages       TEXT,
	degraded             INTEGER NOT NULL DEFAULT 0,
	created_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_log_created ON decision_log(created_at);
`

// #endregion schema

// #region store
// Store writes and reads decision_log rows.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region log-decision
// LogDecision appends one entry. A zero CreatedAt is stamped with the
// current time.
func (s *Store) LogDecision(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	missing, err := encodeList(e.Missing)
	if err != nil {
		return fmt.Errorf("encode missing: %w", err)
	}
	pages, err := encodeList(e.EvidencePages)
	if err != nil {
		return fmt.Errorf("encode pages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decision_log (turn_id, intent, confidence, next_step, rule, reason, missing_json,
		   retrieval_confidence, evidence_pages, degraded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TurnID,
		e.Intent,
		e.Confidence,
		e.NextStep,
		e.Rule,
		nullIfEmpty(e.Reason),
		missing,
		e.RetrievalConfidence,
		pages,
		e.Degraded,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region recent
// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_id, intent, confidence, next_step, rule, reason, missing_json,
		        retrieval_confidence, evidence_pages, degraded, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var reason, missing, pages sql.NullString
		var created string
		if err := rows.Scan(&e.TurnID, &e.Intent, &e.Confidence, &e.NextStep, &e.Rule, &reason, &missing,
			&e.RetrievalConfidence, &pages, &e.Degraded, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Reason = reason.String
		if missing.Valid {
			if err := json.Unmarshal([]byte(missing.String), &e.Missing); err != nil {
				return nil, fmt.Errorf("decode missing: %w", err)
			}
		}
		if pages.Valid {
			if err := json.Unmarshal([]byte(pages.String), &e.EvidencePages); err != nil {
				return nil, fmt.Errorf("decode pages: %w", err)
			}
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func encodeList[T any](xs []T) (interface{}, error) {
	if len(xs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// #endregion helpers
