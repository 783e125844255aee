// internal/docverify/audit/store.go

// Package audit persists pipeline routing decisions for later review.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agentic-apps/internal/common/errors"
)

var (
	ErrInsertFailed = errors.Sentinel(errors.ErrCodeAuditInsertFailed)
)

const createTableStmt = `
CREATE TABLE IF NOT EXISTS verification_decisions (
	id              BIGSERIAL PRIMARY KEY,
	run_id          TEXT        NOT NULL,
	decision        TEXT        NOT NULL,
	confidence      DOUBLE PRECISION,
	assessment      TEXT,
	place_of_birth  TEXT,
	decided_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertStmt = `
INSERT INTO verification_decisions (run_id, decision, confidence, assessment, place_of_birth, decided_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

// Record is one audited routing decision.
type Record struct {
	RunID        string
	Decision     string
	Confidence   float64
	Assessment   string
	PlaceOfBirth string
	DecidedAt    time.Time
}

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Store struct {
	db     *sql.DB
	logger Logger
}

func NewStore(db *sql.DB, log Logger) *Store {
	return &Store{
		db: db,
		logger: log.With(map[string]interface{}{
			"component": "audit",
		}),
	}
}

// EnsureSchema creates the decisions table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createTableStmt)
	if err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// SaveDecision writes one routing decision and returns its row id.
func (s *Store) SaveDecision(ctx context.Context, rec Record) (int64, error) {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}

	var id int64
	err := s.db.QueryRowContext(ctx, insertStmt,
		rec.RunID, rec.Decision, rec.Confidence, rec.Assessment, rec.PlaceOfBirth, rec.DecidedAt,
	).Scan(&id)
	if err != nil {
		s.logger.Error("decision insert failed", map[string]interface{}{
			"runId": rec.RunID,
			"error": err.Error(),
		})
		return 0, fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	s.logger.Info("decision recorded", map[string]interface{}{
		"runId":    rec.RunID,
		"decision": rec.Decision,
		"auditId":  id,
	})
	return id, nil
}

// RecentDecisions returns the latest n decisions, newest first.
func (s *Store) RecentDecisions(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, decision, confidence, assessment, place_of_birth, decided_at
		 FROM verification_decisions ORDER BY decided_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.RunID, &rec.Decision, &rec.Confidence, &rec.Assessment, &rec.PlaceOfBirth, &rec.DecidedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
