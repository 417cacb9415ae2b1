package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessierh/psyche/internal/domain"
)

type CorrectionStore struct {
	db *pgxpool.Pool
}

func NewCorrectionStore(db *pgxpool.Pool) *CorrectionStore {
	return &CorrectionStore{db: db}
}

func (s *CorrectionStore) Create(ctx context.Context, c *domain.Correction) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO belief_corrections (belief_id, type, old_statement, new_statement,
			deleted, exempt, exempt_reason, distress, session_id, turn_number)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		c.BeliefID, c.Type, c.OldStatement, c.NewStatement,
		c.Deleted, c.Exempt, c.ExemptReason, c.Distress, c.SessionID, c.TurnNumber,
	).Scan(&c.ID, &c.CreatedAt)
}

func (s *CorrectionStore) CountByBelief(ctx context.Context, beliefID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM belief_corrections WHERE belief_id = $1`,
		beliefID,
	).Scan(&count)
	return count, err
}

func (s *CorrectionStore) ListByBelief(ctx context.Context, beliefID uuid.UUID) ([]domain.Correction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, belief_id, type, old_statement, new_statement, deleted,
			exempt, exempt_reason, distress, session_id, turn_number, created_at
		 FROM belief_corrections
		 WHERE belief_id = $1
		 ORDER BY created_at ASC`,
		beliefID,
	)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	defer rows.Close()

	var results []domain.Correction
	for rows.Next() {
		var c domain.Correction
		err := rows.Scan(&c.ID, &c.BeliefID, &c.Type, &c.OldStatement, &c.NewStatement,
			&c.Deleted, &c.Exempt, &c.ExemptReason, &c.Distress, &c.SessionID, &c.TurnNumber, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}
