package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/tessierh/psyche/internal/domain"
)

type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

const beliefColumns = `id, statement, subject, holder, polarity, class, conviction,
	evidence_count, maturity, valid_from, valid_to, probation_ends_at,
	correction_count, last_corrected_at, reasoning, created_at, updated_at`

func scanBelief(row pgx.Row, b *domain.Belief) error {
	return row.Scan(
		&b.ID, &b.Statement, &b.Subject, &b.Holder, &b.Polarity, &b.Class, &b.Conviction,
		&b.EvidenceCount, &b.Maturity, &b.ValidFrom, &b.ValidTo, &b.ProbationEndsAt,
		&b.CorrectionCount, &b.LastCorrectedAt, &b.Reasoning, &b.CreatedAt, &b.UpdatedAt,
	)
}

func (s *BeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	var embedding *pgvector.Vector
	if len(b.Embedding) > 0 {
		v := pgvector.NewVector(b.Embedding)
		embedding = &v
	}

	if b.Maturity == "" {
		b.Maturity = domain.MaturityProbation
	}
	if b.EvidenceCount == 0 {
		b.EvidenceCount = 1
	}
	if b.Holder == "" {
		b.Holder = "user"
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO beliefs (statement, subject, holder, polarity, class, conviction,
			evidence_count, maturity, valid_from, probation_ends_at, reasoning, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, valid_from, created_at, updated_at`,
		b.Statement, b.Subject, b.Holder, b.Polarity, b.Class, b.Conviction,
		b.EvidenceCount, b.Maturity, b.ValidFrom, b.ProbationEndsAt, b.Reasoning, embedding,
	).Scan(&b.ID, &b.ValidFrom, &b.CreatedAt, &b.UpdatedAt)
}

func (s *BeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	b := &domain.Belief{}
	err := scanBelief(s.db.QueryRow(ctx,
		`SELECT `+beliefColumns+` FROM beliefs WHERE id = $1`, id), b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *BeliefStore) ListActive(ctx context.Context) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+beliefColumns+` FROM beliefs WHERE valid_to IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active beliefs: %w", err)
	}
	defer rows.Close()
	return collectBeliefs(rows)
}

func (s *BeliefStore) List(ctx context.Context, includeRetired bool, limit int) ([]domain.Belief, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + beliefColumns + ` FROM beliefs`
	if !includeRetired {
		query += ` WHERE valid_to IS NULL`
	}
	query += ` ORDER BY conviction DESC, created_at DESC LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list beliefs: %w", err)
	}
	defer rows.Close()
	return collectBeliefs(rows)
}

func collectBeliefs(rows pgx.Rows) ([]domain.Belief, error) {
	var results []domain.Belief
	for rows.Next() {
		var b domain.Belief
		if err := scanBelief(rows, &b); err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

func (s *BeliefStore) UpdateReinforcement(ctx context.Context, id uuid.UUID, conviction float64, evidenceCount int, reasoning string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs
		 SET conviction = $2, evidence_count = $3,
		     reasoning = CASE WHEN reasoning = '' THEN $4 ELSE reasoning || E'\n' || $4 END,
		     updated_at = NOW()
		 WHERE id = $1 AND valid_to IS NULL`,
		id, conviction, evidenceCount, reasoning,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) Retire(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs
		 SET valid_to = NOW(),
		     reasoning = CASE WHEN reasoning = '' THEN $2 ELSE reasoning || E'\n' || $2 END,
		     updated_at = NOW()
		 WHERE id = $1 AND valid_to IS NULL`,
		id, note,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) UpdateStatement(ctx context.Context, id uuid.UUID, statement string, correctionCount int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs
		 SET statement = $2, correction_count = $3, last_corrected_at = NOW(), updated_at = NOW()
		 WHERE id = $1`,
		id, statement, correctionCount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) UpdateMaturity(ctx context.Context, id uuid.UUID, state domain.MaturityState) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET maturity = $2, updated_at = NOW() WHERE id = $1`,
		id, state,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]domain.BeliefWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT `+beliefColumns+`, 1 - (embedding <=> $1) AS score
		 FROM beliefs
		 WHERE valid_to IS NULL AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar beliefs: %w", err)
	}
	defer rows.Close()

	var results []domain.BeliefWithScore
	for rows.Next() {
		var bs domain.BeliefWithScore
		err := rows.Scan(
			&bs.ID, &bs.Statement, &bs.Subject, &bs.Holder, &bs.Polarity, &bs.Class, &bs.Conviction,
			&bs.EvidenceCount, &bs.Maturity, &bs.ValidFrom, &bs.ValidTo, &bs.ProbationEndsAt,
			&bs.CorrectionCount, &bs.LastCorrectedAt, &bs.Reasoning, &bs.CreatedAt, &bs.UpdatedAt,
			&bs.Score,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, bs)
	}
	return results, rows.Err()
}
