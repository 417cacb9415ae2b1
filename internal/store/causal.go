package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessierh/psyche/internal/domain"
)

type CausalLinkStore struct {
	db *pgxpool.Pool
}

func NewCausalLinkStore(db *pgxpool.Pool) *CausalLinkStore {
	return &CausalLinkStore{db: db}
}

func (s *CausalLinkStore) Create(ctx context.Context, l *domain.CausalLink) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO causal_links (belief_id, observation_id, type)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		l.BeliefID, l.ObservationID, l.Type,
	).Scan(&l.ID, &l.CreatedAt)
}

func (s *CausalLinkStore) ListByBelief(ctx context.Context, beliefID uuid.UUID) ([]domain.CausalLink, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, belief_id, observation_id, type, created_at
		 FROM causal_links
		 WHERE belief_id = $1
		 ORDER BY created_at ASC`,
		beliefID,
	)
	if err != nil {
		return nil, fmt.Errorf("list causal links: %w", err)
	}
	defer rows.Close()

	var results []domain.CausalLink
	for rows.Next() {
		var l domain.CausalLink
		if err := rows.Scan(&l.ID, &l.BeliefID, &l.ObservationID, &l.Type, &l.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, l)
	}
	return results, rows.Err()
}
