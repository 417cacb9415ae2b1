package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessierh/psyche/internal/domain"
)

// ResourceStateStore persists the single-row energy value so capacity
// survives process restarts. Writes happen at every mutation, never
// write-behind.
type ResourceStateStore struct {
	db *pgxpool.Pool
}

func NewResourceStateStore(db *pgxpool.Pool) *ResourceStateStore {
	return &ResourceStateStore{db: db}
}

func (s *ResourceStateStore) Load(ctx context.Context) (int, error) {
	var energy int
	err := s.db.QueryRow(ctx,
		`SELECT energy FROM resource_state WHERE id = 1`,
	).Scan(&energy)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = s.db.Exec(ctx,
			`INSERT INTO resource_state (id, energy) VALUES (1, $1)
			 ON CONFLICT (id) DO NOTHING`,
			domain.MaxEnergy,
		)
		if err != nil {
			return 0, fmt.Errorf("initialize resource state: %w", err)
		}
		return domain.MaxEnergy, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load resource state: %w", err)
	}
	return domain.ClampEnergy(energy), nil
}

func (s *ResourceStateStore) Save(ctx context.Context, energy int) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO resource_state (id, energy, updated_at) VALUES (1, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET energy = EXCLUDED.energy, updated_at = NOW()`,
		domain.ClampEnergy(energy),
	)
	return err
}

// ResourceEventStore is the append-only resource log. Nothing here is ever
// updated or deleted.
type ResourceEventStore struct {
	db *pgxpool.Pool
}

func NewResourceEventStore(db *pgxpool.Pool) *ResourceEventStore {
	return &ResourceEventStore{db: db}
}

func (s *ResourceEventStore) Append(ctx context.Context, e *domain.ResourceEvent) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO resource_events (type, energy_before, energy_after, reason)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.Type, e.EnergyBefore, e.EnergyAfter, e.Reason,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *ResourceEventStore) ListRecent(ctx context.Context, limit int) ([]domain.ResourceEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, type, energy_before, energy_after, reason, created_at
		 FROM resource_events
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list resource events: %w", err)
	}
	defer rows.Close()

	var results []domain.ResourceEvent
	for rows.Next() {
		var e domain.ResourceEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.EnergyBefore, &e.EnergyAfter, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func (s *ResourceEventStore) Stats(ctx context.Context, since time.Time) (*domain.ResourceStats, error) {
	stats := &domain.ResourceStats{}
	err := s.db.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE type = $1),
			COUNT(*) FILTER (WHERE type = $2),
			COUNT(*) FILTER (WHERE type = $3),
			COALESCE(SUM(energy_before - energy_after) FILTER (WHERE type = $1), 0),
			COALESCE(SUM(energy_after - energy_before) FILTER (WHERE type = $3), 0),
			COUNT(*) FILTER (WHERE type = $1 AND created_at >= $4)
		 FROM resource_events`,
		domain.EventExtraction, domain.EventDecline, domain.EventRecovered, since,
	).Scan(
		&stats.TotalEvents, &stats.Extractions, &stats.Declines, &stats.Recoveries,
		&stats.TotalSpent, &stats.TotalRecovered, &stats.ExtractionsLast,
	)
	if err != nil {
		return nil, fmt.Errorf("resource stats: %w", err)
	}
	return stats, nil
}
