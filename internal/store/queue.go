package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessierh/psyche/internal/domain"
)

type QueueStore struct {
	db *pgxpool.Pool
}

func NewQueueStore(db *pgxpool.Pool) *QueueStore {
	return &QueueStore{db: db}
}

const queueColumns = `id, observation_id, user_message, thinking_content, response_summary,
	reason, priority, estimated_cost, impact, created_at, processed_at`

func scanQueueEntry(row pgx.Row) (*domain.QueueEntry, error) {
	e := &domain.QueueEntry{}
	err := row.Scan(
		&e.ID, &e.Observation.ID, &e.Observation.UserMessage,
		&e.Observation.ThinkingContent, &e.Observation.ResponseSummary,
		&e.Reason, &e.Priority, &e.EstimatedCost, &e.Impact,
		&e.CreatedAt, &e.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *QueueStore) Enqueue(ctx context.Context, e *domain.QueueEntry) error {
	if e.Priority < domain.MinQueuePriority {
		e.Priority = domain.MinQueuePriority
	}
	if e.Priority > domain.MaxQueuePriority {
		e.Priority = domain.MaxQueuePriority
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO extraction_queue (observation_id, user_message, thinking_content,
			response_summary, reason, priority, estimated_cost, impact)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		e.Observation.ID, e.Observation.UserMessage, e.Observation.ThinkingContent,
		e.Observation.ResponseSummary, e.Reason, e.Priority, e.EstimatedCost, e.Impact,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *QueueStore) NextProcessable(ctx context.Context) (*domain.QueueEntry, error) {
	e, err := scanQueueEntry(s.db.QueryRow(ctx,
		`SELECT `+queueColumns+`
		 FROM extraction_queue
		 WHERE processed_at IS NULL AND reason != $1
		 ORDER BY priority DESC, created_at ASC
		 LIMIT 1`,
		domain.ReasonAwaitingConsent,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next queue entry: %w", err)
	}
	return e, nil
}

func (s *QueueStore) GetPendingConsent(ctx context.Context, observationID string) (*domain.QueueEntry, error) {
	e, err := scanQueueEntry(s.db.QueryRow(ctx,
		`SELECT `+queueColumns+`
		 FROM extraction_queue
		 WHERE observation_id = $1 AND reason = $2 AND processed_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT 1`,
		observationID, domain.ReasonAwaitingConsent,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *QueueStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	// Guarded on processed_at so a processed entry can never be touched twice.
	tag, err := s.db.Exec(ctx,
		`UPDATE extraction_queue SET processed_at = NOW()
		 WHERE id = $1 AND processed_at IS NULL`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *QueueStore) MarkDeclined(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE extraction_queue SET processed_at = NOW(), reason = $2
		 WHERE id = $1 AND processed_at IS NULL`,
		id, domain.ReasonConsentDeclined,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *QueueStore) CountUnprocessed(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM extraction_queue WHERE processed_at IS NULL AND reason != $1`,
		domain.ReasonAwaitingConsent,
	).Scan(&count)
	return count, err
}

func (s *QueueStore) CountUnprocessedAbovePriority(ctx context.Context, minPriority int) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM extraction_queue
		 WHERE processed_at IS NULL AND reason != $1 AND priority >= $2`,
		domain.ReasonAwaitingConsent, minPriority,
	).Scan(&count)
	return count, err
}
