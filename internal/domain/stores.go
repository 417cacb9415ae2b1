package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BeliefStore interface {
	Create(ctx context.Context, b *Belief) error
	GetByID(ctx context.Context, id uuid.UUID) (*Belief, error)
	ListActive(ctx context.Context) ([]Belief, error)
	List(ctx context.Context, includeRetired bool, limit int) ([]Belief, error)
	// UpdateReinforcement persists a reinforcement: new conviction, evidence
	// count, and an appended reasoning line.
	UpdateReinforcement(ctx context.Context, id uuid.UUID, conviction float64, evidenceCount int, reasoning string) error
	// Retire closes the validity interval. Retired beliefs are kept forever.
	Retire(ctx context.Context, id uuid.UUID, note string) error
	// UpdateStatement overwrites the statement text after a correction.
	UpdateStatement(ctx context.Context, id uuid.UUID, statement string, correctionCount int) error
	UpdateMaturity(ctx context.Context, id uuid.UUID, state MaturityState) error
	// FindSimilar runs embedding recall over active beliefs.
	FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]BeliefWithScore, error)
}

type QueueStore interface {
	Enqueue(ctx context.Context, e *QueueEntry) error
	// NextProcessable returns the highest-priority unprocessed entry that is
	// not parked awaiting consent, or nil when the queue is drained.
	// Ordering is priority descending, then insertion order.
	NextProcessable(ctx context.Context) (*QueueEntry, error)
	GetPendingConsent(ctx context.Context, observationID string) (*QueueEntry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	// MarkDeclined finalizes a consent refusal: sets processed_at and the
	// decline reason in one statement, after which the entry is immutable.
	MarkDeclined(ctx context.Context, id uuid.UUID) error
	CountUnprocessed(ctx context.Context) (int, error)
	CountUnprocessedAbovePriority(ctx context.Context, minPriority int) (int, error)
}

type ResourceStateStore interface {
	// Load returns the persisted energy value, initializing the row at full
	// capacity on first use.
	Load(ctx context.Context) (int, error)
	Save(ctx context.Context, energy int) error
}

type ResourceEventStore interface {
	Append(ctx context.Context, e *ResourceEvent) error
	ListRecent(ctx context.Context, limit int) ([]ResourceEvent, error)
	Stats(ctx context.Context, since time.Time) (*ResourceStats, error)
}

type CorrectionStore interface {
	Create(ctx context.Context, c *Correction) error
	CountByBelief(ctx context.Context, beliefID uuid.UUID) (int, error)
	ListByBelief(ctx context.Context, beliefID uuid.UUID) ([]Correction, error)
}

type CausalLinkStore interface {
	Create(ctx context.Context, l *CausalLink) error
	ListByBelief(ctx context.Context, beliefID uuid.UUID) ([]CausalLink, error)
}

// ExtractionClient is the outbound contract to the text-generation
// collaborator: one prompt pair in, one response body out. Response bodies
// may wrap JSON in prose or code fences; recovery is the caller's job.
type ExtractionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// EmbeddingClient reaches the external embedding collaborator.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
