package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/store"
)

// In-memory stores backing the service tests. Behavior mirrors the SQL
// layer where the services depend on it: retired beliefs drop out of the
// active set, processed queue entries are never returned again, and the
// resource row initializes at full capacity.

type memBeliefStore struct {
	mu      sync.Mutex
	beliefs map[uuid.UUID]*domain.Belief

	createErr error
	listErr   error
}

func newMemBeliefStore() *memBeliefStore {
	return &memBeliefStore{beliefs: make(map[uuid.UUID]*domain.Belief)}
}

func (s *memBeliefStore) Create(_ context.Context, b *domain.Belief) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.ValidFrom.IsZero() {
		b.ValidFrom = now
	}
	cp := *b
	s.beliefs[b.ID] = &cp
	return nil
}

func (s *memBeliefStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Belief, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beliefs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memBeliefStore) ListActive(_ context.Context) ([]domain.Belief, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Belief
	for _, b := range s.beliefs {
		if b.ValidTo == nil {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memBeliefStore) List(_ context.Context, includeRetired bool, limit int) ([]domain.Belief, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Belief
	for _, b := range s.beliefs {
		if !includeRetired && b.ValidTo != nil {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memBeliefStore) UpdateReinforcement(_ context.Context, id uuid.UUID, conviction float64, evidenceCount int, reasoning string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beliefs[id]
	if !ok || b.ValidTo != nil {
		return store.ErrNotFound
	}
	b.Conviction = conviction
	b.EvidenceCount = evidenceCount
	if b.Reasoning == "" {
		b.Reasoning = reasoning
	} else {
		b.Reasoning += "\n" + reasoning
	}
	b.UpdatedAt = time.Now()
	return nil
}

func (s *memBeliefStore) Retire(_ context.Context, id uuid.UUID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beliefs[id]
	if !ok || b.ValidTo != nil {
		return store.ErrNotFound
	}
	now := time.Now()
	b.ValidTo = &now
	if b.Reasoning == "" {
		b.Reasoning = note
	} else {
		b.Reasoning += "\n" + note
	}
	return nil
}

func (s *memBeliefStore) UpdateStatement(_ context.Context, id uuid.UUID, statement string, correctionCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beliefs[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Statement = statement
	b.CorrectionCount = correctionCount
	now := time.Now()
	b.LastCorrectedAt = &now
	return nil
}

func (s *memBeliefStore) UpdateMaturity(_ context.Context, id uuid.UUID, state domain.MaturityState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beliefs[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Maturity = state
	return nil
}

func (s *memBeliefStore) FindSimilar(_ context.Context, _ []float32, _ float32, _ int) ([]domain.BeliefWithScore, error) {
	return nil, nil
}

type memQueueStore struct {
	mu      sync.Mutex
	entries []*domain.QueueEntry
}

func newMemQueueStore() *memQueueStore {
	return &memQueueStore{}
}

func (s *memQueueStore) Enqueue(_ context.Context, e *domain.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *memQueueStore) NextProcessable(_ context.Context) (*domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.QueueEntry
	for _, e := range s.entries {
		if e.ProcessedAt != nil || e.Reason == domain.ReasonAwaitingConsent {
			continue
		}
		if best == nil || e.Priority > best.Priority ||
			(e.Priority == best.Priority && e.CreatedAt.Before(best.CreatedAt)) {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *memQueueStore) GetPendingConsent(_ context.Context, observationID string) (*domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Observation.ID == observationID && e.Reason == domain.ReasonAwaitingConsent && e.ProcessedAt == nil {
			cp := *e
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memQueueStore) MarkProcessed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			if e.ProcessedAt != nil {
				return store.ErrNotFound
			}
			now := time.Now()
			e.ProcessedAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *memQueueStore) MarkDeclined(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			if e.ProcessedAt != nil {
				return store.ErrNotFound
			}
			now := time.Now()
			e.ProcessedAt = &now
			e.Reason = domain.ReasonConsentDeclined
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *memQueueStore) CountUnprocessed(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.ProcessedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *memQueueStore) CountUnprocessedAbovePriority(_ context.Context, minPriority int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.ProcessedAt == nil && e.Priority >= minPriority {
			n++
		}
	}
	return n, nil
}

// unprocessedByReason counts live entries carrying the given reason.
func (s *memQueueStore) unprocessedByReason(r domain.DecisionReason) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.ProcessedAt == nil && e.Reason == r {
			n++
		}
	}
	return n
}

type memResourceStateStore struct {
	mu      sync.Mutex
	energy  int
	saveErr error
	saves   int
}

func newMemResourceStateStore(energy int) *memResourceStateStore {
	return &memResourceStateStore{energy: energy}
}

func (s *memResourceStateStore) Load(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.energy, nil
}

func (s *memResourceStateStore) Save(_ context.Context, energy int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.energy = energy
	s.saves++
	return nil
}

type memResourceEventStore struct {
	mu     sync.Mutex
	events []domain.ResourceEvent
}

func newMemResourceEventStore() *memResourceEventStore {
	return &memResourceEventStore{}
}

func (s *memResourceEventStore) Append(_ context.Context, e *domain.ResourceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *memResourceEventStore) ListRecent(_ context.Context, limit int) ([]domain.ResourceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.ResourceEvent(nil), s.events...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memResourceEventStore) Stats(_ context.Context, _ time.Time) (*domain.ResourceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &domain.ResourceStats{TotalEvents: len(s.events)}, nil
}

func (s *memResourceEventStore) byType(t domain.ResourceEventType) []domain.ResourceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ResourceEvent
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type memCorrectionStore struct {
	mu          sync.Mutex
	corrections []domain.Correction
}

func newMemCorrectionStore() *memCorrectionStore {
	return &memCorrectionStore{}
}

func (s *memCorrectionStore) Create(_ context.Context, c *domain.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.corrections = append(s.corrections, *c)
	return nil
}

func (s *memCorrectionStore) CountByBelief(_ context.Context, beliefID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.corrections {
		if c.BeliefID == beliefID {
			n++
		}
	}
	return n, nil
}

func (s *memCorrectionStore) ListByBelief(_ context.Context, beliefID uuid.UUID) ([]domain.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Correction
	for _, c := range s.corrections {
		if c.BeliefID == beliefID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memCausalLinkStore struct {
	mu    sync.Mutex
	links []domain.CausalLink
}

func newMemCausalLinkStore() *memCausalLinkStore {
	return &memCausalLinkStore{}
}

func (s *memCausalLinkStore) Create(_ context.Context, l *domain.CausalLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	s.links = append(s.links, *l)
	return nil
}

func (s *memCausalLinkStore) ListByBelief(_ context.Context, beliefID uuid.UUID) ([]domain.CausalLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CausalLink
	for _, l := range s.links {
		if l.BeliefID == beliefID {
			out = append(out, l)
		}
	}
	return out, nil
}
