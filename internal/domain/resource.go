package domain

import (
	"time"

	"github.com/google/uuid"
)

// Energy bounds. The capacity value is floored and ceilinged at every
// mutation site, not validated after the fact.
const (
	MinEnergy = 0
	MaxEnergy = 100
)

func ClampEnergy(e int) int {
	if e < MinEnergy {
		return MinEnergy
	}
	if e > MaxEnergy {
		return MaxEnergy
	}
	return e
}

// ResourceState is the coarse classification derived from current energy.
type ResourceState string

const (
	StatePlentiful ResourceState = "plentiful"
	StateReduced   ResourceState = "reduced"
	StateStrained  ResourceState = "strained"
	StateCritical  ResourceState = "critical"
)

// ResourceThresholds maps energy to a state. Values are tunables; the
// required invariant is only that the bands are ordered.
type ResourceThresholds struct {
	Plentiful int // state is plentiful at or above this
	Reduced   int // reduced at or above this
	Strained  int // strained at or above this, critical below
}

func DefaultResourceThresholds() ResourceThresholds {
	return ResourceThresholds{Plentiful: 70, Reduced: 40, Strained: 15}
}

// StateFor classifies an energy value.
func (t ResourceThresholds) StateFor(energy int) ResourceState {
	switch {
	case energy >= t.Plentiful:
		return StatePlentiful
	case energy >= t.Reduced:
		return StateReduced
	case energy >= t.Strained:
		return StateStrained
	default:
		return StateCritical
	}
}

// Feeling maps a resource state to the one-word mood the companion
// surfaces in its status.
func (s ResourceState) Feeling() string {
	switch s {
	case StatePlentiful:
		return "clear"
	case StateReduced:
		return "a bit tired"
	case StateStrained:
		return "stretched thin"
	case StateCritical:
		return "exhausted"
	}
	return "unknown"
}

// ResourceEventType labels entries in the append-only resource log.
type ResourceEventType string

const (
	EventExtraction ResourceEventType = "extraction"
	EventDecline    ResourceEventType = "decline"
	EventRecovered  ResourceEventType = "recovered"
	EventReset      ResourceEventType = "reset"
)

// ResourceEvent is one row of the append-only resource log. Events are
// written for audit and statistics only; decisions never read them back.
type ResourceEvent struct {
	ID           uuid.UUID         `json:"id"`
	Type         ResourceEventType `json:"type"`
	EnergyBefore int               `json:"energy_before"`
	EnergyAfter  int               `json:"energy_after"`
	Reason       string            `json:"reason"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ResourceStats aggregates the event log for the statistics endpoint.
type ResourceStats struct {
	TotalEvents     int `json:"total_events"`
	Extractions     int `json:"extractions"`
	Declines        int `json:"declines"`
	Recoveries      int `json:"recoveries"`
	TotalSpent      int `json:"total_spent"`
	TotalRecovered  int `json:"total_recovered"`
	ExtractionsLast int `json:"extractions_last_24h"`
}
