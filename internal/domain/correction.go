package domain

import (
	"time"

	"github.com/google/uuid"
)

// CorrectionType classifies why the user is revising a belief.
type CorrectionType string

const (
	CorrectionTypo             CorrectionType = "typo"
	CorrectionMisunderstanding CorrectionType = "misunderstanding"
	CorrectionClarification    CorrectionType = "clarification"
	CorrectionChangedMind      CorrectionType = "changed_mind"
	CorrectionUserError        CorrectionType = "user_error"
)

func ValidCorrectionType(t string) bool {
	switch CorrectionType(t) {
	case CorrectionTypo, CorrectionMisunderstanding, CorrectionClarification,
		CorrectionChangedMind, CorrectionUserError:
		return true
	}
	return false
}

// AlwaysExempt reports whether this correction type never provokes
// distress, regardless of the belief's maturity.
func (t CorrectionType) AlwaysExempt() bool {
	return t == CorrectionTypo || t == CorrectionUserError
}

// Correction is one applied revision of a belief. Rows are append-only.
type Correction struct {
	ID           uuid.UUID      `json:"id"`
	BeliefID     uuid.UUID      `json:"belief_id"`
	Type         CorrectionType `json:"type"`
	OldStatement string         `json:"old_statement"`
	NewStatement string         `json:"new_statement,omitempty"`
	Deleted      bool           `json:"deleted"`
	Exempt       bool           `json:"exempt"`
	ExemptReason string         `json:"exempt_reason,omitempty"`
	Distress     float64        `json:"distress"`
	SessionID    string         `json:"session_id,omitempty"`
	TurnNumber   int            `json:"turn_number,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// DistressBase returns the distress floor for correcting a belief in the
// given maturity state. Probation carries no base because probationary
// corrections are exempt before this is ever consulted.
func DistressBase(s MaturityState) float64 {
	switch s {
	case MaturityEstablishing:
		return 0.3
	case MaturityEstablished:
		return 0.6
	case MaturityCore:
		return 0.9
	case MaturityLocked:
		return 1.0
	}
	return 0.0
}
