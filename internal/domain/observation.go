package domain

import (
	"time"

	"github.com/google/uuid"
)

// Observation is one conversational turn handed to the engine by the
// calling service layer.
type Observation struct {
	ID              string `json:"id"`
	UserMessage     string `json:"user_message"`
	ThinkingContent string `json:"thinking_content,omitempty"`
	ResponseSummary string `json:"response_summary,omitempty"`
}

// Impact classifies how identity-sensitive an observation is.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// DecisionOutcome is the admission verdict for an observation.
type DecisionOutcome string

const (
	DecisionExtractNow DecisionOutcome = "extract_now"
	DecisionDefer      DecisionOutcome = "defer"
	DecisionSkip       DecisionOutcome = "skip"
	DecisionAskConsent DecisionOutcome = "ask_consent"
)

// DecisionReason codes why an admission decision was made. The same codes
// double as queue entry reasons.
type DecisionReason string

const (
	ReasonApproved           DecisionReason = "approved"
	ReasonTrivialContent     DecisionReason = "trivial_content"
	ReasonCriticallyLow      DecisionReason = "critically_low_energy"
	ReasonRateLimited        DecisionReason = "rate_limited"
	ReasonHeavyTopic         DecisionReason = "heavy_topic_low_energy"
	ReasonInsufficientEnergy DecisionReason = "insufficient_energy"
	ReasonAwaitingConsent    DecisionReason = "awaiting_consent"
	ReasonConsentDeclined    DecisionReason = "consent_declined"
	ReasonExtractionFailed   DecisionReason = "extraction_failed"
)

// Decision is the result of admission evaluation for one observation.
type Decision struct {
	Outcome DecisionOutcome `json:"decision"`
	Reason  DecisionReason  `json:"reason"`
	Message string          `json:"message,omitempty"`
	Cost    int             `json:"cost"`
	Impact  Impact          `json:"impact,omitempty"`
}

// Queue priority bounds.
const (
	MinQueuePriority = 1
	MaxQueuePriority = 10
)

// QueueEntry is a deferred unit of extraction work. The observation payload
// is carried inline so the drain routine can process it without reaching
// back into the conversation log. Once ProcessedAt is set the entry is
// immutable and is never picked up again.
type QueueEntry struct {
	ID            uuid.UUID      `json:"id"`
	Observation   Observation    `json:"observation"`
	Reason        DecisionReason `json:"reason"`
	Priority      int            `json:"priority"`
	EstimatedCost int            `json:"estimated_cost"`
	Impact        Impact         `json:"impact"`
	CreatedAt     time.Time      `json:"created_at"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
}

// QueuePriority derives an entry's priority from its impact class, with a
// bump for expensive observations.
func QueuePriority(impact Impact, cost int) int {
	p := MinQueuePriority
	switch impact {
	case ImpactHigh:
		p = 9
	case ImpactMedium:
		p = 7
	case ImpactLow:
		p = 3
	}
	if cost > 30 {
		p++
	}
	if p > MaxQueuePriority {
		p = MaxQueuePriority
	}
	return p
}
