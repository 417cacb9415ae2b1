package domain

import (
	"time"

	"github.com/google/uuid"
)

// Polarity is the stance a belief takes toward its statement.
type Polarity string

const (
	PolarityAffirmed Polarity = "affirmed"
	PolarityNegated  Polarity = "negated"
)

func ValidPolarity(p string) bool {
	switch Polarity(p) {
	case PolarityAffirmed, PolarityNegated:
		return true
	}
	return false
}

// Opposite returns the inverse polarity.
func (p Polarity) Opposite() Polarity {
	if p == PolarityNegated {
		return PolarityAffirmed
	}
	return PolarityNegated
}

// BeliefClass categorizes what kind of statement a belief is.
type BeliefClass string

const (
	ClassFact       BeliefClass = "fact"
	ClassOpinion    BeliefClass = "opinion"
	ClassPreference BeliefClass = "preference"
	ClassValue      BeliefClass = "value"
)

func ValidBeliefClass(c string) bool {
	switch BeliefClass(c) {
	case ClassFact, ClassOpinion, ClassPreference, ClassValue:
		return true
	}
	return false
}

// MaturityState is the lifecycle stage of a belief. States only ever move
// forward; core and locked are assigned administratively and are never
// produced by automatic promotion.
type MaturityState string

const (
	MaturityProbation    MaturityState = "probation"
	MaturityEstablishing MaturityState = "establishing"
	MaturityEstablished  MaturityState = "established"
	MaturityCore         MaturityState = "core"
	MaturityLocked       MaturityState = "locked"
)

func ValidMaturityState(s string) bool {
	switch MaturityState(s) {
	case MaturityProbation, MaturityEstablishing, MaturityEstablished, MaturityCore, MaturityLocked:
		return true
	}
	return false
}

// rank orders maturity states for monotonicity checks.
func (s MaturityState) rank() int {
	switch s {
	case MaturityProbation:
		return 0
	case MaturityEstablishing:
		return 1
	case MaturityEstablished:
		return 2
	case MaturityCore:
		return 3
	case MaturityLocked:
		return 4
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to target is a legal forward
// transition. Demotion is never legal, and nothing is auto-promoted into
// core or locked.
func (s MaturityState) CanAdvanceTo(target MaturityState) bool {
	if target == MaturityCore || target == MaturityLocked {
		return false
	}
	return target.rank() > s.rank()
}

// MaturityRules holds the promotion thresholds. These are tunables, not
// contracts; only the ordering of states is fixed.
type MaturityRules struct {
	EstablishingMinAge            time.Duration
	EstablishingMinReinforcements int
	EstablishedMinAge             time.Duration
	EstablishedMinReinforcements  int
}

func DefaultMaturityRules() MaturityRules {
	return MaturityRules{
		EstablishingMinAge:            7 * 24 * time.Hour,
		EstablishingMinReinforcements: 3,
		EstablishedMinAge:             30 * 24 * time.Hour,
		EstablishedMinReinforcements:  10,
	}
}

// NextMaturity is the single transition function for the maturity state
// machine. It returns the state a belief of the given age and reinforcement
// count should hold, advancing at most one step per call. Core and locked
// pass through unchanged.
func NextMaturity(s MaturityState, age time.Duration, reinforcements int, rules MaturityRules) MaturityState {
	switch s {
	case MaturityProbation:
		if age >= rules.EstablishingMinAge && reinforcements >= rules.EstablishingMinReinforcements {
			return MaturityEstablishing
		}
	case MaturityEstablishing:
		if age >= rules.EstablishedMinAge && reinforcements >= rules.EstablishedMinReinforcements {
			return MaturityEstablished
		}
	}
	return s
}

// Belief is the unit of durable knowledge: a confidence-scored statement
// attributed to a subject and holder, with a validity interval. Superseded
// beliefs are retired by setting ValidTo, never deleted, so at most one
// belief per statement cluster is active at a time.
type Belief struct {
	ID              uuid.UUID     `json:"id"`
	Statement       string        `json:"statement"`
	Subject         string        `json:"subject"`
	Holder          string        `json:"holder"`
	Polarity        Polarity      `json:"polarity"`
	Class           BeliefClass   `json:"class"`
	Conviction      float64       `json:"conviction"`
	EvidenceCount   int           `json:"evidence_count"`
	Maturity        MaturityState `json:"maturity"`
	ValidFrom       time.Time     `json:"valid_from"`
	ValidTo         *time.Time    `json:"valid_to,omitempty"`
	ProbationEndsAt *time.Time    `json:"probation_ends_at,omitempty"`
	CorrectionCount int           `json:"correction_count"`
	LastCorrectedAt *time.Time    `json:"last_corrected_at,omitempty"`
	Reasoning       string        `json:"reasoning,omitempty"`
	Embedding       []float32     `json:"-"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Active reports whether the belief is the live one for its cluster.
func (b *Belief) Active() bool {
	return b.ValidTo == nil
}

// Age returns how long the belief has been held, measured from ValidFrom.
func (b *Belief) Age(now time.Time) time.Duration {
	return now.Sub(b.ValidFrom)
}

// InProbation reports whether the belief is still inside its zero-penalty
// correction window. Once maturity has advanced past probation this is
// false regardless of any expiry timestamp.
func (b *Belief) InProbation(now time.Time) bool {
	if b.Maturity != MaturityProbation {
		return false
	}
	if b.ProbationEndsAt != nil && !now.Before(*b.ProbationEndsAt) {
		return false
	}
	return true
}

// Conviction bounds. Scores live in [0,100] everywhere.
const (
	MinConviction = 0.0
	MaxConviction = 100.0
)

func ClampConviction(c float64) float64 {
	if c < MinConviction {
		return MinConviction
	}
	if c > MaxConviction {
		return MaxConviction
	}
	return c
}

// CausalLinkType records why a belief is tied to an observation.
type CausalLinkType string

const (
	LinkFormation     CausalLinkType = "formation"
	LinkReinforcement CausalLinkType = "reinforcement"
)

// CausalLink ties a belief to the observation that formed or reinforced it.
type CausalLink struct {
	ID            uuid.UUID      `json:"id"`
	BeliefID      uuid.UUID      `json:"belief_id"`
	ObservationID string         `json:"observation_id"`
	Type          CausalLinkType `json:"type"`
	CreatedAt     time.Time      `json:"created_at"`
}

// BeliefWithScore is a belief plus a similarity score from recall.
type BeliefWithScore struct {
	Belief
	Score float32 `json:"score"`
}
