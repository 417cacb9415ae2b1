package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessierh/psyche/internal/domain"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*Handler, *memBeliefStore, *memCorrectionStore) {
	t.Helper()
	beliefs := newMemBeliefStore()
	corrections := newMemCorrectionStore()
	h := NewHandler(beliefs, corrections, DefaultCorrectionConfig(), zap.NewNop())
	return h, beliefs, corrections
}

func seedCorrectableBelief(t *testing.T, beliefs *memBeliefStore, maturity domain.MaturityState, conviction float64, age time.Duration) uuid.UUID {
	t.Helper()
	b := &domain.Belief{
		ID:            uuid.New(),
		Statement:     "I prefer tea over coffee",
		Holder:        "user",
		Polarity:      domain.PolarityAffirmed,
		Class:         domain.ClassPreference,
		Conviction:    conviction,
		EvidenceCount: 5,
		Maturity:      maturity,
		ValidFrom:     time.Now().Add(-age),
		CreatedAt:     time.Now().Add(-age),
	}
	require.NoError(t, beliefs.Create(context.Background(), b))
	return b.ID
}

// seedPriorCorrections exhausts the free-correction allowance so the
// distress path is actually exercised.
func seedPriorCorrections(t *testing.T, corrections *memCorrectionStore, beliefID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, corrections.Create(context.Background(), &domain.Correction{
			BeliefID: beliefID,
			Type:     domain.CorrectionClarification,
		}))
	}
}

func TestCorrectionProbationIsExempt(t *testing.T) {
	h, beliefs, _ := newTestHandler(t)
	ends := time.Now().Add(5 * 24 * time.Hour)
	id := seedCorrectableBelief(t, beliefs, domain.MaturityProbation, 80, 48*time.Hour)
	beliefs.beliefs[id].ProbationEndsAt = &ends

	res, err := h.Apply(context.Background(), CorrectionRequest{
		BeliefID:     id,
		Type:         domain.CorrectionChangedMind,
		NewStatement: "I prefer coffee over tea",
	})
	require.NoError(t, err)

	assert.True(t, res.Correction.Exempt)
	assert.Equal(t, "probation", res.Correction.ExemptReason)
	assert.Zero(t, res.Correction.Distress)
	assert.Equal(t, "Got it, updated.", res.Acknowledgement)
}

func TestCorrectionTypoAlwaysExempt(t *testing.T) {
	h, beliefs, corrections := newTestHandler(t)
	id := seedCorrectableBelief(t, beliefs, domain.MaturityEstablished, 95, 90*24*time.Hour)
	seedPriorCorrections(t, corrections, id, 5)

	res, err := h.Apply(context.Background(), CorrectionRequest{
		BeliefID:     id,
		Type:         domain.CorrectionTypo,
		NewStatement: "I prefer tea over coffee, always loose leaf",
	})
	require.NoError(t, err)

	assert.True(t, res.Correction.Exempt)
	assert.Equal(t, "correction_type", res.Correction.ExemptReason)
	assert.Zero(t, res.Correction.Distress)
}

func TestCorrectionRecentFormationExempt(t *testing.T) {
	h, beliefs, _ := newTestHandler(t)
	id := seedCorrectableBelief(t, beliefs, domain.MaturityEstablishing, 70, 30*time.Minute)

	res, err := h.Apply(context.Background(), CorrectionRequest{
		BeliefID:     id,
		Type:         domain.CorrectionMisunderstanding,
		NewStatement: "I prefer green tea specifically",
	})
	require.NoError(t, err)

	assert.True(t, res.Correction.Exempt)
	assert.Equal(t, "recent_formation", res.Correction.ExemptReason)
}

func TestCorrectionFirstFewAreFree(t *testing.T) {
	h, beliefs, _ := newTestHandler(t)
	id := seedCorrectableBelief(t, beliefs, domain.MaturityEstablished, 80, 90*24*time.Hour)

	res, err := h.Apply(context.Background(), CorrectionRequest{
		BeliefID:     id,
		Type:         domain.CorrectionChangedMind,
		NewStatement: "I drink both tea and coffee now",
	})
	require.NoError(t, err)

	assert.True(t, res.Correction.Exempt)
	assert.Equal(t, "few_prior_corrections", res.Correction.ExemptReason)
}

func TestCorrectionDistressScalesWithMaturity(t *testing.T) {
	tests := []struct {
		maturity     domain.MaturityState
		conviction   float64
		wantDistress float64
		wantAck      string
	}{
		{domain.MaturityEstablishing, 50, 0.4, "That's a bit of a shift for me, but noted."},
		{domain.MaturityEstablished, 50, 0.7, "That changes something I held pretty deeply. Give me a moment to sit with it."},
		{domain.MaturityCore, 100, 1.0, "That changes something I held pretty deeply. Give me a moment to sit with it."},
	}
	for _, tt := range tests {
		t.Run(string(tt.maturity), func(t *testing.T) {
			h, beliefs, corrections := newTestHandler(t)
			id := seedCorrectableBelief(t, beliefs, tt.maturity, tt.conviction, 90*24*time.Hour)
			seedPriorCorrections(t, corrections, id, 2)

			res, err := h.Apply(context.Background(), CorrectionRequest{
				BeliefID:     id,
				Type:         domain.CorrectionChangedMind,
				NewStatement: "I changed my mind about this",
			})
			require.NoError(t, err)

			assert.False(t, res.Correction.Exempt)
			assert.InDelta(t, tt.wantDistress, res.Correction.Distress, 0.001)
			assert.Equal(t, tt.wantAck, res.Acknowledgement)
		})
	}
}

func TestCorrectionUpdatesStatement(t *testing.T) {
	h, beliefs, _ := newTestHandler(t)
	id := seedCorrectableBelief(t, beliefs, domain.MaturityEstablishing, 60, 10*24*time.Hour)

	_, err := h.Apply(context.Background(), CorrectionRequest{
		BeliefID:     id,
		Type:         domain.CorrectionClarification,
		NewStatement: "I prefer herbal tea in the evenings",
	})
	require.NoError(t, err)

	b, err := beliefs.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "I prefer herbal tea in the evenings", b.Statement)
	assert.Equal(t, 1, b.CorrectionCount)
	assert.NotNil(t, b.LastCorrectedAt)
}

func TestCorrectionDeleteRetires(t *testing.T) {
	h, beliefs, _ := newTestHandler(t)
	id := seedCorrectableBelief(t, beliefs, domain.MaturityEstablishing, 60, 10*24*time.Hour)

	res, err := h.Apply(context.Background(), CorrectionRequest{
		BeliefID: id,
		Type:     domain.CorrectionUserError,
		Delete:   true,
	})
	require.NoError(t, err)
	assert.True(t, res.Correction.Deleted)

	b, err := beliefs.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, b.ValidTo, "retired rather than removed")
}

func TestCorrectionMissingBelief(t *testing.T) {
	h, _, corrections := newTestHandler(t)

	_, err := h.Apply(context.Background(), CorrectionRequest{
		BeliefID:     uuid.New(),
		Type:         domain.CorrectionTypo,
		NewStatement: "anything",
	})
	assert.ErrorIs(t, err, ErrBeliefNotFound)
	assert.Empty(t, corrections.corrections)
}
