package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/llm"
	"go.uber.org/zap"
)

type pipelineFixture struct {
	pipeline *Pipeline
	governor *Governor
	client   *llm.MockClient
	beliefs  *memBeliefStore
	queue    *memQueueStore
	state    *memResourceStateStore
	events   *memResourceEventStore
}

func newPipelineFixture(t *testing.T, energy int) *pipelineFixture {
	t.Helper()
	logger := zap.NewNop()

	g, state, events := newTestGovernor(t, energy)
	queue := newMemQueueStore()
	beliefs := newMemBeliefStore()
	links := newMemCausalLinkStore()
	client := llm.NewMockClient()

	admission := NewAdmissionController(g, queue, DefaultAdmissionConfig(), logger)
	orchestrator := NewOrchestrator(client, logger)
	engine := NewEngine(beliefs, links, nil, DefaultConsolidationConfig(), logger)
	tracker := NewTracker(beliefs, domain.DefaultMaturityRules(), logger)
	p := NewPipeline(g, admission, orchestrator, engine, tracker, queue, DefaultPipelineConfig(), logger)

	return &pipelineFixture{
		pipeline: p,
		governor: g,
		client:   client,
		beliefs:  beliefs,
		queue:    queue,
		state:    state,
		events:   events,
	}
}

func (f *pipelineFixture) enqueueExtraction(statement string, confidence float64) {
	f.client.Enqueue(subjectsReply, nil)
	f.client.Enqueue(beliefsReply(beliefRow(statement, confidence)), nil)
}

func TestPipelineFullExtractionFlow(t *testing.T) {
	f := newPipelineFixture(t, 100)
	f.enqueueExtraction("I enjoy running every morning", 80)

	res, err := f.pipeline.HandleObservation(context.Background(), reflectiveObservation("obs-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionExtractNow, res.Decision.Outcome)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ActionInserted, res.Results[0].Action)

	// Energy was actually spent.
	assert.Less(t, f.governor.Energy(), 100)

	active, err := f.beliefs.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "I enjoy running every morning", active[0].Statement)
}

func TestPipelineDuplicateObservationReinforces(t *testing.T) {
	f := newPipelineFixture(t, 100)
	ctx := context.Background()

	f.enqueueExtraction("I enjoy running every morning", 80)
	_, err := f.pipeline.HandleObservation(ctx, reflectiveObservation("obs-1"))
	require.NoError(t, err)

	f.enqueueExtraction("I enjoy running every morning", 90)
	res, err := f.pipeline.HandleObservation(ctx, reflectiveObservation("obs-2"))
	require.NoError(t, err)

	require.Len(t, res.Results, 1)
	assert.Equal(t, ActionReinforced, res.Results[0].Action)

	active, err := f.beliefs.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].EvidenceCount)
}

func TestPipelineExtractionFailureRequeues(t *testing.T) {
	f := newPipelineFixture(t, 100)
	f.client.Enqueue("sorry, no JSON today", nil)

	_, err := f.pipeline.HandleObservation(context.Background(), reflectiveObservation("obs-1"))
	require.Error(t, err)

	// The attempt cost energy and the observation went back on the queue.
	assert.Less(t, f.governor.Energy(), 100)
	assert.Equal(t, 1, f.queue.unprocessedByReason(domain.ReasonExtractionFailed))
}

func TestPipelineConsentApprovalProcesses(t *testing.T) {
	f := newPipelineFixture(t, 40)
	ctx := context.Background()

	res, err := f.pipeline.HandleObservation(ctx, heavyObservation("obs-1"))
	require.NoError(t, err)
	require.Equal(t, domain.DecisionAskConsent, res.Decision.Outcome)

	f.enqueueExtraction("Grief has been on my mind", 85)
	res, err = f.pipeline.Consent(ctx, "obs-1", true)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionExtractNow, res.Decision.Outcome)
	require.Len(t, res.Results, 1)

	// Entry is finalized; a second reply finds nothing pending.
	_, err = f.pipeline.Consent(ctx, "obs-1", true)
	assert.ErrorIs(t, err, ErrNoPendingConsent)
}

func TestPipelineConsentDecline(t *testing.T) {
	f := newPipelineFixture(t, 40)
	ctx := context.Background()

	_, err := f.pipeline.HandleObservation(ctx, heavyObservation("obs-1"))
	require.NoError(t, err)

	res, err := f.pipeline.Consent(ctx, "obs-1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonConsentDeclined, res.Decision.Reason)

	// Capacity untouched, decline logged, entry never drains.
	assert.Equal(t, 40, f.governor.Energy())
	assert.Len(t, f.events.byType(domain.EventDecline), 1)

	next, err := f.queue.NextProcessable(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestPipelineConsentUnknownObservation(t *testing.T) {
	f := newPipelineFixture(t, 100)
	_, err := f.pipeline.Consent(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, ErrNoPendingConsent)
}

func TestPipelineDrainProcessesByPriority(t *testing.T) {
	f := newPipelineFixture(t, 100)
	ctx := context.Background()

	low := &domain.QueueEntry{
		Observation:   domain.Observation{ID: "obs-low", UserMessage: "something minor happened"},
		Reason:        domain.ReasonInsufficientEnergy,
		Priority:      3,
		EstimatedCost: 5,
		Impact:        domain.ImpactLow,
	}
	high := &domain.QueueEntry{
		Observation:   domain.Observation{ID: "obs-high", UserMessage: "something important happened"},
		Reason:        domain.ReasonInsufficientEnergy,
		Priority:      9,
		EstimatedCost: 10,
		Impact:        domain.ImpactHigh,
	}
	require.NoError(t, f.queue.Enqueue(ctx, low))
	require.NoError(t, f.queue.Enqueue(ctx, high))

	f.enqueueExtraction("high priority belief", 80)
	f.enqueueExtraction("low priority belief", 60)

	report, err := f.pipeline.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 0, report.Remaining)

	// The high-priority entry consumed the first queued model replies.
	require.GreaterOrEqual(t, len(f.client.Calls), 2)
	assert.Contains(t, f.client.Calls[0].UserPrompt, "something important happened")
}

func TestPipelineDrainStopsWhenHeadUnaffordable(t *testing.T) {
	f := newPipelineFixture(t, 10)
	ctx := context.Background()

	entry := &domain.QueueEntry{
		Observation:   domain.Observation{ID: "obs-1", UserMessage: "an expensive reflection"},
		Reason:        domain.ReasonInsufficientEnergy,
		Priority:      7,
		EstimatedCost: 30,
		Impact:        domain.ImpactMedium,
	}
	require.NoError(t, f.queue.Enqueue(ctx, entry))

	report, err := f.pipeline.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Remaining)
	assert.Empty(t, f.client.Calls)
}

func TestPipelineDrainRespectsBatchCap(t *testing.T) {
	f := newPipelineFixture(t, 100)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, f.queue.Enqueue(ctx, &domain.QueueEntry{
			Observation:   domain.Observation{ID: "obs", UserMessage: "a deferred thought"},
			Reason:        domain.ReasonInsufficientEnergy,
			Priority:      5,
			EstimatedCost: 2,
			Impact:        domain.ImpactLow,
		}))
	}
	for i := 0; i < 3; i++ {
		f.enqueueExtraction("a deferred belief", 50)
	}

	report, err := f.pipeline.Drain(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Remaining)
}

func TestPipelineDrainRequeuesWhenSpendFails(t *testing.T) {
	f := newPipelineFixture(t, 100)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, &domain.QueueEntry{
		Observation:   domain.Observation{ID: "obs-1", UserMessage: "a deferred thought"},
		Reason:        domain.ReasonInsufficientEnergy,
		Priority:      5,
		EstimatedCost: 10,
		Impact:        domain.ImpactMedium,
	}))
	f.state.saveErr = errors.New("disk full")

	report, err := f.pipeline.Drain(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Remaining)

	// The observation survived the failed spend: back on the queue, no
	// model calls made, no energy lost.
	assert.Equal(t, 1, f.queue.unprocessedByReason(domain.ReasonExtractionFailed))
	assert.Empty(t, f.client.Calls)
	assert.Equal(t, 100, f.governor.Energy())
}

func TestPipelineStatus(t *testing.T) {
	f := newPipelineFixture(t, 55)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, &domain.QueueEntry{
		Observation: domain.Observation{ID: "obs-1", UserMessage: "x"},
		Reason:      domain.ReasonInsufficientEnergy,
		Priority:    9,
	}))
	require.NoError(t, f.queue.Enqueue(ctx, &domain.QueueEntry{
		Observation: domain.Observation{ID: "obs-2", UserMessage: "y"},
		Reason:      domain.ReasonInsufficientEnergy,
		Priority:    3,
	}))

	status, err := f.pipeline.Status(ctx)
	require.NoError(t, err)

	assert.Equal(t, 55, status.Energy)
	assert.Equal(t, domain.StateReduced, status.State)
	assert.Equal(t, "a bit tired", status.Feeling)
	assert.True(t, status.CanProcess)
	assert.Equal(t, 2, status.QueuedExtractions)
	assert.Equal(t, 1, status.HighPriorityQueued)
	assert.NotEmpty(t, status.RecoveryEstimate)
}

func TestPipelineStatusCritical(t *testing.T) {
	f := newPipelineFixture(t, 4)
	status, err := f.pipeline.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StateCritical, status.State)
	assert.Equal(t, "exhausted", status.Feeling)
	assert.False(t, status.CanProcess)
}

func TestRecoveryWorkerTickRestoresAndDrains(t *testing.T) {
	f := newPipelineFixture(t, 58)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, &domain.QueueEntry{
		Observation:   domain.Observation{ID: "obs-1", UserMessage: "a deferred thought"},
		Reason:        domain.ReasonInsufficientEnergy,
		Priority:      5,
		EstimatedCost: 2,
		Impact:        domain.ImpactLow,
	}))
	f.enqueueExtraction("a recovered belief", 60)

	w := NewRecoveryWorker(f.governor, f.pipeline, DefaultRecoveryConfig(), zap.NewNop())
	w.tick()

	// 58 + 5 recovery - 2 spent on the drained entry.
	assert.Equal(t, 61, f.governor.Energy())
	n, err := f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecoveryWorkerBelowThresholdSkipsDrain(t *testing.T) {
	f := newPipelineFixture(t, 20)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, &domain.QueueEntry{
		Observation:   domain.Observation{ID: "obs-1", UserMessage: "a deferred thought"},
		Reason:        domain.ReasonInsufficientEnergy,
		Priority:      5,
		EstimatedCost: 2,
		Impact:        domain.ImpactLow,
	}))

	w := NewRecoveryWorker(f.governor, f.pipeline, DefaultRecoveryConfig(), zap.NewNop())
	w.tick()

	assert.Equal(t, 25, f.governor.Energy())
	n, err := f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.client.Calls)
}

func TestMaturationWorkerStartStop(t *testing.T) {
	tracker, _ := newTestTracker(t)
	w := NewMaturationWorker(tracker, time.Hour, zap.NewNop())
	w.Start()
	w.Stop()
}
