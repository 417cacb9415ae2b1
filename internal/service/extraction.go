package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/llm"
	"go.uber.org/zap"
)

const (
	// maxCandidates caps what one observation may contribute downstream.
	maxCandidates = 4

	subjectsTemperature = 0.2
	beliefsTemperature  = 0.3
)

// Orchestrator turns one observation into validated belief candidates via
// two chained model calls: subjects first, then statements about them.
// Either call failing to yield parseable JSON is a transient failure; the
// caller decides whether to retry.
type Orchestrator struct {
	client domain.ExtractionClient
	logger *zap.Logger
}

func NewOrchestrator(client domain.ExtractionClient, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{client: client, logger: logger}
}

type subjectsEnvelope struct {
	Subjects []domain.ExtractedSubject `json:"subjects"`
}

type beliefsEnvelope struct {
	Beliefs []rawCandidate `json:"beliefs"`
}

type rawCandidate struct {
	Statement  string   `json:"statement"`
	AboutID    string   `json:"about_id"`
	Polarity   string   `json:"polarity"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
	TimeScope  string   `json:"time_scope"`
	Class      string   `json:"belief_class"`
	Holder     string   `json:"holder"`
}

// Extract runs both stages. An empty subject list ends the pipeline early
// with no candidates and no second call.
func (o *Orchestrator) Extract(ctx context.Context, obs domain.Observation) ([]domain.Candidate, error) {
	subjects, err := o.extractSubjects(ctx, obs)
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		o.logger.Debug("no durable subjects found", zap.String("observation_id", obs.ID))
		return nil, nil
	}
	return o.extractBeliefs(ctx, obs, subjects)
}

func (o *Orchestrator) extractSubjects(ctx context.Context, obs domain.Observation) ([]domain.ExtractedSubject, error) {
	prompt := fmt.Sprintf(llm.SubjectsUserPrompt, obs.UserMessage, obs.ThinkingContent, obs.ResponseSummary)
	raw, err := o.client.Complete(ctx, llm.SubjectsSystemPrompt, prompt, subjectsTemperature)
	if err != nil {
		return nil, fmt.Errorf("subjects call: %w", err)
	}

	payload, err := llm.FirstJSONObject(raw)
	if err != nil {
		o.logger.Warn("unparseable subjects output",
			zap.String("observation_id", obs.ID),
			zap.Int("output_len", len(raw)))
		return nil, fmt.Errorf("subjects stage: %w", err)
	}

	var env subjectsEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("subjects stage: %w: %v", llm.ErrMalformedOutput, err)
	}
	return env.Subjects, nil
}

func (o *Orchestrator) extractBeliefs(ctx context.Context, obs domain.Observation, subjects []domain.ExtractedSubject) ([]domain.Candidate, error) {
	subjectsJSON, err := json.Marshal(subjects)
	if err != nil {
		return nil, fmt.Errorf("encode subjects: %w", err)
	}

	prompt := fmt.Sprintf(llm.BeliefsUserPrompt, string(subjectsJSON), obs.UserMessage, obs.ThinkingContent, obs.ResponseSummary)
	raw, err := o.client.Complete(ctx, llm.BeliefsSystemPrompt, prompt, beliefsTemperature)
	if err != nil {
		return nil, fmt.Errorf("beliefs call: %w", err)
	}

	payload, err := llm.FirstJSONObject(raw)
	if err != nil {
		o.logger.Warn("unparseable beliefs output",
			zap.String("observation_id", obs.ID),
			zap.Int("output_len", len(raw)))
		return nil, fmt.Errorf("beliefs stage: %w", err)
	}

	var env beliefsEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("beliefs stage: %w: %v", llm.ErrMalformedOutput, err)
	}

	byID := make(map[string]string, len(subjects))
	for _, s := range subjects {
		byID[s.ID] = s.Name
	}

	candidates := make([]domain.Candidate, 0, len(env.Beliefs))
	for _, rc := range env.Beliefs {
		c, ok := o.validate(rc, byID)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}

	// Strongest first; everything past the cap is dropped.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > maxCandidates {
		o.logger.Debug("candidate cap applied",
			zap.String("observation_id", obs.ID),
			zap.Int("dropped", len(candidates)-maxCandidates))
		candidates = candidates[:maxCandidates]
	}
	return candidates, nil
}

// validate turns one raw model row into a typed candidate, resolving the
// subject reference and normalizing loose fields. Rows with no usable
// statement are discarded rather than failing the batch.
func (o *Orchestrator) validate(rc rawCandidate, subjects map[string]string) (domain.Candidate, bool) {
	statement := strings.TrimSpace(rc.Statement)
	if statement == "" {
		return domain.Candidate{}, false
	}

	subject, ok := subjects[rc.AboutID]
	if !ok || subject == "" {
		// Unknown subject reference; keep the statement, subject stays blank.
		subject = strings.TrimSpace(rc.AboutID)
	}

	polarity := domain.PolarityAffirmed
	if strings.EqualFold(strings.TrimSpace(rc.Polarity), string(domain.PolarityNegated)) {
		polarity = domain.PolarityNegated
	}

	class := domain.BeliefClass(strings.ToLower(strings.TrimSpace(rc.Class)))
	switch class {
	case domain.ClassFact, domain.ClassOpinion, domain.ClassPreference, domain.ClassValue:
	default:
		class = domain.ClassOpinion
	}

	holder := strings.TrimSpace(rc.Holder)
	if holder == "" {
		holder = "user"
	}

	confidence := rc.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return domain.Candidate{
		Statement:  statement,
		Subject:    subject,
		Holder:     holder,
		Polarity:   polarity,
		Class:      class,
		Confidence: confidence,
		Evidence:   rc.Evidence,
		TimeScope:  strings.TrimSpace(rc.TimeScope),
	}, true
}
