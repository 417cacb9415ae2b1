package service

import (
	"regexp"
	"strings"

	"github.com/tessierh/psyche/internal/domain"
)

// Classification strategies. These are deliberately pluggable: the engine
// only depends on the function signatures, so the keyword heuristics below
// can be swapped for a model-based classifier without touching admission
// or the governor.
type (
	TrivialityClassifier func(domain.Observation) bool
	ImpactClassifier     func(domain.Observation) domain.Impact
	CostEstimator        func(domain.Observation) int
)

const (
	// minMeaningfulLength is the shortest user message worth extracting from.
	minMeaningfulLength = 12

	// maxEstimatedCost caps what a single observation can be priced at.
	maxEstimatedCost = 40

	heavyKeywordWeight    = 8
	moderateKeywordWeight = 3
	lengthCostDivisor     = 200
)

var greetingPattern = regexp.MustCompile(
	`(?i)^(hi|hey|hello|yo|sup|thanks|thank you|thx|ok|okay|yes|no|yep|nope|bye|goodbye|good (morning|afternoon|evening|night)|lol|haha)[.!?\s]*$`)

// heavyKeywords mark emotionally or identity-charged content. Hits here
// dominate the cost estimate and force the impact class to high.
var heavyKeywords = []string{
	"death", "dying", "died", "grief", "trauma", "abuse",
	"depress", "anxiety", "anxious", "suicid", "therapy",
	"identity", "who i am", "meaning of", "purpose", "faith", "god",
	"divorce", "breakup", "love", "hate myself", "ashamed", "afraid",
	"lonely", "worthless",
}

// moderateKeywords mark self-disclosure that matters but does not cut deep.
var moderateKeywords = []string{
	"i feel", "i think", "i believe", "i value", "i want", "i wish",
	"i prefer", "i always", "i never", "my family", "my partner",
	"my job", "my friend", "important to me", "care about",
}

// DefaultTriviality skips short greetings and acknowledgments outright.
func DefaultTriviality(obs domain.Observation) bool {
	msg := strings.TrimSpace(obs.UserMessage)
	if len(msg) < minMeaningfulLength {
		return true
	}
	return greetingPattern.MatchString(msg)
}

// DefaultImpact classifies identity impact by keyword presence.
func DefaultImpact(obs domain.Observation) domain.Impact {
	text := strings.ToLower(obs.UserMessage + " " + obs.ThinkingContent)
	for _, kw := range heavyKeywords {
		if strings.Contains(text, kw) {
			return domain.ImpactHigh
		}
	}
	for _, kw := range moderateKeywords {
		if strings.Contains(text, kw) {
			return domain.ImpactMedium
		}
	}
	if len(obs.UserMessage) > 400 {
		return domain.ImpactMedium
	}
	return domain.ImpactLow
}

// DefaultCost prices an observation: a weighted sum over topic-sensitivity
// keyword hits plus a length term, capped at maxEstimatedCost.
func DefaultCost(obs domain.Observation) int {
	text := strings.ToLower(obs.UserMessage + " " + obs.ThinkingContent)

	cost := 0
	for _, kw := range heavyKeywords {
		if strings.Contains(text, kw) {
			cost += heavyKeywordWeight
		}
	}
	for _, kw := range moderateKeywords {
		if strings.Contains(text, kw) {
			cost += moderateKeywordWeight
		}
	}
	cost += len(obs.UserMessage) / lengthCostDivisor

	if cost < 1 {
		cost = 1
	}
	if cost > maxEstimatedCost {
		cost = maxEstimatedCost
	}
	return cost
}
