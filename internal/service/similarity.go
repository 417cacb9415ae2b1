package service

import "strings"

// stopwords excluded from keyword sets before similarity comparison.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "i": {}, "im": {}, "me": {}, "my": {},
	"you": {}, "your": {}, "he": {}, "she": {}, "it": {}, "its": {}, "we": {},
	"they": {}, "them": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"am": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "can": {}, "may": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "with": {},
	"by": {}, "from": {}, "about": {}, "as": {}, "and": {}, "or": {}, "but": {},
	"so": {}, "if": {}, "then": {}, "than": {}, "very": {}, "really": {},
	"just": {}, "quite": {}, "some": {}, "any": {}, "all": {},
}

// negationMarkers are prefix/verb patterns signaling a negated statement.
// This is a heuristic approximation kept behind the NegationPolicy seam so
// it can be replaced without touching the consolidation engine.
var negationMarkers = []string{
	"don't", "dont", "do not", "doesn't", "doesnt", "does not",
	"never", "avoid", "hate", "dislike", "can't stand", "cant stand",
	"not", "no longer", "stopped", "won't", "wont", "will not",
}

// NegationPolicy is the replaceable conflict-detection heuristic: Detect
// reports whether a statement reads as negated, Strip removes the negation
// markers so the residual content can be compared across polarities.
type NegationPolicy struct {
	Detect func(statement string) bool
	Strip  func(statement string) string
}

func DefaultNegationPolicy() NegationPolicy {
	return NegationPolicy{Detect: detectNegation, Strip: stripNegation}
}

func detectNegation(statement string) bool {
	s := " " + strings.ToLower(statement) + " "
	for _, m := range negationMarkers {
		if strings.Contains(s, " "+m+" ") {
			return true
		}
	}
	return false
}

func stripNegation(statement string) string {
	words := strings.Fields(strings.ToLower(statement))
	var kept []string
	for i := 0; i < len(words); i++ {
		w := normalizeToken(words[i])
		// Two-word markers ("do not", "no longer", "can't stand")
		if i+1 < len(words) {
			pair := w + " " + normalizeToken(words[i+1])
			if isNegationMarker(pair) {
				i++
				continue
			}
		}
		if isNegationMarker(w) {
			continue
		}
		kept = append(kept, words[i])
	}
	return strings.Join(kept, " ")
}

func isNegationMarker(w string) bool {
	for _, m := range negationMarkers {
		if w == m {
			return true
		}
	}
	return false
}

func normalizeToken(w string) string {
	return strings.Trim(strings.ToLower(w), ".,!?;:'\"()[]")
}

// Keywords reduces a statement to its normalized keyword set: lowercase,
// punctuation stripped, stopwords removed.
func Keywords(statement string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(statement) {
		t := normalizeToken(w)
		if len(t) < 2 {
			continue
		}
		if _, ok := stopwords[t]; ok {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// Jaccard computes set similarity: |a∩b| / |a∪b|. Two empty sets are not
// similar; there is nothing to compare.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// StatementSimilarity is the engine's canonical text-similarity measure:
// Jaccard over stop-word-filtered keyword sets.
func StatementSimilarity(a, b string) float64 {
	return Jaccard(Keywords(a), Keywords(b))
}
