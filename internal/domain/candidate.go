package domain

// ExtractedSubject is one salient subject identified by the first
// extraction call.
type ExtractedSubject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// Candidate is a typed belief candidate produced by the extraction
// orchestrator. Nothing loosely typed crosses this boundary: the
// orchestrator either yields validated candidates or a parse failure.
type Candidate struct {
	Statement  string      `json:"statement"`
	Subject    string      `json:"subject"`
	Holder     string      `json:"holder"`
	Polarity   Polarity    `json:"polarity"`
	Class      BeliefClass `json:"belief_class"`
	Confidence float64     `json:"confidence"`
	Evidence   []string    `json:"evidence,omitempty"`
	TimeScope  string      `json:"time_scope,omitempty"`
}
