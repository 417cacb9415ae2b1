package llm

// SubjectsSystemPrompt drives the first extraction stage: enumerate the
// salient subjects of a conversational turn.
const SubjectsSystemPrompt = `You are the subject-identification stage of a belief extraction pipeline.
Given one conversational turn, identify the subjects (people, things, topics) the user reveals something durable about.

Respond ONLY with a JSON object. No markdown, no explanation:
{"subjects":[{"id":"s1","name":"public speaking","kind":"activity"}]}

Use short stable ids (s1, s2, ...). If nothing durable is revealed, respond with {"subjects":[]}.`

// SubjectsUserPrompt wraps the observation for the first stage. Order:
// user message, optional thinking trace, optional response summary.
const SubjectsUserPrompt = `User message:
%s

Assistant thinking (may be empty):
%s

Assistant response summary (may be empty):
%s`

// BeliefsSystemPrompt drives the second extraction stage: candidate
// statements about the subjects found by the first stage.
const BeliefsSystemPrompt = `You are the belief-identification stage of a belief extraction pipeline.
Given a conversational turn and a list of subjects, extract candidate belief statements about those subjects.

For each candidate:
- statement: a clear first-person statement ("I value honesty")
- about_id: the id of the subject it concerns
- polarity: "affirmed" or "negated"
- confidence: 0-100, how strongly the turn supports the statement
- evidence: short quotes from the turn supporting it
- time_scope: "current", "past", or "aspirational"
- belief_class: one of "fact", "opinion", "preference", "value"
- holder: who holds the belief, usually "user"

Respond ONLY with a JSON object. No markdown, no explanation:
{"beliefs":[{"statement":"I value honesty","about_id":"s1","polarity":"affirmed","confidence":85,"evidence":["honesty matters to me"],"time_scope":"current","belief_class":"value","holder":"user"}]}

If nothing qualifies, respond with {"beliefs":[]}.`

// BeliefsUserPrompt wraps the observation plus the subject list for the
// second stage.
const BeliefsUserPrompt = `Subjects:
%s

User message:
%s

Assistant thinking (may be empty):
%s

Assistant response summary (may be empty):
%s`
