package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/llm"
	"go.uber.org/zap"
)

const subjectsReply = `{"subjects":[{"id":"s1","name":"running","kind":"activity"}]}`

func beliefsReply(rows string) string {
	return fmt.Sprintf(`{"beliefs":[%s]}`, rows)
}

func beliefRow(statement string, confidence float64) string {
	return fmt.Sprintf(
		`{"statement":%q,"about_id":"s1","polarity":"affirmed","confidence":%.0f,"evidence":["quote"],"time_scope":"current","belief_class":"preference","holder":"user"}`,
		statement, confidence)
}

func testObservation() domain.Observation {
	return domain.Observation{
		ID:          "obs-1",
		UserMessage: "I've started running every morning and I genuinely enjoy it.",
	}
}

func TestExtractTwoStageFlow(t *testing.T) {
	client := llm.NewMockClient()
	client.Enqueue(subjectsReply, nil)
	client.Enqueue(beliefsReply(beliefRow("I enjoy running", 80)), nil)

	o := NewOrchestrator(client, zap.NewNop())
	candidates, err := o.Extract(context.Background(), testObservation())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "I enjoy running", candidates[0].Statement)
	assert.Equal(t, "running", candidates[0].Subject)
	assert.Equal(t, domain.PolarityAffirmed, candidates[0].Polarity)
	assert.Equal(t, domain.ClassPreference, candidates[0].Class)
	assert.Equal(t, 80.0, candidates[0].Confidence)

	// The second call must include the first call's subjects.
	require.Len(t, client.Calls, 2)
	assert.Contains(t, client.Calls[1].UserPrompt, "running")
}

func TestExtractNoSubjectsSkipsSecondCall(t *testing.T) {
	client := llm.NewMockClient()
	client.Enqueue(`{"subjects":[]}`, nil)

	o := NewOrchestrator(client, zap.NewNop())
	candidates, err := o.Extract(context.Background(), testObservation())
	require.NoError(t, err)

	assert.Empty(t, candidates)
	assert.Len(t, client.Calls, 1)
}

func TestExtractRecoversFencedJSON(t *testing.T) {
	client := llm.NewMockClient()
	client.Enqueue("```json\n"+subjectsReply+"\n```", nil)
	client.Enqueue("Here are the beliefs I found:\n\n"+beliefsReply(beliefRow("I enjoy running", 75)), nil)

	o := NewOrchestrator(client, zap.NewNop())
	candidates, err := o.Extract(context.Background(), testObservation())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestExtractMalformedOutputIsTransient(t *testing.T) {
	client := llm.NewMockClient()
	client.Enqueue("I could not produce JSON for that, sorry.", nil)

	o := NewOrchestrator(client, zap.NewNop())
	_, err := o.Extract(context.Background(), testObservation())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrMalformedOutput)
}

func TestExtractClientErrorPropagates(t *testing.T) {
	client := llm.NewMockClient()
	client.Enqueue("", errors.New("upstream timeout"))

	o := NewOrchestrator(client, zap.NewNop())
	_, err := o.Extract(context.Background(), testObservation())
	require.Error(t, err)
	assert.NotErrorIs(t, err, llm.ErrMalformedOutput)
}

func TestExtractCapsCandidatesByConfidence(t *testing.T) {
	rows := beliefRow("belief one", 50) + "," +
		beliefRow("belief two", 90) + "," +
		beliefRow("belief three", 20) + "," +
		beliefRow("belief four", 70) + "," +
		beliefRow("belief five", 85) + "," +
		beliefRow("belief six", 60)

	client := llm.NewMockClient()
	client.Enqueue(subjectsReply, nil)
	client.Enqueue(beliefsReply(rows), nil)

	o := NewOrchestrator(client, zap.NewNop())
	candidates, err := o.Extract(context.Background(), testObservation())
	require.NoError(t, err)

	require.Len(t, candidates, maxCandidates)
	assert.Equal(t, 90.0, candidates[0].Confidence)
	assert.Equal(t, 85.0, candidates[1].Confidence)
	assert.Equal(t, 70.0, candidates[2].Confidence)
	assert.Equal(t, 60.0, candidates[3].Confidence)
}

func TestExtractValidationNormalizesLooseFields(t *testing.T) {
	rows := `{"statement":"  I enjoy running  ","about_id":"s1","polarity":"","confidence":140,"belief_class":"vibe","holder":""},` +
		`{"statement":"","about_id":"s1","confidence":50}`

	client := llm.NewMockClient()
	client.Enqueue(subjectsReply, nil)
	client.Enqueue(beliefsReply(rows), nil)

	o := NewOrchestrator(client, zap.NewNop())
	candidates, err := o.Extract(context.Background(), testObservation())
	require.NoError(t, err)

	// Blank statements are dropped; the rest is normalized.
	require.Len(t, candidates, 1)
	c := candidates[0]
	assert.Equal(t, "I enjoy running", c.Statement)
	assert.Equal(t, domain.PolarityAffirmed, c.Polarity)
	assert.Equal(t, domain.ClassOpinion, c.Class)
	assert.Equal(t, "user", c.Holder)
	assert.Equal(t, 100.0, c.Confidence)
}
