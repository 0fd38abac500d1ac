package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript(t *testing.T) {
	tr := NewTranscript()
	_, ok := tr.Last()
	assert.False(t, ok)

	tr.Append(ThoughtStep("look at tables"))
	tr.Append(ActionStep("list_tables", ""))
	tr.Append(ObservationStep("employees"))

	assert.Equal(t, 3, tr.Len())
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, StepObservation, last.Kind)

	tail := tr.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, StepAction, tail[0].Kind)
	assert.Len(t, tr.Tail(0), 3)
	assert.Len(t, tr.Tail(10), 3)

	// readers get copies
	steps := tr.Steps()
	steps[0].Text = "changed"
	assert.Equal(t, "look at tables", tr.Steps()[0].Text)
	tail[0].ToolName = "changed"
	assert.Equal(t, "list_tables", tr.Steps()[1].ToolName)
}

func TestParseErrorStep(t *testing.T) {
	s := ParseErrorStep("blah", "no recognizable action or final answer")
	assert.Equal(t, StepParseError, s.Kind)
	assert.Equal(t, "blah", s.RawText)
	assert.Equal(t, "Invalid format: no recognizable action or final answer. Please follow the Thought/Action/Final-Answer structure.", s.Text)
}

func TestSyntheticObservation(t *testing.T) {
	assert.True(t, SyntheticObservation("Error: unknown tool").Synthetic)
	assert.False(t, ObservationStep("employees").Synthetic)
}

func TestRunResultOutcome(t *testing.T) {
	assert.True(t, RunResult{Outcome: OutcomeAnswer}.IsAnswer())
	assert.True(t, RunResult{Outcome: OutcomeExhausted}.IsExhausted())
	assert.True(t, RunResult{Outcome: OutcomeFatal}.IsFatal())
	assert.False(t, RunResult{Outcome: OutcomeFatal}.IsAnswer())
}
