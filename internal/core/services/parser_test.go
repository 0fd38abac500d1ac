package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

func testCatalog(t *testing.T) *domain.ToolRegistry {
	t.Helper()
	catalog, err := BuildSQLCatalog(newEmployeesStore(t), testAgentConfig(), nil)
	require.NoError(t, err)
	return catalog
}

func TestParseResponse(t *testing.T) {
	catalog := testCatalog(t)

	tests := []struct {
		name string
		text string
		want domain.ParsedStep
	}{
		{
			name: "action with input",
			text: "Thought: I need the schema.\nAction: describe_table\nAction Input: employees",
			want: domain.ParsedStep{Kind: domain.ParsedAction, Thought: "I need the schema.", ToolName: "describe_table", ToolInput: "employees"},
		},
		{
			name: "final answer",
			text: "Thought: I now know the final answer.\nFinal Answer: Alice earns 100000.",
			want: domain.ParsedStep{Kind: domain.ParsedFinalAnswer, Thought: "I now know the final answer.", Answer: "Alice earns 100000."},
		},
		{
			name: "final answer wins over action",
			text: "Action: list_tables\nAction Input: \nFinal Answer: four",
			want: domain.ParsedStep{Kind: domain.ParsedFinalAnswer, Answer: "four"},
		},
		{
			name: "multiline final answer",
			text: "Final Answer: Alice\nCharlie",
			want: domain.ParsedStep{Kind: domain.ParsedFinalAnswer, Answer: "Alice\nCharlie"},
		},
		{
			name: "empty final answer",
			text: "Thought: nothing to say\nFinal Answer:",
			want: domain.ParsedStep{Kind: domain.ParsedFinalAnswer, Thought: "nothing to say", Answer: ""},
		},
		{
			name: "thought without marker",
			text: "I should list the tables.\nAction: list_tables\nAction Input: ",
			want: domain.ParsedStep{Kind: domain.ParsedAction, Thought: "I should list the tables.", ToolName: "list_tables"},
		},
		{
			name: "no input needed",
			text: "Action: list_tables",
			want: domain.ParsedStep{Kind: domain.ParsedAction, ToolName: "list_tables"},
		},
		{
			name: "decorated tool name",
			text: "Action: `query_executor`\nAction Input: SELECT 1",
			want: domain.ParsedStep{Kind: domain.ParsedAction, ToolName: "query_executor", ToolInput: "SELECT 1"},
		},
		{
			name: "fenced input",
			text: "Action: query_executor\nAction Input: ```sql\nSELECT name FROM employees\n```",
			want: domain.ParsedStep{Kind: domain.ParsedAction, ToolName: "query_executor", ToolInput: "SELECT name FROM employees"},
		},
		{
			name: "quoted input",
			text: "Action: describe_table\nAction Input: \"employees\"",
			want: domain.ParsedStep{Kind: domain.ParsedAction, ToolName: "describe_table", ToolInput: "employees"},
		},
		{
			name: "inline call",
			text: "Action: describe_table(employees)",
			want: domain.ParsedStep{Kind: domain.ParsedAction, ToolName: "describe_table", ToolInput: "employees"},
		},
		{
			name: "hallucinated observation is dropped",
			text: "Action: query_executor\nAction Input: SELECT 1\nObservation: 1",
			want: domain.ParsedStep{Kind: domain.ParsedAction, ToolName: "query_executor", ToolInput: "SELECT 1"},
		},
		{
			name: "unknown tool",
			text: "Action: drop_everything\nAction Input: now",
			want: domain.ParsedStep{Kind: domain.ParsedMalformed, Reason: "unknown tool: drop_everything"},
		},
		{
			name: "tool name is case sensitive",
			text: "Action: List_Tables",
			want: domain.ParsedStep{Kind: domain.ParsedMalformed, Reason: "unknown tool: List_Tables"},
		},
		{
			name: "missing input",
			text: "Thought: run it\nAction: query_executor",
			want: domain.ParsedStep{Kind: domain.ParsedMalformed, Thought: "run it", Reason: "missing Action Input for tool: query_executor"},
		},
		{
			name: "second action block is not part of the input",
			text: "Action: query_executor\nAction Input: SELECT 1\nAction: list_tables\nAction Input: ",
			want: domain.ParsedStep{Kind: domain.ParsedAction, ToolName: "query_executor", ToolInput: "SELECT 1"},
		},
		{
			name: "input stops at a later thought",
			text: "Action: describe_table\nAction Input: employees\nThought: then I will query it",
			want: domain.ParsedStep{Kind: domain.ParsedAction, ToolName: "describe_table", ToolInput: "employees"},
		},
		{
			name: "marker inside a word",
			text: "Each transaction: has an id, I am unsure",
			want: domain.ParsedStep{Kind: domain.ParsedMalformed, Reason: "no recognizable action or final answer"},
		},
		{
			name: "final answer inside a word",
			text: "Thought: the semifinal answer: unclear",
			want: domain.ParsedStep{Kind: domain.ParsedMalformed, Thought: "the semifinal answer: unclear", Reason: "no recognizable action or final answer"},
		},
		{
			name: "prose only",
			text: "The answer is probably 42.",
			want: domain.ParsedStep{Kind: domain.ParsedMalformed, Reason: "no recognizable action or final answer"},
		},
		{
			name: "empty",
			text: "",
			want: domain.ParsedStep{Kind: domain.ParsedMalformed, Reason: "no recognizable action or final answer"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResponse(tt.text, catalog))
		})
	}
}

func TestParseResponse_NilCatalog(t *testing.T) {
	got := ParseResponse("Action: list_tables", nil)
	assert.Equal(t, domain.ParsedMalformed, got.Kind)
}

func TestParseResponse_NeverPanics(t *testing.T) {
	catalog := testCatalog(t)
	inputs := []string{
		"Action:", "Action Input:", "Final Answer", "Thought:", "Action: (", "Action: ()",
		"Action: describe_table(", "```", "``````", "\"", "'", strings.Repeat("Action: ", 1000),
		"\x00\xff\xfe", "Thought: \nAction: \nAction Input: \nObservation: ",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { ParseResponse(in, catalog) }, in)
	}
}

// What the prompt renders for a parsed step parses back to the same step
func TestParseResponse_RoundTripsPromptFormat(t *testing.T) {
	catalog := testCatalog(t)

	steps := []domain.Step{
		domain.ThoughtStep("I should check the schema"),
		domain.ActionStep(ToolDescribeTable, "employees"),
	}
	rendered := RenderTranscript(steps)
	got := ParseResponse(rendered, catalog)
	assert.Equal(t, domain.ParsedStep{
		Kind:      domain.ParsedAction,
		Thought:   "I should check the schema",
		ToolName:  ToolDescribeTable,
		ToolInput: "employees",
	}, got)

	rendered = RenderTranscript([]domain.Step{domain.ThoughtStep("done"), domain.FinalAnswerStep("4")})
	got = ParseResponse(rendered, catalog)
	assert.Equal(t, domain.ParsedStep{Kind: domain.ParsedFinalAnswer, Thought: "done", Answer: "4"}, got)
}
