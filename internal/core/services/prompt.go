package services

import (
	"fmt"
	"strings"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

// FormatPrompt renders the question, the tool catalog and the transcript so
// far into one prompt. It is a pure function: identical inputs always give
// identical output.
func FormatPrompt(question string, catalog *domain.ToolRegistry, steps []domain.Step) string {
	var b strings.Builder

	b.WriteString(`You are an agent designed to interact with a SQL database.
Given an input question, create a syntactically correct SQL query to run, then look at the results of the query and return the answer.
Unless the user specifies a specific number of examples they wish to obtain, limit your query to at most a few results.
Never query for all the columns from a specific table, only ask for the relevant columns given the question.
You have access to tools for interacting with the database. Only use the information returned by the tools to construct your final answer.
Always look at the tables in the database first, then query the schema of the most relevant tables.
You MUST double check your query before executing it. If a query fails, rewrite it; never run the exact same failing query twice in a row.
DO NOT make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the database.

Available Tools:
`)
	if catalog != nil {
		b.WriteString(catalog.FormatToolsForPrompt())
	}

	toolNames := ""
	if catalog != nil {
		toolNames = strings.Join(catalog.Names(), ", ")
	}
	fmt.Fprintf(&b, `
Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [%s]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Begin!

Question: %s
`, toolNames, strings.TrimSpace(question))

	writeTranscript(&b, steps)
	b.WriteString("Thought:")
	return b.String()
}

// RenderTranscript renders steps the same way the prompt shows them
func RenderTranscript(steps []domain.Step) string {
	var b strings.Builder
	writeTranscript(&b, steps)
	return b.String()
}

// writeTranscript renders steps as the Thought/Action/Observation blocks the
// model is asked to produce.
func writeTranscript(b *strings.Builder, steps []domain.Step) {
	for _, s := range steps {
		switch s.Kind {
		case domain.StepThought:
			fmt.Fprintf(b, "Thought: %s\n", s.Text)
		case domain.StepAction:
			fmt.Fprintf(b, "Action: %s\n", s.ToolName)
			fmt.Fprintf(b, "Action Input: %s\n", s.ToolInput)
		case domain.StepObservation, domain.StepParseError:
			fmt.Fprintf(b, "Observation: %s\n", s.Text)
		case domain.StepFinalAnswer:
			fmt.Fprintf(b, "Final Answer: %s\n", s.Text)
		}
	}
}
