package services

import (
	"regexp"
	"strings"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

const (
	reasonNoAction    = "no recognizable action or final answer"
	reasonUnknownTool = "unknown tool: "
	reasonNoInput     = "missing Action Input for tool: "
)

var (
	finalAnswerRe = regexp.MustCompile(`(?is)\bFinal\s*Answer\s*:\s*(.*)`)
	thoughtRe     = regexp.MustCompile(`(?is)\bThought\s*:\s*(.*?)\s*(?:\n\s*Action\s*:|\n\s*Action\s*Input\s*:|\n\s*Final\s*Answer\s*:|$)`)
	actionRe      = regexp.MustCompile(`(?i)\bAction\s*:[ \t]*([^\n]*)`)
	// the input ends where the next marker of any kind starts
	actionInputRe = regexp.MustCompile(`(?is)\bAction\s*Input\s*:\s*(.*?)\s*(?:\n\s*Observation\s*:|\n\s*Thought\s*:|\n\s*Action\s*:|\n\s*Action\s*Input\s*:|\n\s*Final\s*Answer\s*:|$)`)
	markerRe      = regexp.MustCompile(`(?i)\bAction\s*:|\bAction\s*Input\s*:|\bFinal\s*Answer\s*:`)
	// describe_table(employees) written on the Action line
	inlineCallRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)\)$`)
	codeFenceRe  = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*(.*?)\\s*```$")
)

// ParseResponse extracts an action or a final answer from raw model text.
// It never panics: anything it cannot make sense of comes back as Malformed.
//
// Precedence: a Final Answer marker wins over everything else, then a known
// tool with its input, then an unknown tool name, then Malformed.
func ParseResponse(text string, catalog *domain.ToolRegistry) domain.ParsedStep {
	thought := extractThought(text)

	if m := finalAnswerRe.FindStringSubmatch(text); len(m) > 1 {
		return domain.ParsedStep{
			Kind:    domain.ParsedFinalAnswer,
			Thought: thought,
			Answer:  strings.TrimSpace(m[1]),
		}
	}

	m := actionRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return malformed(thought, reasonNoAction)
	}
	name := cleanToolName(m[1])
	inlineInput, hasInline := "", false
	if call := inlineCallRe.FindStringSubmatch(name); len(call) == 3 {
		name, inlineInput, hasInline = call[1], cleanInput(call[2]), true
	}
	if name == "" {
		return malformed(thought, reasonNoAction)
	}

	tool, ok := lookupTool(catalog, name)
	if !ok {
		return malformed(thought, reasonUnknownTool+name)
	}

	input, hasInput := "", false
	if im := actionInputRe.FindStringSubmatch(text); len(im) > 1 {
		input, hasInput = cleanInput(im[1]), true
	} else if hasInline {
		input, hasInput = inlineInput, true
	}

	if !hasInput && tool.TakesInput() {
		return malformed(thought, reasonNoInput+name)
	}

	return domain.ParsedStep{
		Kind:      domain.ParsedAction,
		Thought:   thought,
		ToolName:  tool.Name,
		ToolInput: input,
	}
}

func malformed(thought, reason string) domain.ParsedStep {
	return domain.ParsedStep{Kind: domain.ParsedMalformed, Thought: thought, Reason: reason}
}

func lookupTool(catalog *domain.ToolRegistry, name string) (*domain.Tool, bool) {
	if catalog == nil {
		return nil, false
	}
	return catalog.GetTool(name)
}

func extractThought(text string) string {
	if m := thoughtRe.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	// the prompt ends with "Thought:", so models often continue without repeating it
	if loc := markerRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[:loc[0]])
	}
	return ""
}

// cleanToolName drops decoration models like to add around names: `list_tables`, "list_tables".
func cleanToolName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.Trim(name, "`*\"' ")
	name = strings.TrimRight(name, ".:;,")
	return strings.TrimSpace(name)
}

// cleanInput strips code fences and one layer of matching quotes
func cleanInput(raw string) string {
	in := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(in); len(m) > 1 {
		in = strings.TrimSpace(m[1])
	}
	if len(in) >= 2 {
		first, last := in[0], in[len(in)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			in = strings.TrimSpace(in[1 : len(in)-1])
		}
	}
	return in
}
