package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Tool represents an executable capability available to the agent
type Tool struct {
	Name        string
	Description string
	// InputShape describes the expected argument for the prompt, e.g. "SQL query".
	// Empty means the tool takes no input.
	InputShape string
	Invoke     ToolInvoker
}

// ToolInvoker is the function signature for tool execution.
// Failures the model can fix come back as text or as a *ToolError; any other
// error is reserved for conditions that must abort the run.
type ToolInvoker func(ctx context.Context, input string) (string, error)

// TakesInput reports whether the tool expects an Action Input
func (t *Tool) TakesInput() bool {
	return t.InputShape != ""
}

// ToolRegistry is the catalog of tools available to one run.
// It is filled once and only read afterwards.
type ToolRegistry struct {
	tools map[string]*Tool
}

// NewToolRegistry creates a new empty registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry
func (r *ToolRegistry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Invoke == nil {
		return fmt.Errorf("tool %s has no invoker", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool already registered: %s", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Invoke runs a tool by name. Unknown names are rejected here, never guessed.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, input string) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool.Invoke(ctx, input)
}

// GetTool returns a tool by name
func (r *ToolRegistry) GetTool(name string) (*Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Has reports whether a tool with that exact name exists
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns tool names sorted alphabetically
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListTools returns all registered tools, sorted by name
func (r *ToolRegistry) ListTools() []*Tool {
	tools := make([]*Tool, 0, len(r.tools))
	for _, name := range r.Names() {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Len returns the number of registered tools
func (r *ToolRegistry) Len() int {
	return len(r.tools)
}

// FormatToolsForPrompt generates a concise description of available tools for LLM prompt.
// Output is sorted so identical catalogs always render identically.
func (r *ToolRegistry) FormatToolsForPrompt() string {
	var b strings.Builder
	for _, tool := range r.ListTools() {
		input := "no input"
		if tool.TakesInput() {
			input = "input: " + tool.InputShape
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", tool.Name, tool.Description, input)
	}
	return b.String()
}

// FilterByNames returns a new ToolRegistry containing only the tools whose names match the given list.
// The new registry shares Tool pointers with the original (same Invoke funcs).
func (r *ToolRegistry) FilterByNames(names []string) *ToolRegistry {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	filtered := NewToolRegistry()
	for name, tool := range r.tools {
		if _, ok := allowed[name]; ok {
			filtered.tools[name] = tool
		}
	}
	return filtered
}
