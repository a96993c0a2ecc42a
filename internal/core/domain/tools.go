package domain

import (
	"context"
	"fmt"
)

// Tool represents an executable capability made available to the analysis
// specialists (report reader, reference lookup, keyword rule fallbacks).
type Tool struct {
	Name        string
	Description string
	Parameters  ToolParameters
	Execute     ToolExecutor
}

// ToolParameters defines the schema for tool inputs.
type ToolParameters struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required"`
}

// ToolExecutor is the function signature for tool execution. Tools always
// produce text.
type ToolExecutor func(ctx context.Context, params map[string]interface{}) (string, error)

// ToolRegistry manages available tools.
type ToolRegistry struct {
	tools map[string]*Tool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(tool *Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %q has no executor", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Execute validates params against the tool's schema and runs it.
// Validation happens here, at the invocation boundary, so individual tools
// can assume their required inputs are present.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params map[string]interface{}) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}
	if err := validateParams(tool.Parameters, params); err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return tool.Execute(ctx, params)
}

func validateParams(schema ToolParameters, params map[string]interface{}) error {
	for _, req := range schema.Required {
		v, ok := params[req]
		if !ok {
			return fmt.Errorf("missing required parameter %q", req)
		}
		if s, isStr := v.(string); isStr && s == "" {
			return fmt.Errorf("required parameter %q is empty", req)
		}
	}
	return nil
}

// GetTool returns a tool by name.
func (r *ToolRegistry) GetTool(name string) (*Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// ListTools returns all registered tools.
func (r *ToolRegistry) ListTools() []*Tool {
	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// FilterByNames returns a registry containing only the named tools.
// The filtered registry shares Tool pointers with the original.
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
