package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrToolNotFound is returned when a tool name is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Registry holds the tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.tools[tool.Name()]; dup {
		return fmt.Errorf("tool %s already exists", tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns the tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	list := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		list = append(list, tool)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Execute checks required arguments and runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	for _, p := range tool.Parameters() {
		if _, present := args[p.Name]; p.Required && !present {
			return "", fmt.Errorf("missing required parameter: %s", p.Name)
		}
	}
	return tool.Execute(ctx, args)
}

// ToolSchema is the OpenAI function-calling form of a tool.
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// MCPToolSchema is a tool as listed by GET /mcp/tools.
type MCPToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// GetSchemas returns every tool in function-calling form.
func (r *Registry) GetSchemas() []ToolSchema {
	out := []ToolSchema{}
	for _, tool := range r.List() {
		out = append(out, ToolSchema{
			Type: "function",
			Function: FunctionSchema{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  InputSchema(tool.Parameters()),
			},
		})
	}
	return out
}

// MCPSchemas returns the MCP listing of every tool.
func (r *Registry) MCPSchemas() []MCPToolSchema {
	out := []MCPToolSchema{}
	for _, tool := range r.List() {
		out = append(out, MCPToolSchema{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: InputSchema(tool.Parameters()),
		})
	}
	return out
}

// InputSchema renders parameters as a JSON Schema object.
func InputSchema(params []ParameterDef) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		properties[p.Name] = property(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func property(p ParameterDef) map[string]any {
	prop := map[string]any{
		"type":        p.Type,
		"description": p.Description,
	}
	if len(p.Enum) > 0 {
		prop["enum"] = p.Enum
	}
	if p.Minimum != nil {
		prop["minimum"] = *p.Minimum
	}
	if p.Maximum != nil {
		prop["maximum"] = *p.Maximum
	}
	if p.Default != nil {
		prop["default"] = p.Default
	}
	return prop
}

// NewDefaultRegistry registers search_web and fetch_url. Either may be nil.
func NewDefaultRegistry(search *SearchWebTool, fetch *FetchURLTool) *Registry {
	registry := NewRegistry()
	if search != nil {
		registry.Register(search)
	}
	if fetch != nil {
		registry.Register(fetch)
	}
	return registry
}
