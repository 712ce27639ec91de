// Package tools holds the tools served by the search proxy.
package tools

import "context"

// Tool is a named operation callable over MCP.
type Tool interface {
	Name() string
	// Description is shown to MCP clients and models.
	Description() string
	Parameters() []ParameterDef
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ParameterDef describes one argument. Type is a JSON Schema type name.
type ParameterDef struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *int     `json:"minimum,omitempty"`
	Maximum     *int     `json:"maximum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

func intPtr(n int) *int { return &n }
