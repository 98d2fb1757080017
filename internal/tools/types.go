// Package tools implements the memory tools exposed to assistants over MCP.
// Each tool validates its JSON arguments, calls the retrieval engine and
// answers with a Result envelope.
package tools

import "context"

// Tool is the interface all tools must implement.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON Schema of the tool's arguments.
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) *Result
}

// ReadOnlyTool is implemented by tools that never modify stored memories.
type ReadOnlyTool interface {
	ReadOnly() bool
}
