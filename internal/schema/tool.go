// Package schema contains the core contracts shared across helixbot packages.
// Concrete implementations live in their respective packages; this package is
// the single canonical source of truth for every shared type and interface.
package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface all LLM-callable tools must satisfy.
// Built-in tools and MCP-wrapped tools both implement this interface.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// ToolCallRequest is one tool invocation to dispatch: the tool name plus its
// argument mapping, as produced by the LLM-interpretation step.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult is the structured outcome of dispatching one ToolCallRequest.
// Exactly one of Content (OK) or Err (not OK) carries the payload; Err is
// one of the typed error kinds in errors.go.
type ToolResult struct {
	Name    string
	OK      bool
	Content string
	Err     error
}

// Text renders the result for inclusion in a tool-result turn. Failures
// become "Error: ..." strings so the LLM sees what went wrong instead of
// the turn being dropped.
func (r ToolResult) Text() string {
	if r.OK {
		return r.Content
	}
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return "Error: tool failed with no details"
}
