package tools

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/helixbot/helixbot/internal/schema"
)

// ToolList holds a named set of tools and exposes them for LLM calls and
// runtime extension (e.g. MCP servers). Unlike Registry it allows
// replacement, since MCP reconnects re-add their tools.
type ToolList struct {
	mu      sync.RWMutex
	tools   map[string]schema.Tool
	schemas map[string]*ParamSchema
}

// NewToolList builds a ToolList from the given tools.
func NewToolList(ts ...schema.Tool) *ToolList {
	list := &ToolList{
		tools:   make(map[string]schema.Tool, len(ts)),
		schemas: make(map[string]*ParamSchema, len(ts)),
	}
	for _, t := range ts {
		list.Add(t)
	}
	return list
}

// Get returns the tool with the given name, or nil if not found.
func (r *ToolList) Get(name string) schema.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Lookup returns the tool for name, or an error wrapping
// schema.ErrToolNotFound.
func (r *ToolList) Lookup(name string) (schema.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, schema.ToolNotFoundError(name)
	}
	return t, nil
}

// Schema returns the parsed parameter schema for name, or nil when unknown.
func (r *ToolList) Schema(name string) *ParamSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[name]
}

// Add registers a new tool, replacing any existing tool with the same name.
// A schema that fails to parse degrades to the permissive empty schema so a
// misbehaving MCP server cannot block registration of its other tools.
func (r *ToolList) Add(t schema.Tool) schema.Tool {
	ps, err := ParseParamSchema(t.Parameters())
	if err != nil {
		slog.Warn("tool list: unparseable parameter schema, validation disabled", "tool", t.Name(), "err", err)
		ps = &ParamSchema{Type: "object"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.schemas[t.Name()] = ps
	return t
}

// Names returns all tool names, sorted.
func (r *ToolList) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all tool definitions in OpenAI function-calling format.
func (r *ToolList) Definitions() []map[string]any {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		var params any
		if err := json.Unmarshal(t.Parameters(), &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		list = append(list, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  params,
			},
		})
	}
	return list
}
