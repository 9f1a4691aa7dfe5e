// Package tools implements the tool registry, the dispatcher that validates
// and executes tool calls, and the built-in tools themselves.
package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/helixbot/helixbot/internal/schema"
)

// Registry maps tool names to implementations and their parsed parameter
// schemas. Registration is first-wins: a second tool under the same name is
// rejected, never silently replaced.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]schema.Tool
	schemas map[string]*ParamSchema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]schema.Tool),
		schemas: make(map[string]*ParamSchema),
	}
}

// Register adds a tool. It fails when the name is empty, already taken, or
// the tool's parameter schema does not parse.
func (r *Registry) Register(t schema.Tool) error {
	if t == nil {
		return fmt.Errorf("register: tool is nil")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("register: tool name is empty")
	}

	ps, err := ParseParamSchema(t.Parameters())
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("register: tool %q already registered", name)
	}
	r.tools[name] = t
	r.schemas[name] = ps
	return nil
}

// Lookup returns the tool for name, or an error wrapping
// schema.ErrToolNotFound.
func (r *Registry) Lookup(name string) (schema.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, schema.ToolNotFoundError(name)
	}
	return t, nil
}

// Schema returns the parsed parameter schema for name, or nil when unknown.
func (r *Registry) Schema(name string) *ParamSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[name]
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a ToolList snapshot of the current contents.
func (r *Registry) All() *ToolList {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := NewToolList()
	for k, t := range r.tools {
		list.tools[k] = t
		list.schemas[k] = r.schemas[k]
	}
	return list
}

// RegistryBuilder accumulates tools during construction. Build surfaces the
// first registration error (duplicate names included) instead of dropping it.
type RegistryBuilder struct {
	tools []schema.Tool
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{}
}

// WithTool adds a tool and returns the builder, enabling chaining.
func (b *RegistryBuilder) WithTool(t schema.Tool) *RegistryBuilder {
	b.tools = append(b.tools, t)
	return b
}

// Build produces a Registry from the accumulated tools.
func (b *RegistryBuilder) Build() (*Registry, error) {
	r := NewRegistry()
	for _, t := range b.tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
