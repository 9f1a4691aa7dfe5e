package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixbot/helixbot/internal/schema"
)

// ToolSource resolves tool names and their parsed parameter schemas at
// dispatch time. Both *Registry (build-time, first-wins) and *ToolList
// (runtime, replaceable) implement it.
type ToolSource interface {
	Lookup(name string) (schema.Tool, error)
	Schema(name string) *ParamSchema
}

// Dispatcher routes ToolCallRequests through validation to handler
// execution. Every outcome is a ToolResult; a handler failure (error return
// or panic) is captured and reported, never propagated to the caller.
type Dispatcher struct {
	source ToolSource
}

// NewDispatcher creates a Dispatcher over the given tool source.
func NewDispatcher(source ToolSource) *Dispatcher {
	return &Dispatcher{source: source}
}

// Dispatch executes one tool call. The checks run in a fixed order:
//
//  1. lookup — an unknown name yields a ToolNotFound result
//  2. argument validation — a schema violation yields an
//     ArgumentValidationError result without invoking the handler
//  3. execution — a handler error or panic yields a HandlerExecutionError
//     result
func (d *Dispatcher) Dispatch(ctx context.Context, req schema.ToolCallRequest) schema.ToolResult {
	t, err := d.source.Lookup(req.Name)
	if err != nil {
		slog.Warn("dispatch: unknown tool", "tool", req.Name)
		return schema.ToolResult{Name: req.Name, Err: err}
	}

	if ps := d.source.Schema(req.Name); ps != nil {
		if verr := ps.Validate(req.Arguments); verr != nil {
			slog.Warn("dispatch: argument validation failed", "tool", req.Name, "err", verr)
			return schema.ToolResult{
				Name: req.Name,
				Err:  schema.ValidationError(req.Name, verr.Error()),
			}
		}
	}

	content, err := d.execute(ctx, t, req.Arguments)
	if err != nil {
		slog.Error("dispatch: tool failed", "tool", req.Name, "err", err)
		return schema.ToolResult{
			Name: req.Name,
			Err:  schema.ExecutionError(req.Name, err),
		}
	}
	return schema.ToolResult{Name: req.Name, OK: true, Content: content}
}

// execute runs the handler with panic recovery so a buggy tool cannot take
// down the conversation.
func (d *Dispatcher) execute(ctx context.Context, t schema.Tool, args map[string]any) (content string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return t.Execute(ctx, args)
}
