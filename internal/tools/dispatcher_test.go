package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/helixbot/helixbot/internal/schema"
)

// stubTool is a configurable tool for registry/dispatcher tests.
type stubTool struct {
	name   string
	params json.RawMessage
	fn     func(ctx context.Context, args map[string]any) (string, error)
	calls  int
}

func (s *stubTool) Name() string                { return s.name }
func (s *stubTool) Description() string         { return "stub tool " + s.name }
func (s *stubTool) Parameters() json.RawMessage { return s.params }

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	s.calls++
	if s.fn != nil {
		return s.fn(ctx, args)
	}
	return "ok", nil
}

// sequenceTool mirrors the canonical example: one required string parameter.
func sequenceTool() *stubTool {
	return &stubTool{
		name: "get_protein_sequence",
		params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"uniprot_id": {"type": "string", "description": "UniProt accession"}
			},
			"required": ["uniprot_id"]
		}`),
		fn: func(_ context.Context, args map[string]any) (string, error) {
			return "MRPSGTAGAALLALLAALCPASRA", nil
		},
	}
}

func newTestDispatcher(t *testing.T, ts ...schema.Tool) (*Dispatcher, *Registry) {
	t.Helper()
	r := NewRegistry()
	for _, tool := range ts {
		if err := r.Register(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Name(), err)
		}
	}
	return NewDispatcher(r), r
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(sequenceTool()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(sequenceTool()); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegister_EmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubTool{name: ""}); err == nil {
		t.Fatal("expected empty-name registration to fail")
	}
}

func TestRegister_MalformedSchema(t *testing.T) {
	r := NewRegistry()
	bad := &stubTool{name: "bad", params: json.RawMessage(`{not json`)}
	if err := r.Register(bad); err == nil {
		t.Fatal("expected malformed schema to fail registration")
	}
}

func TestLookup_NotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("nope")
	if !errors.Is(err, schema.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestRegistryBuilder_SurfacesDuplicate(t *testing.T) {
	_, err := NewRegistryBuilder().
		WithTool(sequenceTool()).
		WithTool(sequenceTool()).
		Build()
	if err == nil {
		t.Fatal("expected Build to fail on duplicate tool names")
	}
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

func TestDispatch_UnknownTool(t *testing.T) {
	d, _ := newTestDispatcher(t)

	res := d.Dispatch(context.Background(), schema.ToolCallRequest{Name: "missing_tool"})
	if res.OK {
		t.Fatal("expected failure result")
	}
	if !errors.Is(res.Err, schema.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", res.Err)
	}
	if !strings.Contains(res.Text(), "Error") {
		t.Errorf("rendered result should carry an error marker, got %q", res.Text())
	}
}

func TestDispatch_MissingRequiredArg(t *testing.T) {
	tool := sequenceTool()
	d, _ := newTestDispatcher(t, tool)

	res := d.Dispatch(context.Background(), schema.ToolCallRequest{
		Name:      "get_protein_sequence",
		Arguments: map[string]any{},
	})
	if res.OK {
		t.Fatal("expected failure result")
	}
	if !errors.Is(res.Err, schema.ErrArgumentValidation) {
		t.Fatalf("expected ErrArgumentValidation, got %v", res.Err)
	}
	if tool.calls != 0 {
		t.Errorf("handler must not run on validation failure, ran %d times", tool.calls)
	}
}

func TestDispatch_WrongArgType(t *testing.T) {
	tool := sequenceTool()
	d, _ := newTestDispatcher(t, tool)

	res := d.Dispatch(context.Background(), schema.ToolCallRequest{
		Name:      "get_protein_sequence",
		Arguments: map[string]any{"uniprot_id": 42.0},
	})
	if !errors.Is(res.Err, schema.ErrArgumentValidation) {
		t.Fatalf("expected ErrArgumentValidation, got %v", res.Err)
	}
	if tool.calls != 0 {
		t.Errorf("handler must not run on validation failure, ran %d times", tool.calls)
	}
}

func TestDispatch_Success(t *testing.T) {
	d, _ := newTestDispatcher(t, sequenceTool())

	res := d.Dispatch(context.Background(), schema.ToolCallRequest{
		Name:      "get_protein_sequence",
		Arguments: map[string]any{"uniprot_id": "P00533"},
	})
	if !res.OK {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if res.Content != "MRPSGTAGAALLALLAALCPASRA" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestDispatch_HandlerError(t *testing.T) {
	failing := &stubTool{
		name:   "flaky",
		params: json.RawMessage(`{"type":"object","properties":{}}`),
		fn: func(_ context.Context, _ map[string]any) (string, error) {
			return "", errors.New("backend unreachable")
		},
	}
	d, _ := newTestDispatcher(t, failing)

	res := d.Dispatch(context.Background(), schema.ToolCallRequest{Name: "flaky"})
	if res.OK {
		t.Fatal("expected failure result")
	}
	if !errors.Is(res.Err, schema.ErrHandlerExecution) {
		t.Fatalf("expected ErrHandlerExecution, got %v", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "backend unreachable") {
		t.Errorf("error should keep the cause, got %q", res.Err.Error())
	}
}

func TestDispatch_HandlerPanic(t *testing.T) {
	panicking := &stubTool{
		name:   "boom",
		params: json.RawMessage(`{"type":"object","properties":{}}`),
		fn: func(_ context.Context, _ map[string]any) (string, error) {
			panic("nil map write")
		},
	}
	d, _ := newTestDispatcher(t, panicking)

	res := d.Dispatch(context.Background(), schema.ToolCallRequest{Name: "boom"})
	if res.OK {
		t.Fatal("expected failure result")
	}
	if !errors.Is(res.Err, schema.ErrHandlerExecution) {
		t.Fatalf("expected ErrHandlerExecution, got %v", res.Err)
	}
}

func TestDispatch_OptionalArgsAndIntegers(t *testing.T) {
	search := &stubTool{
		name: "search_proteins",
		params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query":   {"type": "string"},
				"organism":{"type": "string"},
				"limit":   {"type": "integer"}
			},
			"required": ["query"]
		}`),
	}
	d, _ := newTestDispatcher(t, search)

	// JSON decoding hands integers over as float64; whole values must pass.
	res := d.Dispatch(context.Background(), schema.ToolCallRequest{
		Name:      "search_proteins",
		Arguments: map[string]any{"query": "kinase", "limit": 5.0},
	})
	if !res.OK {
		t.Fatalf("expected success, got %v", res.Err)
	}

	// Fractional values must not.
	res = d.Dispatch(context.Background(), schema.ToolCallRequest{
		Name:      "search_proteins",
		Arguments: map[string]any{"query": "kinase", "limit": 5.5},
	})
	if !errors.Is(res.Err, schema.ErrArgumentValidation) {
		t.Fatalf("expected ErrArgumentValidation for fractional integer, got %v", res.Err)
	}
}
