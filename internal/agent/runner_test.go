package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/helixbot/helixbot/internal/schema"
	"github.com/helixbot/helixbot/internal/tools"
)

// scriptedProvider replays a fixed sequence of responses and records the
// messages it was called with.
type scriptedProvider struct {
	responses []schema.LLMResponse
	err       error
	calls     int
	seen      []schema.Messages
}

func (p *scriptedProvider) Chat(_ context.Context, messages schema.Messages, _ []map[string]any, _ schema.ChatOptions) (schema.LLMResponse, error) {
	p.calls++
	p.seen = append(p.seen, messages.Clone())
	if p.err != nil {
		return schema.LLMResponse{}, p.err
	}
	idx := p.calls - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }

type echoBackTool struct{}

func (echoBackTool) Name() string        { return "echo" }
func (echoBackTool) Description() string { return "Echo text back." }
func (echoBackTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)
}
func (echoBackTool) Execute(_ context.Context, args map[string]any) (string, error) {
	s, _ := args["text"].(string)
	return "echo: " + s, nil
}

func textResponse(s string) schema.LLMResponse {
	return schema.LLMResponse{Content: &s}
}

func toolResponse(id, name string, args map[string]any) schema.LLMResponse {
	return schema.LLMResponse{
		ToolCalls: []schema.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

func newTestRunner(p schema.LLMProvider, maxIter int) LoopRunner {
	return newLoopRunner(p, schema.NewAgentSettings("test-model", maxIter, 0.7, 1024, 50))
}

func TestRun_FinalAnswer(t *testing.T) {
	p := &scriptedProvider{responses: []schema.LLMResponse{textResponse("hello there")}}
	r := newTestRunner(p, 5)

	conv := schema.NewMessages(schema.NewUserMessage("hi"))
	final, toolsUsed := r.run(context.Background(), conv, tools.NewToolList(), nil)

	if final != "hello there" {
		t.Fatalf("final = %q", final)
	}
	if len(toolsUsed) != 0 {
		t.Errorf("toolsUsed = %v, want none", toolsUsed)
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1", p.calls)
	}
}

func TestRun_ToolResultFedBack(t *testing.T) {
	p := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse("call_1", "echo", map[string]any{"text": "ping"}),
		textResponse("done"),
	}}
	r := newTestRunner(p, 5)

	conv := schema.NewMessages(schema.NewUserMessage("echo ping"))
	final, toolsUsed := r.run(context.Background(), conv, tools.NewToolList(echoBackTool{}), nil)

	if final != "done" {
		t.Fatalf("final = %q", final)
	}
	if len(toolsUsed) != 1 || toolsUsed[0] != "echo" {
		t.Errorf("toolsUsed = %v", toolsUsed)
	}

	// The second LLM call must see the assistant tool-call turn and the
	// tool result.
	if len(p.seen) != 2 {
		t.Fatalf("provider saw %d calls, want 2", len(p.seen))
	}
	second := p.seen[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Errorf("last message = %+v, want tool result for call_1", last)
	}
	if got, _ := last.Content.(string); got != "echo: ping" {
		t.Errorf("tool result content = %q", got)
	}
}

func TestRun_UnknownToolReportedToModel(t *testing.T) {
	p := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse("call_1", "no_such_tool", nil),
		textResponse("recovered"),
	}}
	r := newTestRunner(p, 5)

	conv := schema.NewMessages(schema.NewUserMessage("go"))
	final, _ := r.run(context.Background(), conv, tools.NewToolList(), nil)

	if final != "recovered" {
		t.Fatalf("final = %q", final)
	}
	second := p.seen[1].Messages
	last := second[len(second)-1]
	got, _ := last.Content.(string)
	if !strings.HasPrefix(got, "Error:") {
		t.Errorf("tool result = %q, want Error: prefix", got)
	}
}

func TestRun_StepBudgetExhausted(t *testing.T) {
	// The model never stops calling tools; the runner must end the turn
	// after exactly MaxIter LLM rounds.
	p := &scriptedProvider{responses: []schema.LLMResponse{
		toolResponse("call_x", "echo", map[string]any{"text": "again"}),
	}}
	r := newTestRunner(p, 3)

	conv := schema.NewMessages(schema.NewUserMessage("loop forever"))
	final, toolsUsed := r.run(context.Background(), conv, tools.NewToolList(echoBackTool{}), nil)

	if final != stepBudgetMessage {
		t.Fatalf("final = %q, want step budget message", final)
	}
	if p.calls != 3 {
		t.Errorf("provider called %d times, want 3", p.calls)
	}
	if len(toolsUsed) != 3 {
		t.Errorf("toolsUsed = %v, want 3 entries", toolsUsed)
	}
}

func TestRun_ProviderError(t *testing.T) {
	p := &scriptedProvider{err: errors.New("upstream 500")}
	r := newTestRunner(p, 5)

	conv := schema.NewMessages(schema.NewUserMessage("hi"))
	final, _ := r.run(context.Background(), conv, tools.NewToolList(), nil)

	if !strings.Contains(final, "problem talking to the language model") {
		t.Fatalf("final = %q, want provider-failure message", final)
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1", p.calls)
	}
}

func TestRun_StripsThinkBlocks(t *testing.T) {
	p := &scriptedProvider{responses: []schema.LLMResponse{
		textResponse("<think>internal musing</think>the answer"),
	}}
	r := newTestRunner(p, 5)

	conv := schema.NewMessages(schema.NewUserMessage("hi"))
	final, _ := r.run(context.Background(), conv, tools.NewToolList(), nil)

	if final != "the answer" {
		t.Fatalf("final = %q", final)
	}
}

func TestRun_ProgressCallback(t *testing.T) {
	commentary := "Let me look that up."
	p := &scriptedProvider{responses: []schema.LLMResponse{
		{Content: &commentary, ToolCalls: []schema.ToolCall{{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "x"}}}},
		textResponse("final"),
	}}
	r := newTestRunner(p, 5)

	var progress []string
	conv := schema.NewMessages(schema.NewUserMessage("hi"))
	final, _ := r.run(context.Background(), conv, tools.NewToolList(echoBackTool{}), func(s string) {
		progress = append(progress, s)
	})

	if final != "final" {
		t.Fatalf("final = %q", final)
	}
	if len(progress) < 2 {
		t.Fatalf("progress = %v, want commentary plus tool hint", progress)
	}
	if progress[0] != commentary {
		t.Errorf("progress[0] = %q", progress[0])
	}
	if !strings.Contains(progress[1], "echo") {
		t.Errorf("progress[1] = %q, want tool hint naming echo", progress[1])
	}
}
