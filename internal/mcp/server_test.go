package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/helixbot/helixbot/internal/tools"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes the text argument back." }
func (echoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"text": {"type": "string", "description": "Text to echo"}},
		"required": ["text"]
	}`)
}
func (echoTool) Execute(_ context.Context, params map[string]any) (string, error) {
	text, _ := params["text"].(string)
	return "echo: " + text, nil
}

// serve runs one Serve pass over the given request lines and returns the
// decoded response lines.
func serve(t *testing.T, input string) []map[string]any {
	t.Helper()
	srv := NewServer("helixbot", "1.0", tools.NewToolList(echoTool{}))

	var out bytes.Buffer
	if err := srv.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("serve: %v", err)
	}

	var responses []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", scanner.Text(), err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func result(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	res, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("response has no result object: %v", resp)
	}
	return res
}

func TestServe_Initialize(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`+"\n")
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	res := result(t, responses[0])
	if res["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion = %v", res["protocolVersion"])
	}
	info, _ := res["serverInfo"].(map[string]any)
	if info["name"] != "helixbot" || info["version"] != "1.0" {
		t.Errorf("serverInfo = %v", info)
	}
}

func TestServe_ToolsList(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`+"\n")
	res := result(t, responses[0])
	defs, _ := res["tools"].([]any)
	if len(defs) != 1 {
		t.Fatalf("got %d tools, want 1", len(defs))
	}
	def := defs[0].(map[string]any)
	if def["name"] != "echo" {
		t.Errorf("tool name = %v", def["name"])
	}
	inputSchema, _ := def["inputSchema"].(map[string]any)
	if inputSchema["type"] != "object" {
		t.Errorf("inputSchema = %v", inputSchema)
	}
}

func TestServe_ToolsCall(t *testing.T) {
	responses := serve(t,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`+"\n")
	res := result(t, responses[0])
	if res["isError"] != false {
		t.Fatalf("isError = %v", res["isError"])
	}
	content, _ := res["content"].([]any)
	block := content[0].(map[string]any)
	if block["text"] != "echo: hi" {
		t.Errorf("text = %v", block["text"])
	}
}

func TestServe_ToolsCall_ValidationFailure(t *testing.T) {
	// Missing the required "text" argument: the call must fail without
	// crashing the serve loop, and the failure must flow back as isError.
	responses := serve(t,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{}}}`+"\n")
	res := result(t, responses[0])
	if res["isError"] != true {
		t.Fatalf("isError = %v", res["isError"])
	}
	content, _ := res["content"].([]any)
	block := content[0].(map[string]any)
	text, _ := block["text"].(string)
	if !strings.HasPrefix(text, "Error:") {
		t.Errorf("text = %q, want Error prefix", text)
	}
}

func TestServe_UnknownMethod(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":5,"method":"resources/list"}`+"\n")
	errObj, ok := responses[0]["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error response, got %v", responses[0])
	}
	if code := errObj["code"].(float64); code != -32601 {
		t.Errorf("code = %v, want -32601", code)
	}
}

func TestServe_NotificationProducesNoOutput(t *testing.T) {
	input := `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","id":6,"method":"ping"}` + "\n"
	responses := serve(t, input)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1 (ping only)", len(responses))
	}
	if id := responses[0]["id"].(float64); id != 6 {
		t.Errorf("response id = %v, want 6", id)
	}
}

func TestServe_ParseError(t *testing.T) {
	responses := serve(t, "this is not json\n")
	errObj, ok := responses[0]["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error response, got %v", responses[0])
	}
	if code := errObj["code"].(float64); code != -32700 {
		t.Errorf("code = %v, want -32700", code)
	}
}
