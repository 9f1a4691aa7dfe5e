package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/helixbot/helixbot/internal/schema"
	"github.com/helixbot/helixbot/internal/tools"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Server speaks line-delimited JSON-RPC 2.0 on a reader/writer pair
// (normally stdin/stdout) and exposes a tool list over the MCP methods:
// initialize, ping, tools/list, tools/call. Unknown methods get a
// method-not-found error. Every response line is flushed immediately; a
// buffered, unflushed response is indistinguishable from a hung server to
// the client on the other end.
type Server struct {
	name    string
	version string
	list    *tools.ToolList
	disp    *tools.Dispatcher

	wmu sync.Mutex
	out *bufio.Writer
}

// NewServer builds a Server exposing the given tools.
func NewServer(name, version string, list *tools.ToolList) *Server {
	return &Server{
		name:    name,
		version: version,
		list:    list,
		disp:    tools.NewDispatcher(list),
	}
}

// serverRequest is one incoming JSON-RPC message. ID keeps its raw form so
// responses echo exactly what the client sent (number or string).
type serverRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Serve processes requests until r is exhausted or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.out = bufio.NewWriter(w)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req serverRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(nil, codeParseError, "parse error")
			continue
		}
		s.handle(ctx, req)
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req serverRequest) {
	// Notifications carry no ID and expect no response.
	if len(req.ID) == 0 || string(req.ID) == "null" {
		slog.Debug("mcp server: notification", "method", req.Method)
		return
	}

	switch req.Method {
	case "initialize":
		s.writeResult(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		})

	case "ping":
		s.writeResult(req.ID, map[string]any{})

	case "tools/list":
		s.writeResult(req.ID, map[string]any{"tools": s.toolDefs()})

	case "tools/call":
		s.handleToolCall(ctx, req)

	default:
		s.writeError(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleToolCall(ctx context.Context, req serverRequest) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		s.writeError(req.ID, codeInvalidParams, "invalid tools/call params")
		return
	}

	res := s.disp.Dispatch(ctx, schema.ToolCallRequest{
		Name:      params.Name,
		Arguments: params.Arguments,
	})

	s.writeResult(req.ID, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": res.Text()},
		},
		"isError": !res.OK,
	})
}

// toolDefs renders the tool list in MCP discovery format.
func (s *Server) toolDefs() []map[string]any {
	var defs []map[string]any
	for _, name := range s.list.Names() {
		t := s.list.Get(name)
		if t == nil {
			continue
		}
		var inputSchema any
		if err := json.Unmarshal(t.Parameters(), &inputSchema); err != nil {
			inputSchema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		defs = append(defs, map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"inputSchema": inputSchema,
		})
	}
	return defs
}

func (s *Server) writeResult(id json.RawMessage, result any) {
	s.writeLine(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	var rawID any
	if len(id) > 0 {
		rawID = id
	}
	s.writeLine(map[string]any{
		"jsonrpc": "2.0",
		"id":      rawID,
		"error":   map[string]any{"code": code, "message": message},
	})
}

// writeLine emits one compact JSON object, LF-terminated, and flushes.
func (s *Server) writeLine(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("mcp server: marshal response", "err", err)
		return
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, _ = s.out.Write(append(data, '\n'))
	_ = s.out.Flush()
}
