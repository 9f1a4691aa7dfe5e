// Package mcp implements both sides of the Model Context Protocol wire:
// a client that bridges subprocess (or HTTP) MCP servers into the agent's
// tool list, and a stdio server that exposes native tools to other agents.
//
// The wire format is line-delimited JSON-RPC 2.0: one compact object per
// line, LF-terminated.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	protocolVersion    = "2024-11-05"
	defaultCallTimeout = 30 * time.Second
	closeGrace         = 3 * time.Second
	stderrTailLines    = 200
)

// ErrTimeout is returned when the server produces no response for a request
// within the per-call timeout.
var ErrTimeout = errors.New("mcp: no response before timeout")

// ErrServerGone is returned when the server process has exited or the
// connection is closed; in-flight and future calls fail with it immediately.
var ErrServerGone = errors.New("mcp: server connection closed")

// rpcError is a JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcResponse is the routed result of one request.
type rpcResponse struct {
	Result json.RawMessage
	Err    *rpcError
}

// client manages JSON-RPC communication with a single MCP server (stdio or
// HTTP). For stdio servers a dedicated reader goroutine drains stdout and
// routes each response to its waiting caller by request ID, so a silent or
// chatty server can never wedge a caller on a blocking read.
type client struct {
	name       string
	cfg        ServerConfig
	timeout    time.Duration
	httpClient *http.Client

	// Stdio fields (set when command-based)
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	wmu    sync.Mutex // serialises writes to stdin
	stderr *ringBuffer

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan rpcResponse
	dead    bool
	deadErr error

	done chan struct{} // closed when the connection dies
}

func newClient(name string, cfg ServerConfig) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &client{
		name:       name,
		cfg:        cfg,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		pending:    make(map[int64]chan rpcResponse),
		stderr:     newRingBuffer(stderrTailLines),
		done:       make(chan struct{}),
	}
}

// connect starts the MCP server subprocess (or prepares HTTP) and performs
// the initialize handshake.
func (c *client) connect(ctx context.Context) error {
	if c.cfg.Command != "" {
		return c.connectStdio(ctx)
	}
	if c.cfg.URL != "" {
		// HTTP MCP: no persistent connection needed.
		return nil
	}
	return fmt.Errorf("MCP server %q: no command or url configured", c.name)
}

func (c *client) connectStdio(ctx context.Context) error {
	c.cmd = exec.Command(c.cfg.Command, c.cfg.Args...)
	for k, v := range c.cfg.Env {
		c.cmd.Env = append(c.cmd.Env, k+"="+v)
	}

	stdinPipe, err := c.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutPipe, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := c.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("start MCP server: %w", err)
	}
	c.stdin = stdinPipe

	go c.readLoop(stdoutPipe)
	go c.drainStderr(stderrPipe)
	go c.waitChild()

	if err := c.initialize(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// readLoop drains stdout and routes responses by ID. Lines that are not
// JSON, or carry no ID we are waiting on, are skipped — servers log freely.
func (c *client) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp struct {
			ID     *int64          `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  *rpcError       `json:"error"`
		}
		if err := json.Unmarshal(line, &resp); err != nil || resp.ID == nil {
			continue
		}

		c.mu.Lock()
		ch := c.pending[*resp.ID]
		delete(c.pending, *resp.ID)
		c.mu.Unlock()

		if ch != nil {
			ch <- rpcResponse{Result: resp.Result, Err: resp.Error}
		} else {
			slog.Debug("MCP response for unknown request id", "server", c.name, "id", *resp.ID)
		}
	}
	c.fail(fmt.Errorf("%w: stdout closed", ErrServerGone))
}

// drainStderr keeps the last lines of the child's stderr for error reports.
func (c *client) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		c.stderr.Append(scanner.Text())
	}
}

// waitChild reaps the subprocess and fails the connection when it dies.
func (c *client) waitChild() {
	err := c.cmd.Wait()
	if tail := c.stderr.Tail(); tail != "" {
		c.fail(fmt.Errorf("%w: process exited (%v); stderr tail:\n%s", ErrServerGone, err, tail))
	} else {
		c.fail(fmt.Errorf("%w: process exited (%v)", ErrServerGone, err))
	}
}

// fail marks the connection dead. Waiting callers observe the closed done
// channel; the first failure reason wins.
func (c *client) fail(err error) {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return
	}
	c.dead = true
	c.deadErr = err
	c.pending = make(map[int64]chan rpcResponse)
	c.mu.Unlock()

	close(c.done)
	slog.Warn("MCP connection down", "server", c.name, "err", err)
}

// connectionError returns the recorded reason the connection died.
func (c *client) connectionError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadErr != nil {
		return c.deadErr
	}
	return ErrServerGone
}

// Close terminates a stdio server gracefully: SIGTERM, a short grace period,
// then SIGKILL. Idempotent.
func (c *client) Close() error {
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	_ = c.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-c.done:
		return nil
	case <-time.After(closeGrace):
	}
	_ = c.cmd.Process.Kill()
	<-c.done
	return nil
}

// ---------------------------------------------------------------------------
// Discovery and invocation
// ---------------------------------------------------------------------------

// listTools returns the tools exposed by this MCP server.
func (c *client) listTools(ctx context.Context) ([]map[string]any, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// callTool invokes a named tool on the MCP server with the given arguments.
func (c *client) callTool(ctx context.Context, toolName string, args map[string]any) (string, error) {
	payload := map[string]any{
		"name":      toolName,
		"arguments": args,
	}
	resp, err := c.call(ctx, "tools/call", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return string(resp), nil
	}

	var parts []string
	for _, block := range result.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}

	out := strings.Join(parts, "\n")
	if out == "" {
		out = "(no output)"
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// JSON-RPC plumbing
// ---------------------------------------------------------------------------

func (c *client) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "helixbot", "version": "1.0"},
	}
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return err
	}
	// Initialized notification: no ID, no response expected.
	notif := map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"}
	data, _ := json.Marshal(notif)
	return c.writeLine(data)
}

func (c *client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.cfg.URL != "" {
		return c.callHTTP(ctx, method, params)
	}
	return c.callStdio(ctx, method, params)
}

// callStdio sends one request and waits for its correlated response with a
// per-call timeout. Responses may arrive in any order; the reader goroutine
// routes them by ID.
func (c *client) callStdio(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan rpcResponse, 1)
	c.mu.Lock()
	if c.dead {
		err := c.deadErr
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.writeLine(data); err != nil {
		return nil, fmt.Errorf("write to MCP stdin: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Err != nil {
			return nil, fmt.Errorf("MCP %s: %w", method, resp.Err)
		}
		return resp.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s (server %q)", ErrTimeout, method, c.timeout, c.name)
	case <-c.done:
		return nil, c.connectionError()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeLine writes one compact JSON object followed by LF.
func (c *client) writeLine(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.stdin == nil {
		return ErrServerGone
	}
	_, err := c.stdin.Write(append(data, '\n'))
	return err
}

func (c *client) callHTTP(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("MCP %s: %w", method, rpcResp.Error)
	}
	return rpcResp.Result, nil
}

// ---------------------------------------------------------------------------
// Stderr ring buffer
// ---------------------------------------------------------------------------

// ringBuffer retains the last max lines written to it.
type ringBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newRingBuffer(max int) *ringBuffer {
	return &ringBuffer{max: max}
}

func (b *ringBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// Tail returns the retained lines joined by newlines.
func (b *ringBuffer) Tail() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
