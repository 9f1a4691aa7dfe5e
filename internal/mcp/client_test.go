package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"
)

// pipeClient wires a client to an in-process fake server over io.Pipe,
// bypassing the subprocess machinery so the wire logic is tested directly.
func pipeClient(t *testing.T, timeout time.Duration) (*client, *bufio.Scanner, io.Writer) {
	t.Helper()

	srvIn, cliOut := io.Pipe()  // client stdin → server
	cliIn, srvOut := io.Pipe()  // server → client stdout

	c := &client{
		name:    "test",
		timeout: timeout,
		pending: make(map[int64]chan rpcResponse),
		stderr:  newRingBuffer(stderrTailLines),
		done:    make(chan struct{}),
	}
	c.stdin = cliOut
	go c.readLoop(cliIn)

	t.Cleanup(func() {
		_ = cliOut.Close()
		_ = srvOut.Close()
	})

	return c, bufio.NewScanner(srvIn), srvOut
}

// readRequest decodes the next request line the client wrote.
func readRequest(t *testing.T, scanner *bufio.Scanner) map[string]any {
	t.Helper()
	if !scanner.Scan() {
		t.Errorf("no request line: %v", scanner.Err())
		return nil
	}
	var req map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		t.Errorf("malformed request %q: %v", scanner.Text(), err)
		return nil
	}
	return req
}

func reply(t *testing.T, w io.Writer, id int64, result string) {
	t.Helper()
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`+"\n", id, result)
}

func TestCallStdio_OutOfOrderCorrelation(t *testing.T) {
	c, scanner, srvOut := pipeClient(t, time.Second)

	type outcome struct {
		result json.RawMessage
		err    error
	}
	results := make([]outcome, 2)
	var wg sync.WaitGroup

	// Two concurrent calls; the fake server answers them in reverse order.
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, err := c.callStdio(context.Background(), "tools/call",
				map[string]any{"slot": i})
			results[i] = outcome{raw, err}
		}(i)
	}

	ids := make([]int64, 0, 2)
	slots := make(map[int64]int, 2)
	for len(ids) < 2 {
		req := readRequest(t, scanner)
		id := int64(req["id"].(float64))
		params := req["params"].(map[string]any)
		slot := int(params["slot"].(float64))
		ids = append(ids, id)
		slots[id] = slot
	}

	// Reply to the second request first.
	reply(t, srvOut, ids[1], fmt.Sprintf(`{"slot":%d}`, slots[ids[1]]))
	reply(t, srvOut, ids[0], fmt.Sprintf(`{"slot":%d}`, slots[ids[0]]))
	wg.Wait()

	for i, out := range results {
		if out.err != nil {
			t.Fatalf("call %d: %v", i, out.err)
		}
		var got struct {
			Slot int `json:"slot"`
		}
		if err := json.Unmarshal(out.result, &got); err != nil {
			t.Fatalf("call %d result %s: %v", i, out.result, err)
		}
		if got.Slot != i {
			t.Errorf("call %d received result for slot %d", i, got.Slot)
		}
	}
}

func TestCallStdio_Timeout(t *testing.T) {
	c, scanner, _ := pipeClient(t, 50*time.Millisecond)

	go readRequest(t, scanner) // consume the request, never answer

	_, err := c.callStdio(context.Background(), "tools/list", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestCallStdio_SkipsNoise(t *testing.T) {
	c, scanner, srvOut := pipeClient(t, time.Second)

	go func() {
		req := readRequest(t, scanner)
		id := int64(req["id"].(float64))
		fmt.Fprintln(srvOut, "starting up...")                       // plain log line
		fmt.Fprintln(srvOut, `{"jsonrpc":"2.0","id":999,"result":1}`) // stale id
		reply(t, srvOut, id, `{"ok":true}`)
	}()

	raw, err := c.callStdio(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Errorf("result = %s", raw)
	}
}

func TestCallStdio_ServerError(t *testing.T) {
	c, scanner, srvOut := pipeClient(t, time.Second)

	go func() {
		req := readRequest(t, scanner)
		id := int64(req["id"].(float64))
		fmt.Fprintf(srvOut, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`+"\n", id)
	}()

	_, err := c.callStdio(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var rpcErr *rpcError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Fatalf("expected rpc error -32601, got %v", err)
	}
}

func TestCallStdio_ConnectionDeath(t *testing.T) {
	c, scanner, srvOut := pipeClient(t, 5*time.Second)

	go func() {
		readRequest(t, scanner)
		// Server dies mid-call.
		if closer, ok := srvOut.(io.Closer); ok {
			_ = closer.Close()
		}
	}()

	_, err := c.callStdio(context.Background(), "tools/list", nil)
	if !errors.Is(err, ErrServerGone) {
		t.Fatalf("in-flight call: expected ErrServerGone, got %v", err)
	}

	// Future calls fail fast without touching the wire.
	start := time.Now()
	_, err = c.callStdio(context.Background(), "tools/list", nil)
	if !errors.Is(err, ErrServerGone) {
		t.Fatalf("follow-up call: expected ErrServerGone, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("dead-connection call should not wait for a timeout")
	}
}

func TestRingBuffer_KeepsTail(t *testing.T) {
	b := newRingBuffer(3)
	for i := 0; i < 10; i++ {
		b.Append(fmt.Sprintf("line %d", i))
	}
	want := "line 7\nline 8\nline 9"
	if got := b.Tail(); got != want {
		t.Errorf("tail = %q, want %q", got, want)
	}
}
