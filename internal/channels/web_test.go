package channels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/helixbot/helixbot/internal/bus"
	"github.com/helixbot/helixbot/internal/config"
)

// dialWeb connects a test websocket client to a WebChannel handler.
func dialWeb(t *testing.T, w *WebChannel) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(w.handleWS))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func newWebChannel(mb bus.Bus) *WebChannel {
	return NewWebChannel(
		&config.WebConfig{Enabled: true, Path: "/ws"},
		&config.GatewayConfig{Host: "127.0.0.1", Port: 0},
		mb,
	)
}

func TestWebChannel_InboundReachesBus(t *testing.T) {
	mb := bus.NewMessageBus(4)
	w := newWebChannel(mb)
	conn, done := dialWeb(t, w)
	defer done()

	if err := conn.WriteJSON(webInbound{Content: "what does P00533 do?"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-mb.InboundChan():
		if msg.Channel != bus.ChannelWeb {
			t.Errorf("channel = %q", msg.Channel)
		}
		if msg.Content != "what does P00533 do?" {
			t.Errorf("content = %q", msg.Content)
		}
		if msg.ChatID == "" {
			t.Error("chat id not assigned")
		}
	case <-time.After(time.Second):
		t.Fatal("no inbound message within 1s")
	}
}

func TestWebChannel_SendRoutesToConnection(t *testing.T) {
	mb := bus.NewMessageBus(4)
	w := newWebChannel(mb)
	conn, done := dialWeb(t, w)
	defer done()

	// Learn the connection's chat ID from its first message.
	if err := conn.WriteJSON(webInbound{Content: "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var chatID string
	select {
	case msg := <-mb.InboundChan():
		chatID = msg.ChatID
	case <-time.After(time.Second):
		t.Fatal("no inbound message")
	}

	out := bus.NewOutboundMessage(bus.ChannelWeb, chatID, "EGFR is a receptor tyrosine kinase.")
	if err := w.Send(context.Background(), out); err != nil {
		t.Fatalf("send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got webOutbound
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Content != "EGFR is a receptor tyrosine kinase." || got.ChatID != chatID {
		t.Errorf("got %+v", got)
	}
	if got.Progress {
		t.Error("unexpected progress flag")
	}
}

func TestWebChannel_SendToUnknownChatIsDropped(t *testing.T) {
	mb := bus.NewMessageBus(4)
	w := newWebChannel(mb)

	out := bus.NewOutboundMessage(bus.ChannelWeb, "gone", "hello?")
	if err := w.Send(context.Background(), out); err != nil {
		t.Errorf("send to unknown chat should be a no-op, got %v", err)
	}
}

func TestWebChannel_EmptyContentIgnored(t *testing.T) {
	mb := bus.NewMessageBus(4)
	w := newWebChannel(mb)
	conn, done := dialWeb(t, w)
	defer done()

	if err := conn.WriteJSON(webInbound{Content: ""}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-mb.InboundChan():
		t.Fatalf("empty message was published: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
