package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/helixbot/helixbot/internal/bus"
	"github.com/helixbot/helixbot/internal/config"
)

// webInbound is one message from a browser client.
type webInbound struct {
	Content  string `json:"content"`
	SenderID string `json:"sender_id,omitempty"`
}

// webOutbound is one message pushed to a browser client.
type webOutbound struct {
	Content  string `json:"content"`
	ChatID   string `json:"chat_id"`
	Progress bool   `json:"progress,omitempty"`
}

// webConn wraps a websocket connection with a write lock; gorilla/websocket
// allows at most one concurrent writer per connection.
type webConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *webConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

// WebChannel serves a WebSocket chat endpoint on the gateway address.
// Each connection gets its own chat ID, so each browser tab is its own
// conversation.
type WebChannel struct {
	Base
	cfg     *config.WebConfig
	gateway *config.GatewayConfig

	mu    sync.Mutex
	conns map[string]*webConn // chatID → connection
}

// NewWebChannel creates a WebChannel.
func NewWebChannel(cfg *config.WebConfig, gateway *config.GatewayConfig, b bus.Bus) *WebChannel {
	return &WebChannel{
		Base:    NewBase(bus.ChannelWeb, b, cfg.AllowFrom),
		cfg:     cfg,
		gateway: gateway,
		conns:   make(map[string]*webConn),
	}
}

func (w *WebChannel) Name() string { return string(bus.ChannelWeb) }

var webUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The gateway is meant to sit behind the user's own proxy/auth; origin
	// checks are the allowlist's job, not the upgrader's.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Start runs the WebSocket server until ctx is cancelled.
func (w *WebChannel) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(w.cfg.Path, w.handleWS)

	addr := net.JoinHostPort(w.gateway.Host, fmt.Sprintf("%d", w.gateway.Port))
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		slog.Info("web: listening", "addr", addr, "path", w.cfg.Path)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web: serve: %w", err)
	}
}

func (w *WebChannel) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := webUpgrader.Upgrade(rw, r, nil)
	if err != nil {
		slog.Warn("web: upgrade failed", "err", err)
		return
	}

	chatID := uuid.NewString()
	wc := &webConn{conn: conn}

	w.mu.Lock()
	w.conns[chatID] = wc
	w.mu.Unlock()

	slog.Info("web: client connected", "chat_id", chatID, "remote", r.RemoteAddr)

	defer func() {
		w.mu.Lock()
		delete(w.conns, chatID)
		w.mu.Unlock()
		conn.Close()
		slog.Info("web: client disconnected", "chat_id", chatID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in webInbound
		if err := json.Unmarshal(data, &in); err != nil || in.Content == "" {
			continue
		}
		senderID := in.SenderID
		if senderID == "" {
			senderID = chatID
		}
		w.HandleMessage(senderID, chatID, in.Content, nil, nil)
	}
}

// Send pushes an agent reply to the connected client for msg.ChatID.
// Replies for disconnected clients are dropped.
func (w *WebChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	w.mu.Lock()
	wc, ok := w.conns[msg.ChatID]
	w.mu.Unlock()
	if !ok {
		slog.Debug("web: no client for chat", "chat_id", msg.ChatID)
		return nil
	}

	progress, _ := msg.Metadata["_progress"].(bool)
	return wc.writeJSON(webOutbound{
		Content:  msg.Content,
		ChatID:   msg.ChatID,
		Progress: progress,
	})
}
