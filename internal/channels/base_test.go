package channels

import (
	"strings"
	"testing"

	"github.com/helixbot/helixbot/internal/bus"
)

func TestIsAllowed_EmptyListAllowsAll(t *testing.T) {
	b := NewBase(bus.ChannelTelegram, bus.NewMessageBus(1), nil)
	if !b.IsAllowed("anyone") {
		t.Error("empty allowlist should allow all senders")
	}
}

func TestIsAllowed_ExactMatch(t *testing.T) {
	b := NewBase(bus.ChannelTelegram, bus.NewMessageBus(1), []string{"12345", "alice"})
	if !b.IsAllowed("12345") {
		t.Error("expected 12345 to be allowed")
	}
	if b.IsAllowed("99999") {
		t.Error("expected 99999 to be denied")
	}
}

func TestIsAllowed_IDPipeUsername(t *testing.T) {
	b := NewBase(bus.ChannelTelegram, bus.NewMessageBus(1), []string{"alice"})
	if !b.IsAllowed("12345|alice") {
		t.Error("expected id|username to match on username part")
	}
	if b.IsAllowed("12345|bob") {
		t.Error("expected id|username with unknown parts to be denied")
	}
}

func TestHandleMessage_PublishesInbound(t *testing.T) {
	mb := bus.NewMessageBus(1)
	b := NewBase(bus.ChannelWeb, mb, nil)

	b.HandleMessage("u1", "chat1", "hello", []string{"/tmp/a.png"}, map[string]any{"k": "v"})

	select {
	case msg := <-mb.InboundChan():
		if msg.Channel != bus.ChannelWeb || msg.SenderID != "u1" || msg.ChatID != "chat1" {
			t.Errorf("unexpected message: %+v", msg)
		}
		if msg.Content != "hello" || len(msg.Media) != 1 {
			t.Errorf("content/media not carried: %+v", msg)
		}
		if msg.Metadata["k"] != "v" {
			t.Errorf("metadata not carried: %+v", msg.Metadata)
		}
	default:
		t.Fatal("no inbound message published")
	}
}

func TestHandleMessage_DeniedSenderDropped(t *testing.T) {
	mb := bus.NewMessageBus(1)
	b := NewBase(bus.ChannelTelegram, mb, []string{"alice"})

	b.HandleMessage("mallory", "chat1", "hi", nil, nil)

	select {
	case msg := <-mb.InboundChan():
		t.Fatalf("denied sender's message was published: %+v", msg)
	default:
	}
}

func TestSplitMessage_ShortPassthrough(t *testing.T) {
	chunks := splitMessage("hello", 100)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestSplitMessage_PrefersNewlineBreaks(t *testing.T) {
	content := strings.Repeat("a", 50) + "\n" + strings.Repeat("b", 50)
	chunks := splitMessage(content, 60)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0] != strings.Repeat("a", 50) {
		t.Errorf("first chunk = %q", chunks[0])
	}
}

func TestSplitMessage_HardCutWithoutBreakpoints(t *testing.T) {
	content := strings.Repeat("x", 150)
	chunks := splitMessage(content, 60)
	total := 0
	for _, c := range chunks {
		if len(c) > 60 {
			t.Errorf("chunk too long: %d", len(c))
		}
		total += len(c)
	}
	if total != 150 {
		t.Errorf("lost content: total = %d", total)
	}
}
