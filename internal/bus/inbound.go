package bus

import (
	"time"

	"github.com/google/uuid"
)

// InboundMessage is a message received from a chat channel.
type InboundMessage struct {
	ID        string         // unique message ID, assigned at construction
	Channel   Channel        // "cli", "web", "telegram", "slack", "system"
	SenderID  string         // user identifier within the channel
	ChatID    string         // chat / channel / DM identifier
	Content   string         // message text
	Timestamp time.Time      // when the message was received
	Media     []string       // local file paths of downloaded attachments
	Metadata  map[string]any // channel-specific extra data (message_id, username, …)
}

// NewInboundMessage creates an InboundMessage with a fresh ID and Timestamp.
func NewInboundMessage(channel Channel, senderID, chatID, content string) InboundMessage {
	return InboundMessage{
		ID:        uuid.NewString(),
		Channel:   channel,
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// SessionKey returns the unique key used to look up the conversation session.
// Format: "channel:chat_id".
func (m InboundMessage) SessionKey() string {
	return string(m.Channel) + ":" + m.ChatID
}

// ContentPreview returns a short snippet of the message content for logging.
func (m InboundMessage) ContentPreview() string {
	preview := m.Content
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return preview
}
