package bus

// OutboundMessage is a response to be sent back through a channel.
type OutboundMessage struct {
	Channel  Channel        // destination channel name
	ChatID   string         // destination chat / channel / DM identifier
	Content  string         // text to send
	ReplyTo  string         // original message ID to quote/reply to (optional)
	Media    []string       // local file paths to attach (optional)
	Metadata map[string]any // channel-specific hints (thread_ts, parse_mode, …)
}

// NewOutboundMessage creates a plain text OutboundMessage.
func NewOutboundMessage(channel Channel, chatID, content string) OutboundMessage {
	return OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
	}
}
