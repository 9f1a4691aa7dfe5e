package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixbot/helixbot/internal/bus"
	"github.com/helixbot/helixbot/internal/schema"
	"github.com/helixbot/helixbot/internal/session"
	"github.com/helixbot/helixbot/internal/shared/llmutils"
	"github.com/helixbot/helixbot/internal/tools"
)

// AgentLoop is the core processing engine.
//
// It reads InboundMessages from the bus, routes each message to the
// appropriate channel-kind handler, and publishes OutboundMessages.
// Each inbound message is handled in its own goroutine.
type AgentLoop struct {
	bus      bus.Bus
	settings schema.AgentSettings

	promptBuilder *ContextBuilder
	sessions      *session.Manager
	compactor     *MemoryCompactor
	tools         *tools.ToolList // MCP registration target; factory shares the pointer
	subagents     *SubagentManager

	runner  LoopRunner    // shared LLM iteration logic (used by handleSystemChannel)
	factory *AgentFactory // creates per-request CoreAgent / SubAgent instances
}

// NewAgentLoop creates an AgentLoop with the supplied factory, tool registry,
// and subagent manager.
func NewAgentLoop(
	b bus.Bus,
	factory *AgentFactory,
	settings schema.AgentSettings,
	sessions *session.Manager,
	compactor *MemoryCompactor,
	registry *tools.Registry,
	subagents *SubagentManager,
	promptBuilder *ContextBuilder,
) *AgentLoop {
	loop := &AgentLoop{
		bus:           b,
		settings:      settings,
		promptBuilder: promptBuilder,
		sessions:      sessions,
		compactor:     compactor,
		tools:         registry.All(),
		subagents:     subagents,
		runner:        newLoopRunner(factory.provider, settings),
		factory:       factory,
	}
	// Wire the factory's coreTools pointer to this loop's live ToolList so that
	// MCP tools added via ConnectOnce are visible to every CoreAgent created by
	// the factory.
	factory.SetCoreTools(loop.tools)
	return loop
}

// Run reads from the inbound bus and processes each message in a goroutine.
// Blocks until ctx is cancelled.
func (loop *AgentLoop) Run(ctx context.Context) error {
	slog.Info("Agent loop started")

	for {
		select {
		case msg := <-loop.bus.InboundChan():
			go loop.handleMessage(ctx, msg)
		case <-ctx.Done():
			slog.Info("Agent loop stopping")
			loop.factory.Close()
			return ctx.Err()
		}
	}
}

// ProcessDirect handles a message outside the bus (CLI, cron).
// Returns the final text response.
func (loop *AgentLoop) ProcessDirect(ctx context.Context, content, sessKey, channel, chatID string) string {
	msg := bus.NewInboundMessage(bus.Channel(channel), "user", chatID, content)
	res := loop.processMessage(ctx, msg, sessKey)
	if res == nil {
		return ""
	}
	return res.Content
}

func (loop *AgentLoop) handleMessage(ctx context.Context, msg bus.InboundMessage) {
	resp := loop.processMessage(ctx, msg, "")

	if resp != nil {
		loop.bus.PublishOutbound(*resp)
	} else if msg.Channel == bus.ChannelCLI {
		// Signal CLI that we're done even when MessageTool was used.
		out := bus.NewOutboundMessage(msg.Channel, msg.ChatID, "")
		out.Metadata = msg.Metadata
		loop.bus.PublishOutbound(out)
	}
}

// processMessage is a thin adapter kept for ProcessDirect compatibility.
func (loop *AgentLoop) processMessage(
	ctx context.Context,
	msg bus.InboundMessage,
	sessionKeyOverride string,
) *bus.OutboundMessage {
	return loop.routeMessage(ctx, msg, sessionKeyOverride)
}

// routeMessage dispatches msg to the appropriate channel-kind handler.
// sessionKeyOverride is non-empty only when called from ProcessDirect.
func (loop *AgentLoop) routeMessage(ctx context.Context, msg bus.InboundMessage, sessionKeyOverride string) *bus.OutboundMessage {
	switch msg.Channel {
	case bus.ChannelSystem:
		return loop.handleSystemChannel(ctx, msg)
	case bus.ChannelCron, bus.ChannelWatch:
		// These sources always use ProcessDirect; if a message somehow arrives
		// on the bus the pipeline runs but no outbound is published.
		loop.handleExternalChannel(ctx, msg, sessionKeyOverride)
		return nil
	default:
		// CLI, web, telegram, slack. The CLI-specific empty-outbound signal
		// (when MessageTool fired) is handled in handleMessage.
		return loop.handleExternalChannel(ctx, msg, sessionKeyOverride)
	}
}

// handleSystemChannel processes system-channel messages injected by subagents.
// It parses the original channel/chat from msg.ChatID, runs one LLM
// summarisation turn, and routes the reply to the original chat.
func (loop *AgentLoop) handleSystemChannel(ctx context.Context, msg bus.InboundMessage) *bus.OutboundMessage {
	channel, chatID, _ := strings.Cut(msg.ChatID, ":")
	if chatID == "" {
		channel = string(bus.ChannelCLI)
		chatID = msg.ChatID
	}

	slog.Info("Processing system message", "sender", msg.SenderID)

	key := channel + ":" + chatID
	sess := loop.sessions.GetOrCreate(key)

	ctx = tools.WithTurnContext(ctx, tools.TurnContext{Channel: channel, ChatID: chatID})

	conversation := loop.promptBuilder.BuildMessages(
		sess.GetHistory(loop.settings.MemoryWindow),
		msg.Content,
		nil,
		channel,
		chatID,
	)

	final, _ := loop.runner.run(ctx, conversation, loop.tools, nil)
	final = llmutils.StringOrDefault(final, "Background task completed.")

	sess.AddUser(fmt.Sprintf("[System: %s] %s", msg.SenderID, msg.Content))
	sess.AddAssistant(final, nil)
	loop.sessions.Save(sess)

	out := bus.NewOutboundMessage(bus.Channel(channel), chatID, final)
	return &out
}

// handleExternalChannel processes messages from user-facing channels
// (cli, web, telegram, slack). It runs slash commands, the full LLM loop,
// saves the session, and returns an OutboundMessage — or nil if the message
// tool already sent the reply.
func (loop *AgentLoop) handleExternalChannel(ctx context.Context, msg bus.InboundMessage, sessionKeyOverride string) *bus.OutboundMessage {
	slog.Info(
		"Processing message",
		"sender", msg.SenderID,
		"channel", msg.Channel,
		"content", llmutils.Truncate(msg.Content, 80),
	)

	key := llmutils.StringOrDefault(sessionKeyOverride, msg.SessionKey())
	sess := loop.sessions.GetOrCreate(key)

	if resp := loop.handleSlashCommand(msg, sess, key); resp != nil {
		return resp
	}

	loop.compactor.Schedule(key, sess, false)

	ctx, msgSent := loop.withTurnContext(ctx, msg)

	conversation := loop.promptBuilder.BuildMessages(
		sess.GetHistory(loop.settings.MemoryWindow),
		msg.Content,
		msg.Media,
		string(msg.Channel),
		msg.ChatID,
	)

	coreAgent := loop.factory.NewCoreAgent()
	final, toolsUsed := coreAgent.Execute(ctx, conversation, loop.makeProgressCallback(msg))
	if final == "" {
		final = "I've completed processing but have no response to give."
	}

	slog.Info("Response", "channel", msg.Channel, "sender", msg.SenderID, "length", len(final))

	sess.AddUser(msg.Content)
	sess.AddAssistant(final, toolsUsed)
	loop.sessions.Save(sess)

	// If the message tool sent something, suppress the automatic reply.
	if *msgSent {
		return nil
	}

	out := bus.NewOutboundMessage(msg.Channel, msg.ChatID, final)
	out.Metadata = msg.Metadata
	return &out
}

// handleSlashCommand checks msg.Content for a known slash command and handles
// it. Returns non-nil if the command was handled (caller should return early).
func (loop *AgentLoop) handleSlashCommand(
	msg bus.InboundMessage,
	sess *session.Session,
	key string,
) *bus.OutboundMessage {
	cmd := strings.TrimSpace(strings.ToLower(msg.Content))
	switch cmd {
	case "/new":
		return loop.handleCmdNew(msg, sess, key)
	case "/help":
		return loop.handleCmdHelp(msg)
	}
	return nil
}

// handleCmdNew clears the current session and triggers background memory
// consolidation of the old snapshot, then replies with a confirmation.
func (loop *AgentLoop) handleCmdNew(msg bus.InboundMessage, sess *session.Session, key string) *bus.OutboundMessage {
	sess.Lock()
	archived := sess.CopyMessages()
	sess.Unlock()

	sess.Clear()
	loop.sessions.Save(sess)
	loop.sessions.Invalidate(key)

	tmp := session.NewArchivedSession(key, archived)
	loop.compactor.Schedule(key+":archive", tmp, true)

	out := bus.NewOutboundMessage(msg.Channel, msg.ChatID, "New session started. Memory consolidation in progress.")
	out.Metadata = msg.Metadata

	return &out
}

// handleCmdHelp returns the help text listing available slash commands.
func (loop *AgentLoop) handleCmdHelp(msg bus.InboundMessage) *bus.OutboundMessage {
	out := bus.NewOutboundMessage(msg.Channel, msg.ChatID,
		"helixbot commands:\n/new — Start a new conversation\n/help — Show available commands")
	out.Metadata = msg.Metadata
	return &out
}

// withTurnContext decorates ctx with per-turn routing information and returns
// a flag that the message tool flips when it has sent a reply itself.
func (loop *AgentLoop) withTurnContext(ctx context.Context, msg bus.InboundMessage) (context.Context, *bool) {
	msgID := ""
	if v, ok := msg.Metadata["message_id"].(string); ok {
		msgID = v
	}
	msgSent := new(bool)
	ctx = tools.WithTurnContext(ctx, tools.TurnContext{
		Channel:     string(msg.Channel),
		ChatID:      msg.ChatID,
		MsgID:       msgID,
		MessageSent: msgSent,
	})
	return ctx, msgSent
}

// makeProgressCallback returns a function that pushes intermediate output to
// the outbound bus so clients can display streaming progress.
func (loop *AgentLoop) makeProgressCallback(msg bus.InboundMessage) func(string) {
	return func(content string) {
		meta := map[string]any{"_progress": true}
		for k, v := range msg.Metadata {
			meta[k] = v
		}
		out := bus.NewOutboundMessage(msg.Channel, msg.ChatID, content)
		out.Metadata = meta
		loop.bus.PublishOutbound(out)
	}
}
