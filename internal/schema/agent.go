package schema

import "context"

// AgentSettings bundles the per-agent knobs read from config.
type AgentSettings struct {
	Model        string
	MaxIter      int // tool-call loop bound; exceeding it ends the turn
	Temperature  float64
	MaxTokens    int
	MemoryWindow int
}

func NewAgentSettings(model string, maxIter int, temperature float64, maxTokens int, memoryWindow int) AgentSettings {
	return AgentSettings{
		Model:        model,
		MaxIter:      maxIter,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		MemoryWindow: memoryWindow,
	}
}

// AgentLooper is the long-running agent loop consumed by commands and services.
type AgentLooper interface {
	// ProcessDirect handles one message outside the normal bus flow
	// (CLI one-shot, cron-triggered prompts, subagent announcements).
	ProcessDirect(ctx context.Context, content, sessionKey, channel, chatID string) string
	// Run starts the main agent loop, processing messages from the bus
	// until ctx is cancelled.
	Run(ctx context.Context) error
}

// Agent executes one fully-built conversation and returns the final content
// plus the names of tools used. Implemented by CoreAgent and SubAgent.
type Agent interface {
	Execute(ctx context.Context, conversation Messages, onProgress func(string)) (string, []string)
}
