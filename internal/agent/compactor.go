package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/helixbot/helixbot/internal/schema"
	"github.com/helixbot/helixbot/internal/session"
	"github.com/helixbot/helixbot/internal/tools"
)

// Per-session consolidation states used by Schedule.
const (
	consolidRunning uint8 = 1 // goroutine is actively consolidating
	consolidQueued  uint8 = 2 // goroutine is running AND another run is pending
)

// sessionSaver is the subset of session.Manager needed to persist the
// consolidation pointer.
type sessionSaver interface {
	Save(s *session.Session) error
}

// MemoryCompactor orchestrates memory consolidation: it selects the stale slice
// of a session, asks the LLM to summarise it via the save_memory tool, and
// persists the result through a SaveMemoryTool. Storage I/O lives in the
// injected MemoryStore; LLM interaction lives here.
type MemoryCompactor struct {
	store        schema.MemoryStore
	saveTool     *tools.SaveMemoryTool
	saver        sessionSaver
	provider     schema.LLMProvider
	model        string
	memoryWindow int

	// Per-session consolidation state (idle=absent, running=1, queued=2).
	consolidating map[string]uint8
	mu            sync.Mutex
}

// NewCompactor returns a MemoryCompactor writing through store.
func NewCompactor(store schema.MemoryStore, saver sessionSaver, provider schema.LLMProvider, model string, memoryWindow int) *MemoryCompactor {
	return &MemoryCompactor{
		store:         store,
		saveTool:      tools.NewSaveMemoryTool(store),
		saver:         saver,
		provider:      provider,
		model:         model,
		memoryWindow:  memoryWindow,
		consolidating: make(map[string]uint8),
	}
}

// Schedule is the single entry point for all consolidation work.
// It enforces at most one active goroutine per key with one pending slot.
//
// State machine per key:
//
//	absent          → consolidRunning  launch goroutine
//	consolidRunning → consolidQueued   mark pending, goroutine will re-run
//	consolidQueued  → consolidQueued   already queued, nothing to do
func (c *MemoryCompactor) Schedule(key string, s *session.Session, archiveAll bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.consolidating[key] {
	case consolidRunning:
		c.consolidating[key] = consolidQueued
		return
	case consolidQueued:
		return
	}

	// idle → launch goroutine
	c.consolidating[key] = consolidRunning
	go func() {
		for {
			if err := c.Compact(context.Background(), s, archiveAll); err != nil {
				slog.Error("Memory consolidation failed", "err", err)
			}

			c.mu.Lock()
			if c.consolidating[key] == consolidQueued {
				c.consolidating[key] = consolidRunning
				c.mu.Unlock()
				continue
			}
			delete(c.consolidating, key)
			c.mu.Unlock()
			return
		}
	}()
}

// Compact summarises old session messages into MEMORY.md and HISTORY.md via a
// single LLM tool call. Safe to call concurrently for different sessions; the
// caller must guard against concurrent calls for the same session (Schedule
// does this).
//
// archiveAll=true processes every message (used on /new); otherwise only the
// slice between the consolidation pointer and len-keepCount is processed.
func (c *MemoryCompactor) Compact(ctx context.Context, s *session.Session, archiveAll bool) error {
	s.Lock()
	snapshot := s.CopyMessages()
	lastConsolidated := s.LastConsolidated()
	s.Unlock()

	msgs := snapshot.Messages
	var oldMessages []schema.Message
	keepCount := c.memoryWindow / 2

	if archiveAll {
		oldMessages = msgs
		keepCount = 0
		slog.Info("memory consolidation (archive_all)", "messages", len(msgs))
	} else {
		if len(msgs) <= keepCount {
			return nil
		}
		end := len(msgs) - keepCount
		if end <= lastConsolidated {
			return nil
		}
		oldMessages = msgs[lastConsolidated:end]
		if len(oldMessages) == 0 {
			return nil
		}
		slog.Info("memory consolidation", "to_consolidate", len(oldMessages), "keep", keepCount)
	}

	if err := c.summarizeAndSave(ctx, oldMessages); err != nil {
		return err
	}

	// Advance the consolidation pointer and compact the in-memory slice.
	if archiveAll {
		s.Lock()
		s.SetLastConsolidated(0)
		s.Unlock()
	} else {
		// Compact drops already-consolidated messages and resets the pointer
		// to 0 (the tail is now the start of the slice).
		s.Compact(keepCount)
	}

	// Persist immediately so the pointer survives a restart.
	if err := c.saver.Save(s); err != nil {
		slog.Warn("memory consolidation: failed to persist session pointer", "err", err)
	}

	s.Lock()
	pointer := s.LastConsolidated()
	s.Unlock()
	slog.Info("memory consolidation done", "processed", len(oldMessages), "last_consolidated", pointer)

	return nil
}

// summarizeAndSave sends oldMessages to the LLM with the save_memory function
// definition and writes the returned consolidation through SaveMemoryTool.
// A model that does not call the tool is treated as "nothing worth keeping".
func (c *MemoryCompactor) summarizeAndSave(ctx context.Context, oldMessages []schema.Message) error {
	currentMemory := c.store.ReadLongTerm()
	shown := currentMemory
	if shown == "" {
		shown = "(empty)"
	}

	prompt := fmt.Sprintf(
		"Process this conversation and call the save_memory tool with your consolidation.\n\n"+
			"## Current Long-term Memory\n%s\n\n"+
			"## Conversation to Process\n%s",
		shown,
		formatMessagesForPrompt(oldMessages),
	)

	messages := schema.NewMessages(
		schema.NewSystemMessage("You are a memory consolidation agent. Call the save_memory tool with your consolidation of the conversation."),
		schema.NewUserMessage(prompt),
	)

	resp, err := c.provider.Chat(ctx,
		messages,
		tools.NewToolList(c.saveTool).Definitions(),
		schema.NewChatOptions(c.model, 4096, 0.3),
	)
	if err != nil {
		return fmt.Errorf("consolidation LLM call: %w", err)
	}

	if !resp.HasToolCalls() {
		slog.Warn("memory consolidation: LLM did not call save_memory, skipping")
		return nil
	}

	_, err = c.saveTool.Save(ctx, resp.ToolCalls[0].Arguments, currentMemory)
	return err
}

// formatMessagesForPrompt renders messages into labelled text lines for the
// consolidation prompt.
func formatMessagesForPrompt(msgs []schema.Message) string {
	ts := time.Now().UTC().Format("2006-01-02T15:04")
	var lines []string
	for _, msg := range msgs {
		content := ""
		switch v := msg.Content.(type) {
		case string:
			content = v
		case *string:
			if v != nil {
				content = *v
			}
		}
		if content == "" {
			continue
		}
		toolsStr := ""
		if len(msg.ToolsUsed) > 0 {
			toolsStr = " [tools: " + strings.Join(msg.ToolsUsed, ", ") + "]"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s%s: %s", ts, strings.ToUpper(msg.Role), toolsStr, content))
	}

	return strings.Join(lines, "\n")
}
