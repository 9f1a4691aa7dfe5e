package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/helixbot/helixbot/internal/schema"
	"github.com/helixbot/helixbot/internal/shared/llmutils"
	"github.com/helixbot/helixbot/internal/tools"
)

// runState is the explicit state of one conversation turn. The runner is a
// small state machine rather than a bare loop so every transition (LLM reply,
// tool results, error, budget exhaustion) is a named edge.
type runState int

const (
	stateAwaitingLLM  runState = iota // next step: call the provider
	stateAwaitingTool                 // next step: execute pending tool calls
	stateDone                         // final answer produced (or error surfaced)
)

// stepBudgetMessage is returned to the user when the turn burns through its
// iteration bound without the model producing a final answer.
const stepBudgetMessage = "I could not complete this request within the step budget. " +
	"Try narrowing the question or splitting it into smaller steps."

// LoopRunner executes the LLM ↔ tool state machine for one conversation turn.
// It is embedded by CoreAgent and SubAgent to share the loop body.
type LoopRunner struct {
	provider schema.LLMProvider
	settings schema.AgentSettings
}

func newLoopRunner(provider schema.LLMProvider, settings schema.AgentSettings) LoopRunner {
	return LoopRunner{provider: provider, settings: settings}
}

// run drives the state machine until stateDone or the iteration budget is
// exhausted. tls is passed by pointer so CoreAgent can share the loop's live
// ToolList (MCP tools registered after construction are visible immediately).
//
// Provider failures and tool failures are classified with the typed error
// kinds in schema; tool failures flow back to the model as error-text tool
// results, provider failures end the turn.
func (r *LoopRunner) run(ctx context.Context, conversation schema.Messages, tls *tools.ToolList, onProgress func(string)) (finalContent string, toolsUsed []string) {
	dispatcher := tools.NewDispatcher(tls)

	state := stateAwaitingLLM
	var pending []schema.ToolCall
	llmRounds := 0

	for state != stateDone {
		switch state {
		case stateAwaitingLLM:
			if llmRounds >= r.settings.MaxIter {
				err := schema.IterationLimitError(r.settings.MaxIter)
				slog.Warn("turn ended without final answer", "err", err)
				finalContent = stepBudgetMessage
				state = stateDone
				continue
			}
			llmRounds++

			resp, err := r.provider.Chat(ctx,
				conversation,
				tls.Definitions(),
				schema.NewChatOptions(r.settings.Model, r.settings.MaxTokens, r.settings.Temperature),
			)
			if err != nil {
				perr := schema.ProviderError(err)
				slog.Error("LLM call failed", "err", perr)
				finalContent = "Sorry, I hit a problem talking to the language model. Please try again."
				state = stateDone
				continue
			}

			if !resp.HasToolCalls() {
				// Terminal response.
				content := ""
				if resp.Content != nil {
					content = *resp.Content
				}
				finalContent = llmutils.StripThink(content)
				state = stateDone
				continue
			}

			if onProgress != nil {
				if resp.Content != nil {
					if clean := llmutils.StripThink(*resp.Content); clean != "" {
						onProgress(clean)
					}
				}
				onProgress(llmutils.ToolHint(resp.ToolCalls))
			}

			conversation.AddAssistant(resp.Content, resp.ToolCalls, resp.ReasoningContent)
			pending = resp.ToolCalls
			state = stateAwaitingTool

		case stateAwaitingTool:
			for _, tc := range pending {
				toolsUsed = append(toolsUsed, tc.Name)
				argsJSON, _ := json.Marshal(tc.Arguments)
				slog.Info("Tool call", "name", tc.Name, "args", llmutils.Truncate(string(argsJSON), 200))

				res := dispatcher.Dispatch(ctx, schema.ToolCallRequest{
					ID:        tc.ID,
					Name:      tc.Name,
					Arguments: tc.Arguments,
				})
				if !res.OK {
					logToolFailure(tc.Name, res.Err)
				}
				conversation.AddToolResult(tc.ID, tc.Name, res.Text())
			}
			pending = nil
			state = stateAwaitingLLM
		}
	}
	return finalContent, toolsUsed
}

// logToolFailure records a failed dispatch with its classified kind.
func logToolFailure(name string, err error) {
	kind := "execution"
	switch {
	case errors.Is(err, schema.ErrToolNotFound):
		kind = "not_found"
	case errors.Is(err, schema.ErrArgumentValidation):
		kind = "validation"
	}
	slog.Warn("tool call failed", "tool", name, "kind", kind, "err", err)
}
