package schema

import (
	"errors"
	"fmt"
)

// Error kinds recognised at the agent boundary. Every failure mode of a
// conversation turn wraps exactly one of these sentinels, so callers can
// classify with errors.Is without string matching. None of them is allowed
// to escape the agent loop: each is converted into a user-visible message.
var (
	// ErrToolNotFound: a ToolCallRequest named a tool absent from the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrArgumentValidation: the arguments did not satisfy the tool's
	// parameter schema. The handler was not invoked.
	ErrArgumentValidation = errors.New("invalid tool arguments")

	// ErrHandlerExecution: the handler ran and failed (error return or panic).
	ErrHandlerExecution = errors.New("tool execution failed")

	// ErrLLMProvider: the chat completion call failed.
	ErrLLMProvider = errors.New("llm provider error")

	// ErrIterationLimit: the tool-call loop hit its iteration bound without
	// producing a final answer.
	ErrIterationLimit = errors.New("tool iteration limit exceeded")
)

// ToolNotFoundError reports which tool name missed the registry.
func ToolNotFoundError(name string) error {
	return fmt.Errorf("%w: %q", ErrToolNotFound, name)
}

// ValidationError reports a schema violation for one tool argument.
func ValidationError(tool, detail string) error {
	return fmt.Errorf("%w: %s: %s", ErrArgumentValidation, tool, detail)
}

// ExecutionError wraps a handler failure.
func ExecutionError(tool string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrHandlerExecution, tool, cause)
}

// ProviderError wraps an LLM call failure.
func ProviderError(cause error) error {
	return fmt.Errorf("%w: %v", ErrLLMProvider, cause)
}

// IterationLimitError reports the exhausted bound.
func IterationLimitError(limit int) error {
	return fmt.Errorf("%w: %d iterations", ErrIterationLimit, limit)
}
