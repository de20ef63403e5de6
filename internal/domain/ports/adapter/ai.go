package adapter

import "context"

// Message represents a chat message on the upstream wire.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system", "tool"
	Content string `json:"content"`
}

// ToolDefinition describes one function tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// ToolRunner executes a tool call and returns the JSON result string.
// It must not fail the chat: errors are encoded into the result payload.
type ToolRunner func(ctx context.Context, call ToolCall) string

// ChatRequest carries everything one completion call needs.
type ChatRequest struct {
	Model       string
	Temperature float64
	Messages    []Message
	Tools       []ToolDefinition
	RunTool     ToolRunner // required when Tools is non-empty
}

// AIServiceAdapter is the port for OpenAI-compatible LLM chat.
type AIServiceAdapter interface {
	ListModels(ctx context.Context) ([]string, error)

	// CountTokens returns prompt tokens for the provided messages
	// (best-effort when exact counting isn't available for the model).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// StreamChat runs one chat completion, invoking emit for each incremental
	// piece of assistant text in order. When the upstream cannot stream (the
	// tool-calling path), the full reply arrives as a single emit call.
	// Returning a non-nil error from emit aborts the call.
	StreamChat(ctx context.Context, req ChatRequest, emit func(delta string) error) error
}
