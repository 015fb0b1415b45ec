// Package llm provides the chat-completion client the diagnosis coordinator
// talks to. Any OpenAI-compatible endpoint works, including self-hosted
// gateways, via a custom base URL.
package llm

import "context"

// Message is one turn in a conversation. Tool results are sent back with
// role "tool" and the originating call's ID.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Tool is a function the model may call.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON schema
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// TokenUsage tracks token consumption for one request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the model's reply: either content, tool calls, or both.
type Completion struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     TokenUsage `json:"usage"`
}

// Client completes conversations. Implementations must be safe for
// concurrent use.
type Client interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Completion, error)

	// Model names the configured model for logging and metrics.
	Model() string
}
