// Package llm adapts the provider SDKs (Anthropic, OpenAI, Google) to the
// registry's provider/component factory contract, exposing each as a
// component.Callable that reads structured inputs and returns a structured
// result instead of a typed request/response pair.
package llm

import "context"

// Message is one turn in a chat-style conversation, the common shape every
// provider adapter converts to and from its own SDK types.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call, using JSON Schema for its
// parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolCall is a model-requested invocation of one of the ToolSpecs passed
// into Chat.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}

// ChatOut is a chat completion's result: text, zero or more tool calls, and
// best-effort token usage for cost-limiter charging.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
	TokensIn  int
	TokensOut int
}

// ChatModel is the common interface every provider adapter satisfies.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}
