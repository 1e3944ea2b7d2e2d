package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowforge/flowgraph/component"
	"github.com/flowforge/flowgraph/providers/history"
	"github.com/flowforge/flowgraph/providers/llm/validation"
)

// chatComponent wraps a ChatModel as a component.Callable. It accepts an
// inputs map, not a typed request, per the graph-level component contract
// (spec §6): "messages" (a list of {role, content} maps) or a bare "prompt"
// string, plus an optional "system" string prepended as a system message.
// Tool specs are declared once on the component's config, not per invocation.
// When hist is non-nil, each call loads the named conversation's prior
// turns, prepends them, and appends this call's user turn and the model's
// reply back to the store.
type chatComponent struct {
	model          ChatModel
	tools          []ToolSpec
	hist           history.Store
	responseSchema *validation.Schema
}

// NewChatComponent wraps any ChatModel as a component.Callable, with a
// fixed set of tool specs drawn from the component's declared config and
// an optional conversation-history backend. When responseSchema is
// non-nil, the model's reply text is parsed and validated against it
// (spec'd strict-JSON output checking) before the call succeeds.
func NewChatComponent(model ChatModel, tools []ToolSpec, hist history.Store, responseSchema *validation.Schema) component.Callable {
	return &chatComponent{model: model, tools: tools, hist: hist, responseSchema: responseSchema}
}

func (c *chatComponent) Call(ctx context.Context, _ component.StateView, inputs map[string]interface{}) (map[string]interface{}, error) {
	turn, err := toMessages(inputs)
	if err != nil {
		return nil, err
	}

	messages := turn
	convID := conversationID(inputs)
	if c.hist != nil {
		past, err := c.hist.Load(ctx, convID)
		if err != nil {
			return nil, fmt.Errorf("llm: loading conversation history: %w", err)
		}
		messages = make([]Message, 0, len(past)+len(turn))
		for _, m := range past {
			messages = append(messages, Message{Role: m.Role, Content: m.Content})
		}
		messages = append(messages, turn...)

		for _, m := range turn {
			if m.Role != RoleUser {
				continue
			}
			if err := c.hist.Append(ctx, convID, history.Message{Role: m.Role, Content: m.Content}); err != nil {
				return nil, fmt.Errorf("llm: appending conversation history: %w", err)
			}
		}
	}

	out, err := c.model.Chat(ctx, messages, c.tools)
	if err != nil {
		return nil, err
	}

	var parsed interface{}
	if c.responseSchema != nil {
		parsed, err = validation.ValidateLLMJSON(out.Text, c.responseSchema)
		if err != nil {
			return nil, fmt.Errorf("llm: validating response against declared schema: %w", err)
		}
	}

	if c.hist != nil && out.Text != "" {
		if err := c.hist.Append(ctx, convID, history.Message{Role: RoleAssistant, Content: out.Text}); err != nil {
			return nil, fmt.Errorf("llm: appending conversation history: %w", err)
		}
	}

	result := map[string]interface{}{
		"text":       out.Text,
		"tokens_in":  out.TokensIn,
		"tokens_out": out.TokensOut,
	}
	if c.responseSchema != nil {
		result["parsed"] = parsed
	}
	if len(out.ToolCalls) > 0 {
		calls := make([]interface{}, len(out.ToolCalls))
		for i, tc := range out.ToolCalls {
			calls[i] = map[string]interface{}{"name": tc.Name, "input": tc.Input}
		}
		result["tool_calls"] = calls
	}
	return result, nil
}

// conversationID reads the "conversation_id" input, defaulting to
// "default" so a history-bound llm node works without per-call wiring in
// the common single-conversation case.
func conversationID(inputs map[string]interface{}) string {
	if id, ok := inputs["conversation_id"].(string); ok && id != "" {
		return id
	}
	return "default"
}

// toMessages builds a conversation from the invocation's resolved inputs.
// A "messages" list wins if present; otherwise "system"/"prompt" build a
// single-turn conversation.
func toMessages(inputs map[string]interface{}) ([]Message, error) {
	if raw, ok := inputs["messages"]; ok {
		list, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("llm: \"messages\" input must be a list")
		}
		out := make([]Message, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("llm: each message must be a mapping")
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			out = append(out, Message{Role: role, Content: content})
		}
		return out, nil
	}

	var out []Message
	if system, ok := inputs["system"].(string); ok && system != "" {
		out = append(out, Message{Role: RoleSystem, Content: system})
	}
	if prompt, ok := inputs["prompt"].(string); ok {
		out = append(out, Message{Role: RoleUser, Content: prompt})
	}
	return out, nil
}

// ToolSpecsFromConfig reads a component/node config's "tools" declaration
// into the shared ToolSpec shape, the form every provider adapter consumes.
func ToolSpecsFromConfig(cfg map[string]interface{}) []ToolSpec {
	raw, ok := cfg["tools"].([]interface{})
	if !ok {
		return nil
	}
	specs := make([]ToolSpec, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		desc, _ := m["description"].(string)
		schema, _ := m["schema"].(map[string]interface{})
		specs = append(specs, ToolSpec{Name: name, Description: desc, Schema: schema})
	}
	return specs
}

// ResponseSchemaFromConfig reads a component/node config's optional
// "response_schema" declaration (the same nested map shape as a tool's
// "schema") into a validation.Schema, round-tripping through JSON since
// the config map and validation.Schema share field names. Returns nil,
// nil when absent so callers can treat "no schema" as "no validation" via
// a bare nil check; a malformed declaration is reported at resolve time.
func ResponseSchemaFromConfig(cfg map[string]interface{}) (*validation.Schema, error) {
	raw, ok := cfg["response_schema"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("llm: encoding response_schema: %w", err)
	}
	var schema validation.Schema
	if err := json.Unmarshal(encoded, &schema); err != nil {
		return nil, fmt.Errorf("llm: decoding response_schema: %w", err)
	}
	return &schema, nil
}
