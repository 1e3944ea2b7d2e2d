package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowgraph/component"
	"github.com/flowforge/flowgraph/providers/history"
)

type fakeChatModel struct {
	lastMessages []Message
	lastTools    []ToolSpec
	out          ChatOut
	err          error
}

func (f *fakeChatModel) Chat(_ context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	f.lastMessages = messages
	f.lastTools = tools
	return f.out, f.err
}

func TestChatComponentBuildsSingleTurnFromPromptAndSystem(t *testing.T) {
	model := &fakeChatModel{out: ChatOut{Text: "hi there", TokensIn: 3, TokensOut: 2}}
	c := NewChatComponent(model, nil, nil, nil)

	out, err := c.Call(context.Background(), component.StateView{}, map[string]interface{}{
		"system": "be nice",
		"prompt": "hello",
	})
	require.NoError(t, err)
	require.Equal(t, "hi there", out["text"])
	require.Equal(t, 3, out["tokens_in"])
	require.Equal(t, 2, out["tokens_out"])
	require.Len(t, model.lastMessages, 2)
	require.Equal(t, RoleSystem, model.lastMessages[0].Role)
	require.Equal(t, RoleUser, model.lastMessages[1].Role)
}

func TestChatComponentPrefersMessagesListOverPrompt(t *testing.T) {
	model := &fakeChatModel{out: ChatOut{Text: "ok"}}
	c := NewChatComponent(model, nil, nil, nil)

	_, err := c.Call(context.Background(), component.StateView{}, map[string]interface{}{
		"prompt": "ignored",
		"messages": []interface{}{
			map[string]interface{}{"role": "user", "content": "from list"},
		},
	})
	require.NoError(t, err)
	require.Len(t, model.lastMessages, 1)
	require.Equal(t, "from list", model.lastMessages[0].Content)
}

func TestChatComponentRejectsNonListMessages(t *testing.T) {
	model := &fakeChatModel{}
	c := NewChatComponent(model, nil, nil, nil)
	_, err := c.Call(context.Background(), component.StateView{}, map[string]interface{}{"messages": "not a list"})
	require.Error(t, err)
}

func TestChatComponentIncludesToolCallsWhenPresent(t *testing.T) {
	model := &fakeChatModel{out: ChatOut{
		Text:      "",
		ToolCalls: []ToolCall{{Name: "search", Input: map[string]interface{}{"q": "go"}}},
	}}
	c := NewChatComponent(model, nil, nil, nil)
	out, err := c.Call(context.Background(), component.StateView{}, map[string]interface{}{"prompt": "look it up"})
	require.NoError(t, err)
	calls, ok := out["tool_calls"].([]interface{})
	require.True(t, ok)
	require.Len(t, calls, 1)
	call := calls[0].(map[string]interface{})
	require.Equal(t, "search", call["name"])
}

func TestChatComponentLoadsAndAppendsHistoryAroundCall(t *testing.T) {
	hist := history.NewMemStore()
	require.NoError(t, hist.Append(context.Background(), "default", history.Message{Role: RoleUser, Content: "earlier"}))

	model := &fakeChatModel{out: ChatOut{Text: "reply"}}
	c := NewChatComponent(model, nil, hist, nil)

	_, err := c.Call(context.Background(), component.StateView{}, map[string]interface{}{"prompt": "now"})
	require.NoError(t, err)

	require.Len(t, model.lastMessages, 2)
	require.Equal(t, "earlier", model.lastMessages[0].Content)
	require.Equal(t, "now", model.lastMessages[1].Content)

	stored, err := hist.Load(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	require.Equal(t, RoleAssistant, stored[2].Role)
	require.Equal(t, "reply", stored[2].Content)
}

func TestChatComponentUsesExplicitConversationID(t *testing.T) {
	hist := history.NewMemStore()
	model := &fakeChatModel{out: ChatOut{Text: "reply"}}
	c := NewChatComponent(model, nil, hist, nil)

	_, err := c.Call(context.Background(), component.StateView{}, map[string]interface{}{
		"prompt":          "now",
		"conversation_id": "conv-42",
	})
	require.NoError(t, err)

	stored, err := hist.Load(context.Background(), "conv-42")
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestToolSpecsFromConfigParsesDeclaredTools(t *testing.T) {
	cfg := map[string]interface{}{
		"tools": []interface{}{
			map[string]interface{}{
				"name":        "search",
				"description": "web search",
				"schema":      map[string]interface{}{"type": "object"},
			},
		},
	}
	specs := ToolSpecsFromConfig(cfg)
	require.Len(t, specs, 1)
	require.Equal(t, "search", specs[0].Name)
	require.Equal(t, "web search", specs[0].Description)
}

func TestToolSpecsFromConfigHandlesMissingKey(t *testing.T) {
	require.Nil(t, ToolSpecsFromConfig(map[string]interface{}{}))
}

func TestChatComponentValidatesReplyAgainstResponseSchema(t *testing.T) {
	schema, err := ResponseSchemaFromConfig(map[string]interface{}{
		"response_schema": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"answer"},
			"properties": map[string]interface{}{
				"answer": map[string]interface{}{"type": "string"},
			},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, schema)

	model := &fakeChatModel{out: ChatOut{Text: `{"answer": "42"}`}}
	c := NewChatComponent(model, nil, nil, schema)
	out, err := c.Call(context.Background(), component.StateView{}, map[string]interface{}{"prompt": "q"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"answer": "42"}, out["parsed"])
}

func TestChatComponentRejectsReplyViolatingResponseSchema(t *testing.T) {
	schema, err := ResponseSchemaFromConfig(map[string]interface{}{
		"response_schema": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"answer"},
		},
	})
	require.NoError(t, err)

	model := &fakeChatModel{out: ChatOut{Text: `{"wrong": "42"}`}}
	c := NewChatComponent(model, nil, nil, schema)
	_, err = c.Call(context.Background(), component.StateView{}, map[string]interface{}{"prompt": "q"})
	require.Error(t, err)
}

func TestResponseSchemaFromConfigReturnsNilWhenAbsent(t *testing.T) {
	schema, err := ResponseSchemaFromConfig(map[string]interface{}{})
	require.NoError(t, err)
	require.Nil(t, schema)
}
