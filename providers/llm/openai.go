package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIChatModel adapts the Chat Completions API to ChatModel.
type OpenAIChatModel struct {
	apiKey    string
	modelName string
}

// NewOpenAIChatModel builds an adapter for GPT models. modelName defaults
// to a current general-purpose model when empty.
func NewOpenAIChatModel(apiKey, modelName string) *OpenAIChatModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &OpenAIChatModel{apiKey: apiKey, modelName: modelName}
}

func (m *OpenAIChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if m.apiKey == "" {
		return ChatOut{}, fmt.Errorf("openai: api key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(m.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(m.modelName),
		Messages: convertOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertOpenAITools(tools)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ChatOut{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatOut{}, nil
	}

	out := ChatOut{
		TokensIn:  int(resp.Usage.PromptTokens),
		TokensOut: int(resp.Usage.CompletionTokens),
	}
	msg := resp.Choices[0].Message
	out.Text = msg.Content
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			Name:  tc.Function.Name,
			Input: parseToolArguments(tc.Function.Arguments),
		})
	}
	return out, nil
}

func convertOpenAIMessages(messages []Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out[i] = openaisdk.SystemMessage(msg.Content)
		case RoleAssistant:
			out[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			out[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return out
}

func convertOpenAITools(tools []ToolSpec) []openaisdk.ChatCompletionToolParam {
	out := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openaisdk.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Schema),
			},
		}
	}
	return out
}

// parseToolArguments decodes a tool call's JSON argument string, repairing
// minor model formatting slips (trailing commas, unquoted keys) before
// giving up and returning the raw string under "_raw".
func parseToolArguments(raw string) map[string]interface{} {
	if raw == "" {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return map[string]interface{}{"_raw": raw}
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return map[string]interface{}{"_raw": raw}
	}
	return out
}
