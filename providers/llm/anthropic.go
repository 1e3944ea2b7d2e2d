package llm

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicChatModel adapts Anthropic's Messages API to ChatModel.
type AnthropicChatModel struct {
	apiKey    string
	modelName string
	maxTokens int64
}

// NewAnthropicChatModel builds an adapter for Claude models. modelName
// defaults to a current Sonnet release when empty; maxTokens defaults to
// 4096 when zero.
func NewAnthropicChatModel(apiKey, modelName string, maxTokens int64) *AnthropicChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &AnthropicChatModel{apiKey: apiKey, modelName: modelName, maxTokens: maxTokens}
}

func (m *AnthropicChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if m.apiKey == "" {
		return ChatOut{}, fmt.Errorf("anthropic: api key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(m.apiKey))

	system, turns := splitSystem(messages)
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(m.modelName),
		Messages:  convertAnthropicMessages(turns),
		MaxTokens: m.maxTokens,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = convertAnthropicTools(tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return ChatOut{}, fmt.Errorf("anthropic: %w", err)
	}

	out := ChatOut{
		TokensIn:  int(resp.Usage.InputTokens),
		TokensOut: int(resp.Usage.OutputTokens),
	}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		case anthropicsdk.ToolUseBlock:
			input, _ := b.Input.(map[string]interface{})
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: b.Name, Input: input})
		}
	}
	return out, nil
}

func splitSystem(messages []Message) (string, []Message) {
	var system string
	var rest []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}

func convertAnthropicMessages(messages []Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		if msg.Role == RoleAssistant {
			out[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		} else {
			out[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return out
}

func convertAnthropicTools(tools []ToolSpec) []anthropicsdk.ToolUnionParam {
	out := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, t := range tools {
		var properties any
		var required []string
		if t.Schema != nil {
			properties = t.Schema["properties"]
			required = stringsOf(t.Schema["required"])
		}
		out[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.String(t.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{Properties: properties, Required: required},
			},
		}
	}
	return out
}

// stringsOf coerces a loosely-typed JSON Schema "required" field (a
// []string from Go-authored config, a []interface{} from parsed
// YAML/JSON) to []string.
func stringsOf(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
