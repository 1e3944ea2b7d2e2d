package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleChatModel adapts the Gemini GenerateContent API to ChatModel.
type GoogleChatModel struct {
	apiKey    string
	modelName string
}

// NewGoogleChatModel builds an adapter for Gemini models. modelName
// defaults to a current flash-tier model when empty.
func NewGoogleChatModel(apiKey, modelName string) *GoogleChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GoogleChatModel{apiKey: apiKey, modelName: modelName}
}

func (m *GoogleChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if m.apiKey == "" {
		return ChatOut{}, fmt.Errorf("google: api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return ChatOut{}, fmt.Errorf("google: client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(m.modelName)
	system, turns := splitSystem(messages)
	if system != "" {
		genModel.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	if len(tools) > 0 {
		genModel.Tools = convertGoogleTools(tools)
	}

	parts := convertGoogleParts(turns)
	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		return ChatOut{}, fmt.Errorf("google: %w", err)
	}

	out := ChatOut{}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: p.Name, Input: p.Args})
		}
	}
	return out, nil
}

func convertGoogleParts(messages []Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

func convertGoogleTools(tools []ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertGoogleSchema(t.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func convertGoogleSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject, Required: stringsOf(schema["required"])}

	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return result
	}
	result.Properties = make(map[string]*genai.Schema, len(props))
	for key, raw := range props {
		propMap, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		prop := &genai.Schema{}
		if typeStr, ok := propMap["type"].(string); ok {
			prop.Type = googleSchemaType(typeStr)
		}
		if desc, ok := propMap["description"].(string); ok {
			prop.Description = desc
		}
		result.Properties[key] = prop
	}
	return result
}

func googleSchemaType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
