package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
)

func TestNewGoogleChatModelAppliesDefault(t *testing.T) {
	m := NewGoogleChatModel("key", "")
	require.Equal(t, "gemini-2.5-flash", m.modelName)
}

func TestGoogleChatModelRejectsMissingAPIKey(t *testing.T) {
	m := NewGoogleChatModel("", "gemini-2.5-flash")
	_, err := m.Chat(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestConvertGooglePartsSkipsEmptyContent(t *testing.T) {
	parts := convertGoogleParts([]Message{{Role: RoleUser, Content: "hi"}, {Role: RoleUser, Content: ""}})
	require.Len(t, parts, 1)
}

func TestConvertGoogleSchemaBuildsPropertiesAndRequired(t *testing.T) {
	schema := convertGoogleSchema(map[string]interface{}{
		"required": []interface{}{"q"},
		"properties": map[string]interface{}{
			"q": map[string]interface{}{"type": "string", "description": "query"},
		},
	})
	require.Equal(t, genai.TypeObject, schema.Type)
	require.Equal(t, []string{"q"}, schema.Required)
	require.Equal(t, genai.TypeString, schema.Properties["q"].Type)
	require.Equal(t, "query", schema.Properties["q"].Description)
}

func TestConvertGoogleSchemaHandlesNilSchema(t *testing.T) {
	require.Nil(t, convertGoogleSchema(nil))
}

func TestGoogleSchemaTypeMapsKnownTypes(t *testing.T) {
	require.Equal(t, genai.TypeString, googleSchemaType("string"))
	require.Equal(t, genai.TypeArray, googleSchemaType("array"))
	require.Equal(t, genai.TypeUnspecified, googleSchemaType("bogus"))
}
