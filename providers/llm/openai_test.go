package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOpenAIChatModelAppliesDefault(t *testing.T) {
	m := NewOpenAIChatModel("key", "")
	require.Equal(t, "gpt-4o", m.modelName)
}

func TestOpenAIChatModelRejectsMissingAPIKey(t *testing.T) {
	m := NewOpenAIChatModel("", "gpt-4o")
	_, err := m.Chat(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestParseToolArgumentsParsesValidJSON(t *testing.T) {
	out := parseToolArguments(`{"q": "go modules"}`)
	require.Equal(t, "go modules", out["q"])
}

func TestParseToolArgumentsRepairsMinorSlips(t *testing.T) {
	out := parseToolArguments(`{q: "go modules",}`)
	require.Equal(t, "go modules", out["q"])
}

func TestParseToolArgumentsFallsBackToRawOnUnrepairable(t *testing.T) {
	raw := "the quick brown fox jumps over the lazy dog"
	out := parseToolArguments(raw)
	require.Equal(t, raw, out["_raw"])
}

func TestParseToolArgumentsHandlesEmptyString(t *testing.T) {
	require.Nil(t, parseToolArguments(""))
}
