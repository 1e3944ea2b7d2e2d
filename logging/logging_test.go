package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoLevelJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf})

	logger.Debug().Msg("should not appear")
	logger.Info().Msg("hello")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &decoded))
	require.Equal(t, "hello", decoded["message"])
	require.Equal(t, "info", decoded["level"])
}

func TestNewAttachesComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf, Component: "scheduler"})
	logger.Info().Msg("tick")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "scheduler", decoded["component"])
}

func TestNewRespectsExplicitLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf, Level: "error"})

	logger.Warn().Msg("should be filtered")
	logger.Error().Msg("should appear")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
}

func TestParseLevelUnknownDefaultsToInfo(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, parseLevel("not-a-level"))
	require.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	require.Equal(t, zerolog.Disabled, parseLevel("off"))
}

func TestForNodeAttachesRunAndNodeFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Writer: &buf})
	scoped := ForNode(base, "run-1", "node-a")
	scoped.Info().Msg("invoked")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "run-1", decoded["run_id"])
	require.Equal(t, "node-a", decoded["node_id"])
}
