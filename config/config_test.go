package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FLOWGRAPH_CONFIG", "FLOWGRAPH_LOG_LEVEL", "FLOWGRAPH_SERVER_HOST",
		"FLOWGRAPH_SERVER_PORT", "FLOWGRAPH_CORS_ORIGINS", "FLOWGRAPH_LOG_CONSOLE",
		"FLOWGRAPH_QUEUE_DEPTH", "FLOWGRAPH_NODE_TIMEOUT_SECONDS",
		"FLOWGRAPH_RUN_BUDGET_SECONDS", "FLOWGRAPH_DEFAULT_COST_TOKENS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsWithNoFileOrEnv(t *testing.T) {
	clearEnv(t)
	chdirToEmptyTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 256, cfg.Engine.QueueDepth)
	require.Equal(t, 30, cfg.Engine.NodeTimeoutSeconds)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "flowgraph.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[engine]
queue_depth = 999
node_timeout_seconds = 5

[log]
level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 999, cfg.Engine.QueueDepth)
	require.Equal(t, 5, cfg.Engine.NodeTimeoutSeconds)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "flowgraph.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "debug"
`), 0o644))

	t.Setenv("FLOWGRAPH_LOG_LEVEL", "error")
	t.Setenv("FLOWGRAPH_QUEUE_DEPTH", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "error", cfg.Log.Level)
	require.Equal(t, 42, cfg.Engine.QueueDepth)
}

func TestLoadMissingExplicitPathErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load("/nonexistent/path/flowgraph.toml")
	require.Error(t, err)
}

func TestResolveConfigPathPrefersExplicitThenEnvThenCWD(t *testing.T) {
	clearEnv(t)
	require.Equal(t, "explicit.toml", resolveConfigPath("explicit.toml"))

	t.Setenv("FLOWGRAPH_CONFIG", "from-env.toml")
	require.Equal(t, "from-env.toml", resolveConfigPath(""))

	t.Setenv("FLOWGRAPH_CONFIG", "")
	chdirToEmptyTempDir(t)
	require.NoError(t, os.WriteFile("flowgraph.toml", nil, 0o644))
	require.Equal(t, "flowgraph.toml", resolveConfigPath(""))
}

func chdirToEmptyTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
