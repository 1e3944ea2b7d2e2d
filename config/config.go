// Package config loads flowgraph's engine-wide settings: queue depth,
// default node timeout, wall-clock run budget, and the HTTP/logging
// surface cmd/flowgraph exposes. Precedence mirrors the teacher corpus's
// config packages: environment variables > TOML file > built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the full set of engine-wide defaults a document's own
// `runtime`/`policies` blocks may still override per spec §4.1/§4.5-§4.9;
// this is the floor applied when a document is silent.
type Config struct {
	Engine EngineConfig `toml:"engine"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// EngineConfig holds scheduler-wide defaults.
type EngineConfig struct {
	// QueueDepth is loaded from TOML and the environment; the bus does not
	// read it, and its fan-out does not buffer events.
	QueueDepth int `toml:"queue_depth"`
	// NodeTimeoutSeconds is loaded from TOML and the environment; the
	// scheduler does not read it, so no per-node deadline is applied from it.
	NodeTimeoutSeconds int `toml:"node_timeout_seconds"`
	// RunBudgetSeconds is the default wall-clock budget for an entire run;
	// zero means unbounded.
	RunBudgetSeconds int `toml:"run_budget_seconds"`
	// DefaultCostTokens is loaded from TOML and the environment; the engine
	// does not read it, so a document without a cost policy runs with no
	// token cap.
	DefaultCostTokens int `toml:"default_cost_tokens"`
}

// ServerConfig holds the `flowgraph serve` HTTP listen settings.
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        string `toml:"port"`
	CORSOrigins string `toml:"cors_origins"`
}

// LogConfig holds logging.Options source values.
type LogConfig struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			QueueDepth:         256,
			NodeTimeoutSeconds: 30,
			RunBudgetSeconds:   0,
			DefaultCostTokens:  0,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        "8080",
			CORSOrigins: "*",
		},
		Log: LogConfig{
			Level:   "info",
			Console: false,
		},
	}
}

// Load builds a Config layering, in increasing precedence: built-in
// defaults, an optional TOML file (path, or FLOWGRAPH_CONFIG, or
// ./flowgraph.toml in that order), a .env file loaded via godotenv (if
// present; never an error if absent), then environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(explicit string) error {
	path := resolveConfigPath(explicit)
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("FLOWGRAPH_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("flowgraph.toml"); err == nil {
		return "flowgraph.toml"
	}
	return ""
}

func (c *Config) applyEnv() {
	envOverrideString("FLOWGRAPH_LOG_LEVEL", &c.Log.Level)
	envOverrideString("FLOWGRAPH_SERVER_HOST", &c.Server.Host)
	envOverrideString("FLOWGRAPH_SERVER_PORT", &c.Server.Port)
	envOverrideString("FLOWGRAPH_CORS_ORIGINS", &c.Server.CORSOrigins)

	envOverrideBool("FLOWGRAPH_LOG_CONSOLE", &c.Log.Console)
	envOverrideInt("FLOWGRAPH_QUEUE_DEPTH", &c.Engine.QueueDepth)
	envOverrideInt("FLOWGRAPH_NODE_TIMEOUT_SECONDS", &c.Engine.NodeTimeoutSeconds)
	envOverrideInt("FLOWGRAPH_RUN_BUDGET_SECONDS", &c.Engine.RunBudgetSeconds)
	envOverrideInt("FLOWGRAPH_DEFAULT_COST_TOKENS", &c.Engine.DefaultCostTokens)
}

func envOverrideString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envOverrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			*dst = n
		}
	}
}
