package llm

import (
	"fmt"

	"github.com/flowforge/flowgraph/component"
	"github.com/flowforge/flowgraph/ir"
	"github.com/flowforge/flowgraph/providers/history"
	"github.com/flowforge/flowgraph/registry"
)

// Register binds the anthropic/openai/google provider factories and a
// shared "llm" component factory into reg. Provider config accepts
// api_key, model, and (anthropic only) max_tokens; component config
// accepts a "tools" list (see ToolSpecsFromConfig).
func Register(reg *registry.Registry) {
	reg.RegisterProviderFactory("anthropic", func(desc ir.Provider) (map[string]interface{}, error) {
		return providerInstance("anthropic", desc.Config), nil
	})
	reg.RegisterProviderFactory("openai", func(desc ir.Provider) (map[string]interface{}, error) {
		return providerInstance("openai", desc.Config), nil
	})
	reg.RegisterProviderFactory("google", func(desc ir.Provider) (map[string]interface{}, error) {
		return providerInstance("google", desc.Config), nil
	})

	reg.RegisterComponentFactory("llm", func(desc ir.Component, provider map[string]interface{}, _ interface{}) (interface{}, error) {
		model, err := buildChatModel(provider)
		if err != nil {
			return nil, err
		}
		tools := ToolSpecsFromConfig(desc.Config)
		hist, err := historyFor(reg, desc.Config)
		if err != nil {
			return nil, err
		}
		responseSchema, err := ResponseSchemaFromConfig(desc.Config)
		if err != nil {
			return nil, err
		}
		return NewChatComponent(model, tools, hist, responseSchema), nil
	})
}

// historyFor resolves a component's optional "history_id" config entry
// into the already-materialized history.Store the registry resolved it
// to (histories are resolved before components within Resolve, so this
// lookup always hits once Resolve has reached the "llm" factory).
func historyFor(reg *registry.Registry, cfg map[string]interface{}) (history.Store, error) {
	id, _ := cfg["history_id"].(string)
	if id == "" {
		return nil, nil
	}
	instance, ok := reg.History(id)
	if !ok {
		return nil, fmt.Errorf("llm: unknown history id %q", id)
	}
	store, ok := instance.(history.Store)
	if !ok {
		return nil, fmt.Errorf("llm: history %q does not implement history.Store", id)
	}
	return store, nil
}

func providerInstance(kind string, cfg map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"_kind": kind}
	for k, v := range cfg {
		out[k] = v
	}
	return out
}

func buildChatModel(provider map[string]interface{}) (ChatModel, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm: component has no resolvable provider")
	}
	kind, _ := provider["_kind"].(string)
	apiKey, _ := provider["api_key"].(string)
	modelName, _ := provider["model"].(string)

	switch kind {
	case "anthropic":
		maxTokens := int64(0)
		if v, ok := provider["max_tokens"].(int); ok {
			maxTokens = int64(v)
		} else if v, ok := provider["max_tokens"].(float64); ok {
			maxTokens = int64(v)
		}
		return NewAnthropicChatModel(apiKey, modelName, maxTokens), nil
	case "openai":
		return NewOpenAIChatModel(apiKey, modelName), nil
	case "google":
		return NewGoogleChatModel(apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider kind %q", kind)
	}
}

var _ component.Callable = (*chatComponent)(nil)
