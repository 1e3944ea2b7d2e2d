package scheduler

// Small, permissive extractors over a node's opaque Config map, mirroring
// policy.configutil's style: missing keys fall back to a default, present-
// but-wrong-typed keys are treated as absent rather than erroring, since
// map/parallel node config is validated at authoring time by schema, not
// here.

func stringCfg(cfg map[string]interface{}, key, def string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return def
}

func boolCfg(cfg map[string]interface{}, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}

func stringSliceCfg(cfg map[string]interface{}, key string) []string {
	raw, ok := cfg[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
