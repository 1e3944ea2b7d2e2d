// Package validation checks LLM output against a caller-supplied schema
// before it reaches a node's output mapping, reporting the first violation
// as a structured, single-error-code diagnostic rather than a bare
// unmarshal error.
package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrLLMJSONParse is the single error code this package ever raises, for
// both malformed JSON and schema-violating JSON: callers branch on the
// code, not on which validator kind tripped.
const ErrLLMJSONParse = "ERR_LLM_JSON_PARSE"

// Schema describes the structure an LLM response must conform to. Its
// fields follow JSON Schema keyword names, so a component config's
// "response_schema" map decodes into it directly (llm.ResponseSchemaFromConfig).
type Schema struct {
	Type       string             `json:"type,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Enum       []interface{}      `json:"enum,omitempty"`
	MinItems   int                `json:"minItems,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
}

// Error is a structured validation failure: a code, a human message, the
// JSON pointer into the instance where it occurred, and what was
// expected/found there. Suggestion is a short actionable hint, omitted
// when none applies.
type Error struct {
	Code       string
	Message    string
	Pointer    string
	Expected   string
	Actual     string
	Suggestion string
}

func (e *Error) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", base, e.Suggestion)
	}
	return base
}

// ValidateLLMJSON parses data (a JSON string, repaired best-effort if
// malformed) and checks it against schema, returning the parsed value on
// success. On failure it returns the single violation sorted first by
// JSON pointer path, matching the "report the earliest failure" behavior
// this is grounded on.
func ValidateLLMJSON(data string, schema *Schema) (interface{}, error) {
	parsed, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return parsed, nil
	}

	violations := validate(parsed, schema, "")
	if len(violations) == 0 {
		return parsed, nil
	}
	sort.Slice(violations, func(i, j int) bool { return violations[i].Pointer < violations[j].Pointer })
	return nil, violations[0]
}

// parseJSON unmarshals data, attempting a jsonrepair pass before giving up
// on malformed input (this codebase's established repair-before-reject
// convention for LLM text, unlike a parser that raises immediately).
func parseJSON(data string) (interface{}, error) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(data), &parsed); err == nil {
		return parsed, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(data)
	if repairErr != nil {
		return nil, &Error{
			Code: ErrLLMJSONParse, Message: "malformed JSON and repair failed: " + repairErr.Error(),
			Pointer: "/", Expected: "valid JSON", Actual: "invalid JSON",
			Suggestion: "verify quotes and trailing commas",
		}
	}
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, &Error{
			Code: ErrLLMJSONParse, Message: "malformed JSON even after repair: " + err.Error(),
			Pointer: "/", Expected: "valid JSON", Actual: "invalid JSON",
			Suggestion: "verify quotes and trailing commas",
		}
	}
	return parsed, nil
}

// validate walks value against schema, collecting every violation found at
// or below pointer (not just the first) so the caller can pick the
// earliest by path.
func validate(value interface{}, schema *Schema, pointer string) []*Error {
	if schema == nil {
		return nil
	}
	var errs []*Error

	if schema.Type != "" {
		if actual := jsonType(value); actual != schema.Type && !(schema.Type == "number" && actual == "integer") {
			errs = append(errs, &Error{
				Code: ErrLLMJSONParse, Message: fmt.Sprintf("value at %q must be of type %q", ptr(pointer), schema.Type),
				Pointer: ptr(pointer), Expected: schema.Type, Actual: actual,
				Suggestion: fmt.Sprintf("cast value to %s", schema.Type),
			})
			return errs
		}
	}

	if len(schema.Enum) > 0 {
		if !containsAny(schema.Enum, value) {
			errs = append(errs, &Error{
				Code: ErrLLMJSONParse, Message: fmt.Sprintf("value at %q must be one of the allowed values", ptr(pointer)),
				Pointer: ptr(pointer), Expected: fmt.Sprintf("one of %v", schema.Enum), Actual: fmt.Sprintf("%v", value),
				Suggestion: "use a supported value",
			})
		}
	}

	switch schema.Type {
	case "object":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return errs
		}
		for _, field := range schema.Required {
			if _, present := obj[field]; !present {
				errs = append(errs, &Error{
					Code: ErrLLMJSONParse, Message: fmt.Sprintf("required field %q is missing", field),
					Pointer: ptr(pointer), Expected: fmt.Sprintf("field %q", field), Actual: "missing",
					Suggestion: fmt.Sprintf("include field %q", field),
				})
			}
		}
		for name, sub := range schema.Properties {
			if v, present := obj[name]; present {
				errs = append(errs, validate(v, sub, pointer+"/"+name)...)
			}
		}
	case "array":
		arr, ok := value.([]interface{})
		if !ok {
			return errs
		}
		if schema.MinItems > 0 && len(arr) < schema.MinItems {
			errs = append(errs, &Error{
				Code: ErrLLMJSONParse, Message: fmt.Sprintf("array at %q has too few items", ptr(pointer)),
				Pointer: ptr(pointer), Expected: fmt.Sprintf(">= %d items", schema.MinItems), Actual: fmt.Sprintf("%d items", len(arr)),
				Suggestion: "append more items",
			})
		}
		if schema.Items != nil {
			for i, v := range arr {
				errs = append(errs, validate(v, schema.Items, fmt.Sprintf("%s/%d", pointer, i))...)
			}
		}
	}

	return errs
}

func ptr(pointer string) string {
	if pointer == "" {
		return "/"
	}
	return pointer
}

func jsonType(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		if val == float64(int64(val)) {
			return "integer"
		}
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return strings.ToLower(fmt.Sprintf("%T", v))
	}
}

func containsAny(candidates []interface{}, value interface{}) bool {
	for _, c := range candidates {
		if fmt.Sprint(c) == fmt.Sprint(value) {
			return true
		}
	}
	return false
}
