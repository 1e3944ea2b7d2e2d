package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateLLMJSONAcceptsConformingInstance(t *testing.T) {
	schema := &Schema{Type: "object", Required: []string{"name"}, Properties: map[string]*Schema{
		"name": {Type: "string"},
	}}
	out, err := ValidateLLMJSON(`{"name": "ada"}`, schema)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"name": "ada"}, out)
}

func TestValidateLLMJSONRepairsMalformedJSONBeforeGivingUp(t *testing.T) {
	out, err := ValidateLLMJSON(`{name: 'ada'}`, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"name": "ada"}, out)
}

func TestValidateLLMJSONReportsMissingRequiredField(t *testing.T) {
	schema := &Schema{Type: "object", Required: []string{"name"}}
	_, err := ValidateLLMJSON(`{}`, schema)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ErrLLMJSONParse, verr.Code)
	require.Equal(t, "missing", verr.Actual)
}

func TestValidateLLMJSONReportsTypeMismatch(t *testing.T) {
	schema := &Schema{Type: "object", Properties: map[string]*Schema{"age": {Type: "string"}}}
	_, err := ValidateLLMJSON(`{"age": 30}`, schema)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "/age", verr.Pointer)
	require.Equal(t, "string", verr.Expected)
	require.Equal(t, "integer", verr.Actual)
}

func TestValidateLLMJSONReportsEnumViolation(t *testing.T) {
	schema := &Schema{Type: "object", Properties: map[string]*Schema{
		"status": {Type: "string", Enum: []interface{}{"ok", "error"}},
	}}
	_, err := ValidateLLMJSON(`{"status": "pending"}`, schema)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "/status", verr.Pointer)
}

func TestValidateLLMJSONReportsMinItemsViolation(t *testing.T) {
	schema := &Schema{Type: "object", Properties: map[string]*Schema{
		"tags": {Type: "array", MinItems: 2},
	}}
	_, err := ValidateLLMJSON(`{"tags": ["a"]}`, schema)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "/tags", verr.Pointer)
	require.Equal(t, ">= 2 items", verr.Expected)
}

func TestValidateLLMJSONReturnsEarliestViolationByPointer(t *testing.T) {
	schema := &Schema{Type: "object", Required: []string{"a"}, Properties: map[string]*Schema{
		"a": {Type: "string"},
		"b": {Type: "string"},
	}}
	_, err := ValidateLLMJSON(`{"b": 1}`, schema)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	// both "a" (missing, reported at the object pointer) and "b" (wrong
	// type, at "/b") fail; "/" sorts before "/b" so the object-level
	// required-field violation wins.
	require.Equal(t, "missing", verr.Actual)
}

func TestErrorStringIncludesSuggestion(t *testing.T) {
	err := &Error{Code: ErrLLMJSONParse, Message: "boom", Suggestion: "try again"}
	require.Contains(t, err.Error(), "[ERR_LLM_JSON_PARSE] boom")
	require.Contains(t, err.Error(), "suggestion: try again")
}
