package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
meta:
  version: "1"
runtime:
  engine: lc.lcel
providers:
  - id: openai-main
    type: openai
graph:
  entry: start
  nodes:
    - id: start
`

func TestParseValidDocument(t *testing.T) {
	doc, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	require.Equal(t, "lc.lcel", doc.Raw.Runtime.Engine)
	require.Equal(t, "start", doc.Raw.Graph.Entry)
}

func TestParseRejectsDuplicateKeys(t *testing.T) {
	const dup = `
meta:
  version: "1"
meta:
  version: "2"
`
	_, err := Parse([]byte(dup))
	require.Error(t, err)
	var irErr *Error
	require.ErrorAs(t, err, &irErr)
	require.Equal(t, ErrYAMLDuplicateKey, irErr.Code)
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(""))
	require.Error(t, err)
}

func TestDocumentValidateRejectsUnsupportedEngine(t *testing.T) {
	doc, err := Parse([]byte(`
meta:
  version: "1"
runtime:
  engine: not.a.real.engine
graph:
  entry: start
  nodes:
    - id: start
`))
	require.NoError(t, err)

	err = doc.Validate()
	require.Error(t, err)
	var irErr *Error
	require.ErrorAs(t, err, &irErr)
	require.Equal(t, ErrUnsupportedEngine, irErr.Code)
}

func TestDocumentPointerResolvesLineColumn(t *testing.T) {
	doc, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	pos := doc.Pointer("$/runtime/engine")
	require.Greater(t, pos.Line, 0)
}
