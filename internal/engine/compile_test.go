package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowgraph/ir"
)

const minimalDoc = `
meta:
  version: "1"
runtime:
  engine: lc.lcel
providers:
  - id: local
    type: openai
tools:
  - id: fetcher
    type: http_request
    config:
      timeout_seconds: 5
      permissions: ["net.http"]
components:
  - id: fetch
    type: tool
    provider: local
    tool: fetcher
graph:
  entry: fetch_node
  nodes:
    - id: fetch_node
      component: fetch
  outputs:
    - key: result
      node: fetch_node
      output: "$.status"
`

func TestCompileResolvesMinimalDocument(t *testing.T) {
	compiled, err := Compile("minimal.yaml", []byte(minimalDoc))
	require.NoError(t, err)
	defer compiled.Close()

	require.Equal(t, "fetch_node", compiled.Def.EntryID)
	require.Contains(t, compiled.Def.Nodes, "fetch_node")
	require.Equal(t, ir.KindTool, compiled.Def.Nodes["fetch_node"].Kind)
	require.Equal(t, []string{"net.http"}, compiled.Def.Nodes["fetch_node"].Permissions)
}

func TestCompileRejectsInvalidYAML(t *testing.T) {
	_, err := Compile("broken.yaml", []byte("not: [valid"))
	require.Error(t, err)
}

func TestCompileRejectsUnresolvableProvider(t *testing.T) {
	doc := `
meta:
  version: "1"
runtime:
  engine: lc.lcel
components:
  - id: c1
    type: llm
    provider: missing-provider
graph:
  entry: n1
  nodes:
    - id: n1
      component: c1
`
	_, err := Compile("bad.yaml", []byte(doc))
	require.Error(t, err)
}

func TestSchedulerBuildsARunnableSchedulerOverCompiledDocument(t *testing.T) {
	compiled, err := Compile("minimal.yaml", []byte(minimalDoc))
	require.NoError(t, err)
	sched := compiled.Scheduler()
	require.NotNil(t, sched)
	sched.Close()
}
