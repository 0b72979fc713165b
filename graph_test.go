package agentflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostedLLM(id, name string) Node {
	return NewNode(id, KindLLM, map[string]any{
		"id": "openai-gpt-4", "name": name, "apiKey": "k", "model": "gpt-4",
	})
}

func agentNode(id, prompt string) Node {
	return NewNode(id, KindAgent, map[string]any{
		"id": "conversational-agent", "name": "Agent", "systemPrompt": prompt,
	})
}

func toolNode(id, provider string) Node {
	return NewNode(id, KindTool, map[string]any{"id": provider, "name": provider})
}

// scenarioA is an LLM, an agent and a DuckDuckGo tool, wired agent→llm and
// agent→tool.
func scenarioA(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(
		[]Node{hostedLLM("llm", "GPT-4"), agentNode("agent", "You are helpful"), toolNode("tool", "duckduckgo-search")},
		[]Edge{{ID: "e1", Source: "agent", Target: "llm"}, {ID: "e2", Source: "agent", Target: "tool"}},
	)
	require.NoError(t, err)
	return g
}

func TestNewGraph(t *testing.T) {
	g := scenarioA(t)

	assert.Equal(t, 3, g.Len())
	n, ok := g.NodeByID("tool")
	require.True(t, ok)
	assert.Equal(t, KindTool, n.Kind)
	assert.Equal(t, "duckduckgo-search", n.ProviderID())

	_, ok = g.NodeByID("missing")
	assert.False(t, ok)

	assert.Len(t, g.Edges(), 2)
	assert.True(t, g.HasKind(KindLLM))
	assert.ElementsMatch(t, []string{"llm", "tool"}, g.Neighbors("agent"))
	assert.Equal(t, []string{"agent"}, g.Neighbors("llm"))
}

func TestNewGraphRejectsBrokenStructure(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		edges []Edge
		path  string
	}{
		{
			name:  "empty id",
			nodes: []Node{NewNode("", KindLLM, nil)},
			path:  "nodes[0].id",
		},
		{
			name:  "duplicate id",
			nodes: []Node{agentNode("a", ""), agentNode("a", "")},
			path:  "nodes[1].id",
		},
		{
			name:  "dangling source",
			nodes: []Node{agentNode("a", "")},
			edges: []Edge{{ID: "e", Source: "ghost", Target: "a"}},
			path:  "edges[0].source",
		},
		{
			name:  "dangling target",
			nodes: []Node{agentNode("a", "")},
			edges: []Edge{{ID: "e", Source: "a", Target: "ghost"}},
			path:  "edges[0].target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.nodes, tt.edges)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedInput))

			var ie *InputError
			require.True(t, errors.As(err, &ie))
			require.NotEmpty(t, ie.Details)
			assert.Equal(t, tt.path, ie.Details[0].Path)
		})
	}
}

func TestNodeDataIsCopied(t *testing.T) {
	data := map[string]any{"id": "duckduckgo-search", "nested": map[string]any{"k": "v"}}
	n := NewNode("t", KindTool, data)

	data["id"] = "changed"
	data["nested"].(map[string]any)["k"] = "changed"
	assert.Equal(t, "duckduckgo-search", n.ProviderID())

	out := n.Data()
	out["nested"].(map[string]any)["k"] = "mutated"
	v, _ := n.Value("nested")
	assert.Equal(t, "v", v.(map[string]any)["k"])
}

func TestNodesOfKindKeepsInsertionOrder(t *testing.T) {
	g, err := NewGraph([]Node{
		toolNode("t2", "github-search"),
		agentNode("a", ""),
		toolNode("t1", "duckduckgo-search"),
		toolNode("t3", "jira-search"),
	}, nil)
	require.NoError(t, err)

	var ids []string
	for _, n := range g.NodesOfKind(KindTool) {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"t2", "t1", "t3"}, ids)
}

func TestDisplayNameFallsBackToID(t *testing.T) {
	assert.Equal(t, "llm-7", NewNode("llm-7", KindLLM, map[string]any{}).DisplayName())
	assert.Equal(t, "GPT", NewNode("llm-7", KindLLM, map[string]any{"name": "GPT"}).DisplayName())
}
