package agentflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeConfigVariants(t *testing.T) {
	t.Run("hosted llm", func(t *testing.T) {
		cfg, err := hostedLLM("llm", "GPT").Config()
		require.NoError(t, err)
		c, ok := cfg.(HostedLLM)
		require.True(t, ok)
		assert.Equal(t, "k", c.APIKey)
		assert.Equal(t, "gpt-4", c.ModelName)
		assert.Nil(t, c.Temperature)
		assert.Equal(t, KindLLM, c.Kind())
	})

	t.Run("hub llm selected by prefix", func(t *testing.T) {
		cfg, err := NewNode("hub", KindLLM, map[string]any{
			"id": "hf-falcon", "huggingFaceToken": "hf_t", "modelId": "tiiuae/falcon-7b", "maxLength": "2048",
		}).Config()
		require.NoError(t, err)
		c, ok := cfg.(HubLLM)
		require.True(t, ok)
		assert.Equal(t, "hf_t", c.AccessToken)
		assert.Equal(t, 2048, c.MaxOutputLength)
	})

	t.Run("hub llm default output length", func(t *testing.T) {
		cfg, err := NewNode("hub", KindLLM, map[string]any{"id": "hf-falcon"}).Config()
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxOutputLength, cfg.(HubLLM).MaxOutputLength)
	})

	t.Run("agent defaults", func(t *testing.T) {
		cfg, err := NewNode("a", KindAgent, map[string]any{"id": "multi-agent"}).Config()
		require.NoError(t, err)
		c := cfg.(AgentSettings)
		assert.Equal(t, DefaultAgentCount, c.AgentCount)
		assert.Equal(t, DefaultMaxIterations, c.MaxIterations)
		assert.Nil(t, c.SystemPrompt)
		assert.Equal(t, "multi", c.Family())
	})

	t.Run("tool credential by family", func(t *testing.T) {
		cfg, err := NewNode("t", KindTool, map[string]any{
			"id": "github-search", "githubToken": "ghp_x", "maxResults": 3,
		}).Config()
		require.NoError(t, err)
		c := cfg.(ToolSettings)
		assert.Equal(t, "github", c.Family())
		assert.Equal(t, "ghp_x", c.Credential)
		assert.Equal(t, 3, c.MaxResults)
		assert.True(t, c.IsReadOnly())
	})

	t.Run("tool read-only can be lifted", func(t *testing.T) {
		cfg, err := NewNode("t", KindTool, map[string]any{"id": "slack-bot", "readOnly": false}).Config()
		require.NoError(t, err)
		c := cfg.(ToolSettings)
		assert.False(t, c.IsReadOnly())
		assert.Equal(t, DefaultToolMaxResults, c.MaxResults)
	})

	t.Run("wrongly typed payload", func(t *testing.T) {
		_, err := NewNode("a", KindAgent, map[string]any{"id": "x", "agentCount": map[string]any{"n": 1}}).Config()
		assert.Error(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := NewNode("z", Kind("group"), nil).Config()
		assert.Error(t, err)
	})
}

func TestIsHub(t *testing.T) {
	assert.True(t, IsHub("hf-inference"))
	assert.False(t, IsHub("openai-gpt-4"))
	assert.False(t, IsHub("hfx"))
}

func TestInvalidLLMPayloadFailsValidation(t *testing.T) {
	tests := []struct {
		name        string
		temperature any
	}{
		{"object temperature", map[string]any{}},
		{"non-numeric temperature", "hot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustGraph(t, []Node{
				NewNode("llm", KindLLM, map[string]any{
					"id": "openai-gpt-4", "name": "Broken", "apiKey": "k", "model": "gpt-4", "temperature": tt.temperature,
				}),
				agentNode("agent", ""),
			}, []Edge{{ID: "e", Source: "agent", Target: "llm"}})

			res := Validate(g)
			assert.False(t, res.Valid)
			assert.Equal(t, "Broken has an invalid configuration.", res.Error)

			var verr *ValidationError
			require.ErrorAs(t, res.Err(), &verr)
			assert.Equal(t, "llm", verr.NodeID)
		})
	}
}
