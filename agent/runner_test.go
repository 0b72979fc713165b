package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/agentflow"
	"github.com/meikuraledutech/agentflow/generate"
	"github.com/meikuraledutech/agentflow/session"
	"github.com/meikuraledutech/agentflow/tools"
)

type captured struct {
	prompt generate.Prompt
	model  generate.ModelConfig
	err    error
}

func (c *captured) Generate(_ context.Context, p generate.Prompt, m generate.ModelConfig) (string, error) {
	c.prompt, c.model = p, m
	if c.err != nil {
		return "", c.err
	}
	return "generated", nil
}

func ddgServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		topics := make([]map[string]any, 0, 8)
		for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
			topics = append(topics, map[string]any{"Text": name + " - about " + name, "FirstURL": "https://example.com/" + name})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"RelatedTopics": topics})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func configFor(agentType string, toolIDs ...string) *agentflow.Config {
	cfg := agentflow.DefaultConfig()
	cfg.Agent.ProviderID = agentType
	cfg.LLM.Credential = "sk"
	for _, id := range toolIDs {
		cfg.Tools = append(cfg.Tools, agentflow.ToolBinding{ProviderID: id, Config: map[string]any{"id": id, "maxResults": 10}})
	}
	return cfg
}

func turn(cfg *agentflow.Config, msg string) session.Turn {
	return session.Turn{
		SessionID: "s1",
		Target:    session.Target{Config: cfg},
		History: []session.Message{
			{Role: session.RoleUser, Content: "earlier"},
			{Role: session.RoleAssistant, Content: "reply"},
		},
		Message: msg,
	}
}

func TestConversationalAgentPassesHistory(t *testing.T) {
	gen := &captured{}
	r := NewRunner(gen, nil)

	reply, err := r.Generate(context.Background(), turn(configFor("conversational-agent"), "What next?"))
	require.NoError(t, err)
	assert.Equal(t, "generated", reply)

	assert.Equal(t, "You are a helpful assistant.", gen.prompt.System)
	assert.Equal(t, "What next?", gen.prompt.User)
	assert.Equal(t, []generate.Message{
		{Role: generate.RoleUser, Content: "earlier"},
		{Role: generate.RoleAssistant, Content: "reply"},
	}, gen.prompt.History)

	assert.Equal(t, generate.ModelConfig{
		ProviderID: "openai-gpt-4", Model: "gpt-4", Temperature: agentflow.DefaultTemperature, Credential: "sk",
	}, gen.model)
}

func TestResearchAgentUsesSearchResults(t *testing.T) {
	srv := ddgServer(t)
	gen := &captured{}
	registry := tools.NewRegistry(tools.Env{Endpoints: map[string]string{"duckduckgo": srv.URL}})
	r := NewRunner(gen, registry)

	_, err := r.Generate(context.Background(), turn(configFor("research-agent", "duckduckgo-search"), "letters"))
	require.NoError(t, err)

	assert.Nil(t, gen.prompt.History, "research prompts stand alone")
	assert.Contains(t, gen.prompt.User, "You are a research assistant.")
	assert.Contains(t, gen.prompt.User, "1. A: A - about A")
	assert.Contains(t, gen.prompt.User, "5. E: E - about E")
	assert.NotContains(t, gen.prompt.User, "6. F")
	assert.Contains(t, gen.prompt.User, "User's question: letters")
	assert.Equal(t, "letters", gen.prompt.Query)
}

func TestResearchAgentSurvivesToolFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gen := &captured{}
	registry := tools.NewRegistry(tools.Env{Endpoints: map[string]string{"duckduckgo": srv.URL}})
	r := NewRunner(gen, registry)

	_, err := r.Generate(context.Background(), turn(configFor("research-agent", "duckduckgo-search"), "anything"))
	require.NoError(t, err)
	assert.Contains(t, gen.prompt.User, "Search results:\n\nUser's question: anything")
}

func TestCodingAgentWrapsRequest(t *testing.T) {
	gen := &captured{}
	r := NewRunner(gen, nil)

	_, err := r.Generate(context.Background(), turn(configFor("coding-agent"), "reverse a string"))
	require.NoError(t, err)
	assert.Contains(t, gen.prompt.User, "You are a coding assistant.")
	assert.Contains(t, gen.prompt.User, "User's request: reverse a string")
	assert.Len(t, gen.prompt.History, 2)
}

func TestGenericAgentIncludesToolOutput(t *testing.T) {
	srv := ddgServer(t)
	gen := &captured{}
	registry := tools.NewRegistry(tools.Env{Endpoints: map[string]string{"duckduckgo": srv.URL}})
	r := NewRunner(gen, registry)

	cfg := configFor("autonomous-agent", "duckduckgo-search", "unknown-tool")
	cfg.Agent.Verbose = true
	_, err := r.Generate(context.Background(), turn(cfg, "find letters"))
	require.NoError(t, err)

	assert.Contains(t, gen.prompt.User, "Tool results:\nduckduckgo-search results:")
	assert.Contains(t, gen.prompt.User, "User's request: find letters")
}

func TestGenericAgentWithoutTools(t *testing.T) {
	gen := &captured{}
	r := NewRunner(gen, nil)

	_, err := r.Generate(context.Background(), turn(configFor("multi-agent"), "plan a trip"))
	require.NoError(t, err)
	assert.Equal(t, "User's request: plan a trip\n\nProvide a helpful response based on the available information.", gen.prompt.User)
}

func TestRunnerPropagatesGenerationErrors(t *testing.T) {
	boom := errors.New("rate limited")
	r := NewRunner(&captured{err: boom}, nil)

	_, err := r.Generate(context.Background(), turn(configFor("conversational-agent"), "hi"))
	assert.ErrorIs(t, err, boom)
}

func TestRunnerWithStubInSession(t *testing.T) {
	s := session.New(session.Target{Config: agentflow.DefaultConfig()}, NewRunner(generate.Stub{}, nil))
	defer s.Close()

	reply, err := s.Submit(context.Background(), "What about Coca Cola stock?")
	require.NoError(t, err)
	assert.Equal(t, generate.StockAnswer, reply.Content)
}

func TestRunnerExtractsRawGraph(t *testing.T) {
	g, err := agentflow.NewGraph([]agentflow.Node{
		agentflow.NewNode("a", agentflow.KindAgent, map[string]any{"id": "coding-agent", "systemPrompt": "Write Go."}),
	}, nil)
	require.NoError(t, err)

	gen := &captured{}
	r := NewRunner(gen, nil)
	_, err = r.Generate(context.Background(), session.Turn{Target: session.Target{Graph: g}, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Write Go.", gen.prompt.System)
	assert.Equal(t, "gpt-4", gen.model.Model, "missing llm falls back to the default")
}
