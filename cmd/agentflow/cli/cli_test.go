package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/agentflow"
	"github.com/meikuraledutech/agentflow/session"
)

const graphJSON = `{
  "nodes": [
    {"id": "llm-1", "type": "llmNode", "data": {"id": "openai-gpt-4", "apiKey": "sk-1", "model": "gpt-4"}},
    {"id": "agent-1", "type": "agentNode", "data": {"id": "research-agent"}},
    {"id": "tool-1", "type": "toolNode", "data": {"id": "duckduckgo-search"}}
  ],
  "edges": [
    {"id": "e1", "source": "llm-1", "target": "agent-1"},
    {"id": "e2", "source": "tool-1", "target": "agent-1"}
  ]
}`

const graphYAML = `
nodes:
  - id: llm-1
    type: llmNode
    data: {id: openai-gpt-4, apiKey: sk-1, model: gpt-4, temperature: 0.1}
  - id: agent-1
    type: agentNode
    data: {id: conversational-agent}
edges:
  - {id: e1, source: llm-1, target: agent-1}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", writeFile(t, "g.json", graphJSON))
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	out, err = run(t, "validate", writeFile(t, "g.yaml", graphYAML))
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	out, err = run(t, "validate", writeFile(t, "empty.json", `{"nodes": []}`))
	assert.ErrorIs(t, err, errInvalid)
	assert.Equal(t, "invalid: "+agentflow.MsgNoComponents+"\n", out)
}

func TestValidateCommandStrict(t *testing.T) {
	split := `{
	  "nodes": [
	    {"id": "llm-1", "type": "llmNode", "data": {"id": "openai-gpt-4", "apiKey": "k", "model": "gpt-4"}},
	    {"id": "agent-1", "type": "agentNode", "data": {"id": "conversational-agent"}},
	    {"id": "tool-1", "type": "toolNode", "data": {"id": "duckduckgo-search"}},
	    {"id": "tool-2", "type": "toolNode", "data": {"id": "weather-api"}}
	  ],
	  "edges": [
	    {"source": "llm-1", "target": "agent-1"},
	    {"source": "tool-1", "target": "tool-2"}
	  ]
	}`
	path := writeFile(t, "split.json", split)

	out, err := run(t, "validate", path)
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	out, err = run(t, "--strict", "validate", path)
	assert.ErrorIs(t, err, errInvalid)
	assert.Equal(t, "invalid: "+agentflow.MsgNotConnected+"\n", out)
}

func TestValidateCommandMalformedInput(t *testing.T) {
	_, err := run(t, "validate", writeFile(t, "bad.yaml", "nodes: [\n"))
	assert.ErrorIs(t, err, agentflow.ErrMalformedInput)

	_, err = run(t, "validate", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCompileCommand(t *testing.T) {
	path := writeFile(t, "g.json", graphJSON)

	out, err := run(t, "compile", path, "--name", "Research Desk")
	require.NoError(t, err)
	cfg, err := agentflow.DecodeConfig(bytes.NewBufferString(out))
	require.NoError(t, err)
	assert.Equal(t, "Research Desk", cfg.Name)
	assert.Equal(t, "research-agent", cfg.Agent.ProviderID)
	require.Len(t, cfg.Tools, 1)
	assert.NotContains(t, out, "sk-1")
	assert.True(t, strings.HasSuffix(out, "}\n"), "exactly one trailing newline")

	dir := t.TempDir()
	_, err = run(t, "compile", path, "--name", "Research Desk", "-o", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "research-desk.json"))
	require.NoError(t, err)
	assert.JSONEq(t, out, string(data))
}

func TestCompileCommandRejectsInvalidGraph(t *testing.T) {
	_, err := run(t, "compile", writeFile(t, "g.json", `{"nodes": [{"id": "a", "type": "agentNode", "data": {"id": "coding-agent"}}]}`))
	assert.ErrorIs(t, err, agentflow.ErrInvalidGraph)
}

func TestHelpMentionsOnlyDefinedFlags(t *testing.T) {
	flagRef := regexp.MustCompile(`--([a-z][a-z-]*)`)
	root := NewRootCommand()
	for _, cmd := range root.Commands() {
		for _, m := range flagRef.FindAllStringSubmatch(cmd.Long, -1) {
			assert.NotNil(t, cmd.Flags().Lookup(m[1]), "%s help mentions --%s", cmd.Name(), m[1])
		}
	}
}

func TestChatCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AGENTFLOW_GENERATOR", "stub")
	t.Setenv("AGENTFLOW_FAILURE_POLICY", "report")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("How is Pepsi stock?\n/history\n/exit\n"))
	cmd.SetArgs([]string{"chat", "--graph", writeFile(t, "g.yaml", graphYAML)})
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, `Chatting with "Untitled Workflow"`)
	assert.Contains(t, text, "Coca-Cola (KO)")
	assert.Contains(t, text, "user: How is Pepsi stock?")
}

func TestChatCommandRejectsBothSources(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeFile(t, "g.json", graphJSON)
	_, err := run(t, "chat", "--graph", path, "--workflow", path)
	assert.EqualError(t, err, "--graph and --workflow are mutually exclusive")
}

type fixedLoader struct {
	msgs []session.Message
	err  error
}

func (l fixedLoader) Load(context.Context, string) ([]session.Message, error) {
	return l.msgs, l.err
}

func TestLoadHistory(t *testing.T) {
	ctx := context.Background()
	stored := []session.Message{
		{Role: session.RoleUser, Content: "hi", Timestamp: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)},
		{Role: session.RoleAssistant, Content: "hello", Timestamp: time.Date(2024, 1, 1, 9, 30, 2, 0, time.UTC)},
	}
	down := errors.New("redis down")

	_, err := loadHistory(ctx, nil, "s1")
	assert.ErrorIs(t, err, errNoRecorder)

	got, err := loadHistory(ctx, []historyLoader{fixedLoader{err: down}, fixedLoader{msgs: stored}}, "s1")
	require.NoError(t, err, "a later loader covers a failing one")
	assert.Equal(t, stored, got)

	got, err = loadHistory(ctx, []historyLoader{fixedLoader{msgs: []session.Message{}}, fixedLoader{msgs: stored}}, "s1")
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	_, err = loadHistory(ctx, []historyLoader{fixedLoader{err: down}, fixedLoader{}}, "s1")
	assert.ErrorIs(t, err, down)

	got, err = loadHistory(ctx, []historyLoader{fixedLoader{}}, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)

	var out bytes.Buffer
	printHistory(&out, stored)
	assert.Equal(t, "[09:30:00] user: hi\n[09:30:02] assistant: hello\n", out.String())
}

func TestHistoryCommandNeedsRecorder(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REDIS_URL", "")
	t.Setenv("MONGODB_URI", "")

	_, err := run(t, "history", "some-session")
	assert.ErrorIs(t, err, errNoRecorder)
}
