// Package agent turns a compiled configuration into conversation replies by
// combining the generation and tool capabilities according to the agent type.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/meikuraledutech/agentflow"
	"github.com/meikuraledutech/agentflow/generate"
	"github.com/meikuraledutech/agentflow/session"
	"github.com/meikuraledutech/agentflow/tools"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultSystemPrompt is used when the agent leaves its prompt empty.
	DefaultSystemPrompt = "You are a helpful assistant."

	// ResearchResultLimit caps the search results fed to a research prompt.
	ResearchResultLimit = 5
)

// Runner implements session.Generator.
type Runner struct {
	gen      generate.Generator
	registry *tools.Registry
}

// NewRunner returns a runner. A nil registry disables tools.
func NewRunner(gen generate.Generator, registry *tools.Registry) *Runner {
	return &Runner{gen: gen, registry: registry}
}

func (r *Runner) Generate(ctx context.Context, turn session.Turn) (string, error) {
	cfg := turn.Target.Resolve()

	var ts []tools.Tool
	if r.registry != nil {
		ts = r.registry.Build(cfg.Tools)
	}

	prompt := r.prompt(ctx, cfg, turn, ts)
	if cfg.Agent.Verbose {
		log.Info().
			Str("session_id", turn.SessionID).
			Str("agent", cfg.Agent.ProviderID).
			Str("llm", cfg.LLM.ProviderID).
			Int("history", len(prompt.History)).
			Int("tools", len(ts)).
			Str("prompt", prompt.User).
			Msg("Agent prompt")
	}

	return r.gen.Generate(ctx, prompt, modelConfig(cfg.LLM))
}

func (r *Runner) prompt(ctx context.Context, cfg *agentflow.Config, turn session.Turn, ts []tools.Tool) generate.Prompt {
	system := cfg.Agent.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	p := generate.Prompt{
		System:  system,
		History: convertHistory(turn.History),
		User:    turn.Message,
		Query:   turn.Message,
	}

	switch cfg.Agent.Family() {
	case "conversational":
	case "research":
		p.History = nil
		p.User = researchPrompt(turn.Message, search(ctx, turn.SessionID, turn.Message, ts))
	case "coding":
		p.User = codingPrompt(turn.Message)
	default:
		p.User = genericPrompt(turn.Message, process(ctx, turn.SessionID, turn.Message, ts))
	}
	return p
}

func modelConfig(b agentflow.LLMBinding) generate.ModelConfig {
	return generate.ModelConfig{
		ProviderID:  b.ProviderID,
		Model:       b.ModelIdentifier,
		Temperature: b.Temperature,
		MaxTokens:   b.MaxOutputLength,
		Credential:  b.Credential,
	}
}

func convertHistory(msgs []session.Message) []generate.Message {
	out := make([]generate.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case session.RoleUser, session.RoleAssistant, session.RoleSystem:
			out = append(out, generate.Message{Role: generate.Role(m.Role), Content: m.Content})
		}
	}
	return out
}

// search collects results from every search-capable tool. Failing tools are
// logged and skipped.
func search(ctx context.Context, sessionID, query string, ts []tools.Tool) []tools.Item {
	var items []tools.Item
	for _, t := range ts {
		if !t.Supports(tools.ActionSearch) {
			continue
		}
		res, err := t.Invoke(ctx, tools.ActionSearch, tools.Params{"query": query})
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Str("tool", t.Name()).Msg("Search tool failed")
			continue
		}
		items = append(items, res.Items...)
	}
	if len(items) > ResearchResultLimit {
		items = items[:ResearchResultLimit]
	}
	return items
}

// process gathers the text output of every tool that handles raw input.
func process(ctx context.Context, sessionID, input string, ts []tools.Tool) []string {
	var out []string
	for _, t := range ts {
		if !t.Supports(tools.ActionProcess) {
			continue
		}
		res, err := t.Invoke(ctx, tools.ActionProcess, tools.Params{"input": input})
		if err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Str("tool", t.Name()).Msg("Error using tool")
			continue
		}
		if res.Text == "" && len(res.Items) == 0 {
			continue
		}
		out = append(out, res.String())
	}
	return out
}

func researchPrompt(question string, items []tools.Item) string {
	var b strings.Builder
	b.WriteString("Search results:\n")
	for i, it := range items {
		title, snippet := it.Title, it.Snippet
		if title == "" {
			title = "No title"
		}
		if snippet == "" {
			snippet = "No snippet"
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, title, snippet)
	}

	return fmt.Sprintf(`You are a research assistant. Use the following search results to answer the user's question.

%s
User's question: %s

Provide a comprehensive answer based on the search results. If the search results don't contain enough information, say so and provide the best answer you can.`, b.String(), question)
}

func codingPrompt(request string) string {
	return fmt.Sprintf(`You are a coding assistant. The user is asking for help with code.

User's request: %s

Provide a detailed response with code examples where appropriate. Make sure your code is correct, efficient, and follows best practices.`, request)
}

func genericPrompt(request string, results []string) string {
	var toolContext string
	if len(results) > 0 {
		toolContext = "Tool results:\n" + strings.Join(results, "\n") + "\n\n"
	}
	return fmt.Sprintf(`%sUser's request: %s

Provide a helpful response based on the available information.`, toolContext, request)
}
