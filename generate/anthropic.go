package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic generates through the Messages API.
type Anthropic struct {
	BaseURL string
}

func (a Anthropic) Generate(ctx context.Context, p Prompt, cfg ModelConfig) (string, error) {
	if cfg.Credential == "" {
		return "", fmt.Errorf("%w for %s", ErrMissingCredential, cfg.ProviderID)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.Credential)}
	if a.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	msgReq := anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.Model),
		MaxTokens:   int64(cfg.maxTokens()),
		Messages:    convertAnthropicMessages(p),
		Temperature: anthropic.Float(cfg.Temperature),
	}
	if system := anthropicSystem(p); system != "" {
		msgReq.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := client.Messages.New(ctx, msgReq)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

// anthropicSystem folds system history entries into the system prompt.
func anthropicSystem(p Prompt) string {
	parts := []string{}
	if p.System != "" {
		parts = append(parts, p.System)
	}
	for _, m := range p.History {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func convertAnthropicMessages(p Prompt) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range p.Messages() {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}
