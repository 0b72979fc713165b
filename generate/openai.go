package generate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// HuggingFaceBaseURL is the OpenAI-compatible inference router of the hub.
const HuggingFaceBaseURL = "https://router.huggingface.co/v1"

// OpenAI generates through the chat completions API. The same wire protocol
// serves OpenAI, Azure OpenAI and the Hugging Face router; only the client
// configuration differs.
type OpenAI struct {
	// BaseURL overrides the API endpoint. Empty keeps the client default.
	BaseURL string
	// Azure selects the Azure deployment flavour; BaseURL is then the
	// resource endpoint.
	Azure bool
}

// NewHuggingFace returns a generator for hub-served models.
func NewHuggingFace() OpenAI {
	return OpenAI{BaseURL: HuggingFaceBaseURL}
}

func (o OpenAI) client(apiKey string) *openai.Client {
	var cfg openai.ClientConfig
	if o.Azure {
		cfg = openai.DefaultAzureConfig(apiKey, o.BaseURL)
	} else {
		cfg = openai.DefaultConfig(apiKey)
		if o.BaseURL != "" {
			cfg.BaseURL = o.BaseURL
		}
	}
	return openai.NewClientWithConfig(cfg)
}

func (o OpenAI) Generate(ctx context.Context, p Prompt, cfg ModelConfig) (string, error) {
	if cfg.Credential == "" {
		return "", fmt.Errorf("%w for %s", ErrMissingCredential, cfg.ProviderID)
	}

	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    convertOpenAIMessages(p),
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.maxTokens(),
	}

	log.Debug().Str("provider", cfg.ProviderID).Str("model", cfg.Model).Msg("Requesting chat completion")

	resp, err := o.client(cfg.Credential).CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func convertOpenAIMessages(p Prompt) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(p.History)+2)
	if p.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	for _, m := range p.Messages() {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}
