package generate

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini generates through the Gemini API.
type Gemini struct {
	BaseURL string
}

func (g Gemini) Generate(ctx context.Context, p Prompt, cfg ModelConfig) (string, error) {
	if cfg.Credential == "" {
		return "", fmt.Errorf("%w for %s", ErrMissingCredential, cfg.ProviderID)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.Credential,
		Backend: genai.BackendGeminiAPI,
	}
	if g.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(cfg.maxTokens()),
		Temperature:     genai.Ptr(float32(cfg.Temperature)),
	}
	if p.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(p.System)},
		}
	}

	resp, err := client.Models.GenerateContent(ctx, cfg.Model, convertGeminiMessages(p), config)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// convertGeminiMessages maps roles to "user" and "model"; system entries are
// carried by SystemInstruction instead.
func convertGeminiMessages(p Prompt) []*genai.Content {
	var out []*genai.Content
	for _, m := range p.Messages() {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return out
}
