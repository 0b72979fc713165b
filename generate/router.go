package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Provider families recognized by the Router.
const (
	FamilyOpenAI      = "openai"
	FamilyAzure       = "azure"
	FamilyHuggingFace = "huggingface"
	FamilyAnthropic   = "anthropic"
	FamilyGemini      = "gemini"
)

// Family classifies a provider id such as "openai-gpt-4" or "hf-mistral".
// It returns "" for unknown providers.
func Family(providerID string) string {
	id := strings.ToLower(providerID)
	switch {
	case strings.HasPrefix(id, "hf-"), strings.Contains(id, "huggingface"):
		return FamilyHuggingFace
	case strings.HasPrefix(id, "azure"):
		return FamilyAzure
	case strings.Contains(id, "openai"), strings.HasPrefix(id, "gpt"):
		return FamilyOpenAI
	case strings.Contains(id, "anthropic"), strings.Contains(id, "claude"):
		return FamilyAnthropic
	case strings.Contains(id, "gemini"), strings.Contains(id, "vertex"), strings.Contains(id, "google"):
		return FamilyGemini
	}
	return ""
}

// Router dispatches to a backend by provider family. When the model
// configuration carries no credential the family key from Keys is used.
type Router struct {
	// Keys holds fallback credentials per family.
	Keys map[string]string
	// Endpoints overrides backend base URLs per family. The Azure entry is
	// the resource endpoint and is required for Azure providers.
	Endpoints map[string]string
}

func (r Router) backend(family string) (Generator, error) {
	base := r.Endpoints[family]
	switch family {
	case FamilyOpenAI:
		return OpenAI{BaseURL: base}, nil
	case FamilyAzure:
		if base == "" {
			return nil, fmt.Errorf("%w: azure endpoint is not configured", ErrUnsupportedProvider)
		}
		return OpenAI{BaseURL: base, Azure: true}, nil
	case FamilyHuggingFace:
		if base == "" {
			base = HuggingFaceBaseURL
		}
		return OpenAI{BaseURL: base}, nil
	case FamilyAnthropic:
		return Anthropic{BaseURL: base}, nil
	case FamilyGemini:
		return Gemini{BaseURL: base}, nil
	}
	return nil, ErrUnsupportedProvider
}

func (r Router) Generate(ctx context.Context, p Prompt, cfg ModelConfig) (string, error) {
	family := Family(cfg.ProviderID)
	gen, err := r.backend(family)
	if err != nil {
		return "", fmt.Errorf("provider %q: %w", cfg.ProviderID, err)
	}
	if cfg.Credential == "" {
		cfg.Credential = r.Keys[family]
	}

	log.Debug().Str("provider", cfg.ProviderID).Str("family", family).Msg("Routing generation")
	return gen.Generate(ctx, p, cfg)
}
