// Package generate is the text generation capability: given a prompt and a
// model configuration it returns the assistant reply.
package generate

import (
	"context"
	"errors"
)

// DefaultMaxTokens caps replies when the model configuration leaves it unset.
const DefaultMaxTokens = 1000

var (
	ErrMissingCredential   = errors.New("generate: missing credential")
	ErrUnsupportedProvider = errors.New("generate: unsupported provider")
	ErrEmptyResponse       = errors.New("generate: empty response")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role    Role
	Content string
}

// Prompt is a single generation request.
type Prompt struct {
	System  string
	History []Message
	// User is the final user turn, possibly wrapped in an agent template.
	User string
	// Query is the raw user message before any wrapping.
	Query string
}

// Messages returns History followed by the user turn. System entries in the
// history are kept; backends that need them elsewhere filter them out.
func (p Prompt) Messages() []Message {
	out := make([]Message, 0, len(p.History)+1)
	out = append(out, p.History...)
	return append(out, Message{Role: RoleUser, Content: p.User})
}

// ModelConfig selects and tunes the model.
type ModelConfig struct {
	ProviderID  string
	Model       string
	Temperature float64
	MaxTokens   int
	// Credential is passed through untouched; it is never logged.
	Credential string
}

func (c ModelConfig) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return DefaultMaxTokens
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt, cfg ModelConfig) (string, error)
}
