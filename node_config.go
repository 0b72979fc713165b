package agentflow

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// HubProviderPrefix marks LLM components served through the Hugging Face hub.
const HubProviderPrefix = "hf-"

// Defaults applied when the editor left a field unset.
const (
	DefaultTemperature     = 0.7
	DefaultMaxOutputLength = 1024
	DefaultAgentCount      = 2
	DefaultMaxIterations   = 10
	DefaultToolMaxResults  = 5
)

// NodeConfig is the typed view of a node payload. The concrete type is one of
// HostedLLM, HubLLM, AgentSettings or ToolSettings.
type NodeConfig interface {
	Kind() Kind
	Provider() string
}

// HostedLLM is an LLM reached through a vendor API key (OpenAI, Anthropic, ...).
type HostedLLM struct {
	ProviderID  string   `json:"id"`
	Name        string   `json:"name"`
	APIKey      string   `json:"apiKey"`
	ModelName   string   `json:"model"`
	Temperature *float64 `json:"temperature"`
}

func (HostedLLM) Kind() Kind         { return KindLLM }
func (c HostedLLM) Provider() string { return c.ProviderID }

// HubLLM is an LLM served from the Hugging Face hub.
type HubLLM struct {
	ProviderID      string   `json:"id"`
	Name            string   `json:"name"`
	AccessToken     string   `json:"huggingFaceToken"`
	ModelIdentifier string   `json:"modelId"`
	MaxOutputLength int      `json:"maxLength"`
	Temperature     *float64 `json:"temperature"`
}

func (HubLLM) Kind() Kind         { return KindLLM }
func (c HubLLM) Provider() string { return c.ProviderID }

// AgentSettings configures an agent component. AgentCount only applies to
// multi-agent systems and MaxIterations to autonomous agents.
type AgentSettings struct {
	ProviderID    string  `json:"id"`
	Name          string  `json:"name"`
	SystemPrompt  *string `json:"systemPrompt"`
	Verbose       *bool   `json:"verbose"`
	Memory        *bool   `json:"memory"`
	AgentCount    int     `json:"agentCount"`
	MaxIterations int     `json:"maxIterations"`
}

func (AgentSettings) Kind() Kind         { return KindAgent }
func (c AgentSettings) Provider() string { return c.ProviderID }

// Family is the agent type without the "-agent" suffix, e.g. "research".
func (c AgentSettings) Family() string {
	return strings.SplitN(c.ProviderID, "-", 2)[0]
}

// ToolSettings configures a tool component. Credential holds whichever secret
// the tool family needs; it is passed through untouched.
type ToolSettings struct {
	ProviderID string `json:"id"`
	Name       string `json:"name"`
	MaxResults int    `json:"maxResults"`
	ReadOnly   *bool  `json:"readOnly"`
	Credential string `json:"-"`
	BaseURL    string `json:"baseUrl"`
	Account    string `json:"account"`
}

func (ToolSettings) Kind() Kind         { return KindTool }
func (c ToolSettings) Provider() string { return c.ProviderID }

// Family is the tool type prefix, e.g. "duckduckgo" for "duckduckgo-search".
func (c ToolSettings) Family() string {
	return strings.SplitN(c.ProviderID, "-", 2)[0]
}

// IsReadOnly defaults to true, matching the editor.
func (c ToolSettings) IsReadOnly() bool {
	return c.ReadOnly == nil || *c.ReadOnly
}

// credentialKeys maps a tool family to the payload key holding its secret.
var credentialKeys = map[string]string{
	"github":  "githubToken",
	"gmail":   "gmailCredentials",
	"weather": "weatherApiKey",
	"slack":   "slackToken",
	"jira":    "jiraToken",
}

// IsHub reports whether a provider id denotes a hub-served LLM.
func IsHub(providerID string) bool {
	return strings.HasPrefix(providerID, HubProviderPrefix)
}

// Config decodes the node payload into its typed configuration.
func (n Node) Config() (NodeConfig, error) {
	switch n.Kind {
	case KindLLM:
		if IsHub(n.ProviderID()) {
			c := HubLLM{MaxOutputLength: DefaultMaxOutputLength}
			if err := decodeData(n.data, &c); err != nil {
				return nil, fmt.Errorf("node %s: %w", n.ID, err)
			}
			return c, nil
		}
		var c HostedLLM
		if err := decodeData(n.data, &c); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		return c, nil

	case KindAgent:
		c := AgentSettings{AgentCount: DefaultAgentCount, MaxIterations: DefaultMaxIterations}
		if err := decodeData(n.data, &c); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		return c, nil

	case KindTool:
		c := ToolSettings{MaxResults: DefaultToolMaxResults}
		if err := decodeData(n.data, &c); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		if key, ok := credentialKeys[c.Family()]; ok {
			c.Credential, _ = n.data[key].(string)
		}
		return c, nil
	}

	return nil, fmt.Errorf("node %s: unknown kind %q", n.ID, n.Kind)
}

func decodeData(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
