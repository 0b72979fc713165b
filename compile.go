package agentflow

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
)

// DefaultConfigName is used when the caller supplies no workflow name.
const DefaultConfigName = "Untitled Workflow"

// Metadata is caller-supplied information copied into the artifact.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Config is the compiled, normalized execution configuration of a graph.
type Config struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	LLM         LLMBinding    `json:"llm"`
	Agent       AgentBinding  `json:"agent"`
	Tools       []ToolBinding `json:"tools"`
	Connections []Connection  `json:"connections"`
}

// LLMBinding is the resolved primary LLM. Credential and MaxOutputLength are
// handed to the generation capability but never serialized.
type LLMBinding struct {
	ProviderID      string
	ModelIdentifier string
	Temperature     float64

	Credential      string
	MaxOutputLength int
}

type llmWire struct {
	Type   string `json:"type"`
	Config struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
	} `json:"config"`
}

func (b LLMBinding) MarshalJSON() ([]byte, error) {
	var w llmWire
	w.Type = b.ProviderID
	w.Config.Model = b.ModelIdentifier
	w.Config.Temperature = b.Temperature
	return json.Marshal(w)
}

func (b *LLMBinding) UnmarshalJSON(data []byte) error {
	var w llmWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = LLMBinding{ProviderID: w.Type, ModelIdentifier: w.Config.Model, Temperature: w.Config.Temperature}
	return nil
}

// AgentBinding is the resolved primary agent.
type AgentBinding struct {
	ProviderID   string
	SystemPrompt string
	Verbose      bool
	Memory       bool

	AgentCount    int
	MaxIterations int
}

type agentWire struct {
	Type   string `json:"type"`
	Config struct {
		SystemPrompt string `json:"system_prompt"`
		Verbose      bool   `json:"verbose"`
		Memory       bool   `json:"memory"`
	} `json:"config"`
}

func (b AgentBinding) MarshalJSON() ([]byte, error) {
	var w agentWire
	w.Type = b.ProviderID
	w.Config.SystemPrompt = b.SystemPrompt
	w.Config.Verbose = b.Verbose
	w.Config.Memory = b.Memory
	return json.Marshal(w)
}

func (b *AgentBinding) UnmarshalJSON(data []byte) error {
	var w agentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = AgentBinding{
		ProviderID:    w.Type,
		SystemPrompt:  w.Config.SystemPrompt,
		Verbose:       w.Config.Verbose,
		Memory:        w.Config.Memory,
		AgentCount:    DefaultAgentCount,
		MaxIterations: DefaultMaxIterations,
	}
	return nil
}

// Family is the agent type without its suffix, e.g. "research".
func (b AgentBinding) Family() string {
	return AgentSettings{ProviderID: b.ProviderID}.Family()
}

// ToolBinding carries a tool node's payload verbatim.
type ToolBinding struct {
	ProviderID string         `json:"type"`
	Config     map[string]any `json:"config"`
}

// Settings decodes the carried payload into typed tool settings.
func (t ToolBinding) Settings() (ToolSettings, error) {
	cfg, err := NewNode(t.ProviderID, KindTool, t.Config).Config()
	if err != nil {
		return ToolSettings{}, err
	}
	return cfg.(ToolSettings), nil
}

// Connection is an edge reduced to its endpoints.
type Connection struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Compile turns a validated graph into its execution configuration.
// Callers must validate first: an invalid graph here is an internal error.
func Compile(g *Graph, meta Metadata) (*Config, error) {
	if res := Validate(g); !res.Valid {
		err := &CompilationError{Msg: "graph did not pass validation", Err: res.Err()}
		log.Error().Err(err).Msg("Compile called on an invalid graph")
		return nil, err
	}

	llm, err := bindLLM(g.NodesOfKind(KindLLM)[0])
	if err != nil {
		log.Error().Err(err).Msg("Failed to bind primary LLM")
		return nil, &CompilationError{Msg: "bind primary llm", Err: err}
	}
	agent, err := bindAgent(g.NodesOfKind(KindAgent)[0])
	if err != nil {
		log.Error().Err(err).Msg("Failed to bind primary agent")
		return nil, &CompilationError{Msg: "bind primary agent", Err: err}
	}

	cfg := &Config{
		Name:        meta.Name,
		Description: meta.Description,
		LLM:         llm,
		Agent:       agent,
		Tools:       bindTools(g),
		Connections: connections(g),
	}
	if cfg.Name == "" {
		cfg.Name = DefaultConfigName
	}
	return cfg, nil
}

// Extract is the lenient counterpart of Compile used to run a raw, possibly
// unvalidated graph. Missing pieces fall back to the default configuration.
func Extract(g *Graph) *Config {
	cfg := DefaultConfig()
	if g == nil {
		return cfg
	}
	if llms := g.NodesOfKind(KindLLM); len(llms) > 0 {
		if b, err := bindLLM(llms[0]); err == nil {
			cfg.LLM = b
		}
	}
	if agents := g.NodesOfKind(KindAgent); len(agents) > 0 {
		if b, err := bindAgent(agents[0]); err == nil {
			if b.SystemPrompt == "" {
				b.SystemPrompt = cfg.Agent.SystemPrompt
			}
			cfg.Agent = b
		}
	}
	cfg.Tools = bindTools(g)
	cfg.Connections = connections(g)
	return cfg
}

// DefaultConfig is the configuration used for ad-hoc chats with no graph.
func DefaultConfig() *Config {
	return &Config{
		Name: DefaultConfigName,
		LLM: LLMBinding{
			ProviderID:      "openai-gpt-4",
			ModelIdentifier: "gpt-4",
			Temperature:     DefaultTemperature,
		},
		Agent: AgentBinding{
			ProviderID:    "conversational-agent",
			SystemPrompt:  "You are a helpful assistant.",
			AgentCount:    DefaultAgentCount,
			MaxIterations: DefaultMaxIterations,
		},
		Tools:       []ToolBinding{},
		Connections: []Connection{},
	}
}

func bindLLM(n Node) (LLMBinding, error) {
	cfg, err := n.Config()
	if err != nil {
		return LLMBinding{}, err
	}

	b := LLMBinding{ProviderID: n.ProviderID(), Temperature: DefaultTemperature}
	switch c := cfg.(type) {
	case HostedLLM:
		b.ModelIdentifier = c.ModelName
		b.Credential = c.APIKey
		if c.Temperature != nil {
			b.Temperature = *c.Temperature
		}
	case HubLLM:
		b.ModelIdentifier = c.ModelIdentifier
		b.Credential = c.AccessToken
		b.MaxOutputLength = c.MaxOutputLength
		if c.Temperature != nil {
			b.Temperature = *c.Temperature
		}
	}
	return b, nil
}

func bindAgent(n Node) (AgentBinding, error) {
	cfg, err := n.Config()
	if err != nil {
		return AgentBinding{}, err
	}
	c := cfg.(AgentSettings)

	b := AgentBinding{
		ProviderID:    c.ProviderID,
		AgentCount:    c.AgentCount,
		MaxIterations: c.MaxIterations,
	}
	if c.SystemPrompt != nil {
		b.SystemPrompt = *c.SystemPrompt
	}
	if c.Verbose != nil {
		b.Verbose = *c.Verbose
	}
	if c.Memory != nil {
		b.Memory = *c.Memory
	}
	return b, nil
}

func bindTools(g *Graph) []ToolBinding {
	tools := []ToolBinding{}
	for _, n := range g.NodesOfKind(KindTool) {
		tools = append(tools, ToolBinding{ProviderID: n.ProviderID(), Config: n.Data()})
	}
	return tools
}

func connections(g *Graph) []Connection {
	conns := make([]Connection, len(g.edges))
	for i, e := range g.edges {
		conns[i] = Connection{Source: e.Source, Target: e.Target}
	}
	return conns
}

// Encode serializes the artifact. Struct fields keep declaration order and
// map keys are sorted, so equal configs always encode to equal bytes.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, &CompilationError{Msg: "encode config", Err: err}
	}
	return buf.Bytes(), nil
}

// Digest is the hex SHA-256 of Encode.
func (c *Config) Digest() (string, error) {
	data, err := c.Encode()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FileName is the export file name derived from the workflow name.
func (c *Config) FileName() string {
	name := slug.Make(c.Name)
	if name == "" {
		name = slug.Make(DefaultConfigName)
	}
	return name + ".json"
}

// DecodeConfig reads a previously exported artifact.
func DecodeConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, &InputError{Msg: "invalid configuration: " + err.Error()}
	}
	if cfg.Tools == nil {
		cfg.Tools = []ToolBinding{}
	}
	if cfg.Connections == nil {
		cfg.Connections = []Connection{}
	}
	return &cfg, nil
}
