package tools

import (
	"net/http"
	"time"

	"github.com/meikuraledutech/agentflow"
	"github.com/rs/zerolog/log"
)

const defaultHTTPTimeout = 30 * time.Second

// Env is what factories need from the process: an HTTP client, fallback
// credentials per family and endpoint overrides per family.
type Env struct {
	HTTPClient *http.Client
	Keys       map[string]string
	Endpoints  map[string]string
}

func (e Env) credential(s agentflow.ToolSettings) string {
	if s.Credential != "" {
		return s.Credential
	}
	return e.Keys[s.Family()]
}

func (e Env) endpoint(family, def string) string {
	if v := e.Endpoints[family]; v != "" {
		return v
	}
	return def
}

func (e Env) client() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// Factory builds a tool from its component settings.
type Factory func(s agentflow.ToolSettings, env Env) (Tool, error)

// Registry maps tool families ("duckduckgo", "github", ...) to factories.
type Registry struct {
	env       Env
	factories map[string]Factory
}

// NewRegistry returns a registry with every built-in tool registered.
func NewRegistry(env Env) *Registry {
	r := &Registry{env: env, factories: make(map[string]Factory)}
	r.Register("duckduckgo", NewDuckDuckGo)
	r.Register("weather", NewWeather)
	r.Register("github", NewGitHub)
	r.Register("gmail", NewGmail)
	r.Register("slack", NewSlack)
	r.Register("jira", NewJira)
	r.Register("web", NewWebBrowser)
	return r
}

func (r *Registry) Register(family string, f Factory) {
	r.factories[family] = f
}

// New builds a single tool.
func (r *Registry) New(s agentflow.ToolSettings) (Tool, error) {
	f, ok := r.factories[s.Family()]
	if !ok {
		return nil, ErrUnknownTool
	}
	return f(s, r.env)
}

// Build turns compiled tool bindings into tools, in order. Bindings that
// cannot be built are logged and skipped.
func (r *Registry) Build(bindings []agentflow.ToolBinding) []Tool {
	var out []Tool
	for _, b := range bindings {
		settings, err := b.Settings()
		if err != nil {
			log.Warn().Err(err).Str("tool", b.ProviderID).Msg("Skipping tool with invalid settings")
			continue
		}
		t, err := r.New(settings)
		if err != nil {
			log.Warn().Err(err).Str("tool", b.ProviderID).Msg("Skipping tool")
			continue
		}
		out = append(out, t)
	}
	return out
}
