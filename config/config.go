// Package config loads process configuration from an optional .env file, an
// optional agentflow.yaml and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/meikuraledutech/agentflow/generate"
)

// Config holds all server and CLI settings.
type Config struct {
	HTTPAddress string
	Debug       bool

	// Storage. Empty URLs select the in-memory store and disable recorders.
	DatabaseURL   string
	RedisURL      string
	MongoURI      string
	MongoDatabase string
	HistoryTTL    time.Duration

	// Rate limiting applies only when RedisURL is set.
	RateLimit  int
	RateWindow time.Duration

	// Generator is "stub" (default) or "router" for real inference.
	Generator          string
	StrictConnectivity bool
	QueueTurns         bool
	// FailurePolicy is "report" or "apologize".
	FailurePolicy string

	OpenAIKey           string
	AzureOpenAIKey      string
	AzureOpenAIEndpoint string
	AnthropicKey        string
	GeminiKey           string
	HuggingFaceKey      string

	GitHubToken   string
	GmailToken    string
	WeatherAPIKey string
	SlackToken    string
	JiraToken     string
	JiraURL       string
}

var envMappings = map[string]string{
	"HTTPAddress":         "HTTP_ADDRESS",
	"Debug":               "AGENTFLOW_DEBUG",
	"DatabaseURL":         "DATABASE_URL",
	"RedisURL":            "REDIS_URL",
	"MongoURI":            "MONGODB_URI",
	"MongoDatabase":       "MONGODB_DATABASE",
	"HistoryTTL":          "HISTORY_TTL",
	"RateLimit":           "RATE_LIMIT",
	"RateWindow":          "RATE_WINDOW",
	"Generator":           "AGENTFLOW_GENERATOR",
	"StrictConnectivity":  "AGENTFLOW_STRICT_CONNECTIVITY",
	"QueueTurns":          "AGENTFLOW_QUEUE_TURNS",
	"FailurePolicy":       "AGENTFLOW_FAILURE_POLICY",
	"OpenAIKey":           "OPENAI_API_KEY",
	"AzureOpenAIKey":      "AZURE_OPENAI_API_KEY",
	"AzureOpenAIEndpoint": "AZURE_OPENAI_ENDPOINT",
	"AnthropicKey":        "ANTHROPIC_API_KEY",
	"GeminiKey":           "GEMINI_API_KEY",
	"HuggingFaceKey":      "HF_API_KEY",
	"GitHubToken":         "GITHUB_TOKEN",
	"GmailToken":          "GMAIL_ACCESS_TOKEN",
	"WeatherAPIKey":       "OPENWEATHERMAP_API_KEY",
	"SlackToken":          "SLACK_TOKEN",
	"JiraToken":           "JIRA_TOKEN",
	"JiraURL":             "JIRA_URL",
}

// Load reads configuration. configFile may name a YAML file explicitly;
// when empty, agentflow.yaml is searched in the usual places.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("agentflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.agentflow")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTPAddress", ":3000")
	v.SetDefault("MongoDatabase", "agentflow")
	v.SetDefault("HistoryTTL", 24*time.Hour)
	v.SetDefault("RateLimit", 100)
	v.SetDefault("RateWindow", 60*time.Second)
	v.SetDefault("Generator", "stub")
	v.SetDefault("FailurePolicy", "report")
}

func (c *Config) validate() error {
	var problems []string
	switch c.Generator {
	case "stub", "router":
	default:
		problems = append(problems, fmt.Sprintf("AGENTFLOW_GENERATOR must be stub or router, got %q", c.Generator))
	}
	switch c.FailurePolicy {
	case "report", "apologize":
	default:
		problems = append(problems, fmt.Sprintf("AGENTFLOW_FAILURE_POLICY must be report or apologize, got %q", c.FailurePolicy))
	}
	if c.RateLimit <= 0 {
		problems = append(problems, "RATE_LIMIT must be positive")
	}
	if c.RateWindow <= 0 {
		problems = append(problems, "RATE_WINDOW must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LLMKeys returns fallback credentials per generation family.
func (c *Config) LLMKeys() map[string]string {
	return map[string]string{
		generate.FamilyOpenAI:      c.OpenAIKey,
		generate.FamilyAzure:       c.AzureOpenAIKey,
		generate.FamilyAnthropic:   c.AnthropicKey,
		generate.FamilyGemini:      c.GeminiKey,
		generate.FamilyHuggingFace: c.HuggingFaceKey,
	}
}

// LLMEndpoints returns base URL overrides per generation family.
func (c *Config) LLMEndpoints() map[string]string {
	return map[string]string{generate.FamilyAzure: c.AzureOpenAIEndpoint}
}

// ToolKeys returns fallback credentials per tool family.
func (c *Config) ToolKeys() map[string]string {
	return map[string]string{
		"github":  c.GitHubToken,
		"gmail":   c.GmailToken,
		"weather": c.WeatherAPIKey,
		"slack":   c.SlackToken,
		"jira":    c.JiraToken,
	}
}

// ToolEndpoints returns endpoint overrides per tool family.
func (c *Config) ToolEndpoints() map[string]string {
	return map[string]string{"jira": c.JiraURL}
}
