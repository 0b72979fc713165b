package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/agentflow/generate"
)

// isolate clears every mapped variable and points HOME at an empty directory
// so the developer's environment cannot leak into Load.
func isolate(t *testing.T) {
	t.Helper()
	for _, env := range envMappings {
		t.Setenv(env, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.HTTPAddress)
	assert.Equal(t, "agentflow", cfg.MongoDatabase)
	assert.Equal(t, 24*time.Hour, cfg.HistoryTTL)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.Equal(t, "stub", cfg.Generator)
	assert.Equal(t, "report", cfg.FailurePolicy)
	assert.False(t, cfg.StrictConnectivity)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_ADDRESS", ":9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/agentflow")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_WINDOW", "2m")
	t.Setenv("AGENTFLOW_GENERATOR", "router")
	t.Setenv("AGENTFLOW_STRICT_CONNECTIVITY", "true")
	t.Setenv("AGENTFLOW_FAILURE_POLICY", "apologize")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("GITHUB_TOKEN", "ghp-env")
	t.Setenv("JIRA_URL", "https://example.atlassian.net")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddress)
	assert.Equal(t, "postgres://localhost/agentflow", cfg.DatabaseURL)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, 2*time.Minute, cfg.RateWindow)
	assert.Equal(t, "router", cfg.Generator)
	assert.True(t, cfg.StrictConnectivity)
	assert.Equal(t, "apologize", cfg.FailurePolicy)

	assert.Equal(t, "sk-env", cfg.LLMKeys()[generate.FamilyOpenAI])
	assert.Equal(t, "https://example.openai.azure.com", cfg.LLMEndpoints()[generate.FamilyAzure])
	assert.Equal(t, "ghp-env", cfg.ToolKeys()["github"])
	assert.Equal(t, "https://example.atlassian.net", cfg.ToolEndpoints()["jira"])
}

func TestLoadExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "agentflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
httpaddress: ":8081"
ratewindow: 30s
generator: router
queueturns: true
`), 0o600))
	t.Setenv("HTTP_ADDRESS", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddress, "environment wins over the file")
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
	assert.Equal(t, "router", cfg.Generator)
	assert.True(t, cfg.QueueTurns)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"generator", map[string]string{"AGENTFLOW_GENERATOR": "magic"}, `AGENTFLOW_GENERATOR must be stub or router, got "magic"`},
		{"failure policy", map[string]string{"AGENTFLOW_FAILURE_POLICY": "ignore"}, "AGENTFLOW_FAILURE_POLICY must be report or apologize"},
		{"rate limit", map[string]string{"RATE_LIMIT": "-1"}, "RATE_LIMIT must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
