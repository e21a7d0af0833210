package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	testCases := map[string]string{
		"PORT":                  "9090",
		"ENVIRONMENT":           "production",
		"LLM_PROVIDER":          "azure",
		"LLM_MAX_TOKENS":        "1500",
		"AZURE_OPENAI_ENDPOINT": "https://test.openai.azure.com/",
		"AZURE_OPENAI_API_KEY":  "test-key",
		"CONTEXT_FETCH_TIMEOUT": "3s",
		"REDIS_ADDR":            "localhost:6379",
		"REDIS_DB":              "2",
	}
	for key, value := range testCases {
		t.Setenv(key, value)
	}

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "azure", cfg.LLMProvider)
	assert.Equal(t, 1500, cfg.LLMMaxTokens)
	assert.Equal(t, "https://test.openai.azure.com/", cfg.AzureOpenAIEndpoint)
	assert.Equal(t, "test-key", cfg.AzureOpenAIAPIKey)
	assert.Equal(t, 3*time.Second, cfg.ContextFetchTimeout)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestLoadConfigDefaults(t *testing.T) {
	vars := []string{
		"PORT", "ENVIRONMENT", "LLM_PROVIDER", "LLM_MAX_TOKENS", "ANTHROPIC_BASE_URL",
		"CONTEXT_FETCH_TIMEOUT", "CONTEXT_FETCH_USER_AGENT", "REDIS_ADDR", "REDIS_KEY_PREFIX",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 2000, cfg.LLMMaxTokens)
	assert.Equal(t, "https://api.anthropic.com", cfg.AnthropicBaseURL)
	assert.Equal(t, 10*time.Second, cfg.ContextFetchTimeout)
	assert.Equal(t, "Mozilla/5.0 (compatible; GTMAgent/1.0)", cfg.ContextFetchUserAgent)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "gtm", cfg.RedisKeyPrefix)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_TIMEOUT", "15")
	assert.Equal(t, 15*time.Second, getEnvDuration("X_TIMEOUT", time.Second))

	t.Setenv("X_TIMEOUT", "bogus")
	assert.Equal(t, time.Second, getEnvDuration("X_TIMEOUT", time.Second))
}

func TestLoadPromptsDefaults(t *testing.T) {
	p, err := LoadPrompts("")
	require.NoError(t, err)

	assert.Equal(t, 2000, p.MaxTokens)
	for _, key := range []string{"narrative", "emails", "linkedin", "action_plan"} {
		assert.Contains(t, p.Artifacts, key)
		assert.Contains(t, p.Artifacts[key], "{{.CompanyName}}")
	}
}

func TestLoadPromptsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system: be brief\nartifacts:\n  narrative: \"Narrative for {{.CompanyName}}\"\n"), 0o644))

	p, err := LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "be brief", p.System)
	assert.Equal(t, "Narrative for {{.CompanyName}}", p.Artifacts["narrative"])

	require.NoError(t, os.WriteFile(path, []byte("version: 2\n"), 0o644))
	_, err = LoadPrompts(path)
	assert.Error(t, err)

	_, err = LoadPrompts(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestTracingConfig(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_SAMPLER_RATIO", "7")

	cfg := LoadConfig()
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, "collector:4318", cfg.OTelEndpoint)
	assert.Equal(t, 1.0, cfg.OTelSampleRatio)
	assert.Equal(t, "gtm-agent-api", cfg.OTelServiceName)

	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLER_RATIO", "nope")
	cfg = LoadConfig()
	assert.False(t, cfg.OTelEnabled)
	assert.Equal(t, 0.1, cfg.OTelSampleRatio)
}
