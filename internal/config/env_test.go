package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range envBindings {
		for _, name := range names {
			t.Setenv(name, "")
		}
	}
}

func TestApplyEnv_NothingSet(t *testing.T) {
	clearEnv(t)
	cfg := domain.DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, domain.DefaultConfig(), cfg)
}

func TestApplyEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AULE_LLM_MODE", "remote")
	t.Setenv("OPENAI_BASE_URL", "https://api.example.com/v1")
	t.Setenv("AULE_LLM_MODEL", " gpt-test ")
	t.Setenv("AULE_DB_DRIVER", "duckdb")
	t.Setenv("AULE_DB_PATH", "/tmp/sales.duckdb")
	t.Setenv("AULE_MAX_ITERATIONS", "9")
	t.Setenv("AULE_TEMPERATURE", "0.3")
	t.Setenv("AULE_LLM_RATE_LIMIT", "2.5")
	t.Setenv("AULE_ALLOWED_ORIGINS", "http://a.example, ,http://b.example")

	cfg := domain.DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))

	assert.Equal(t, "remote", cfg.LLM.Mode)
	assert.Equal(t, "https://api.example.com/v1", cfg.LLM.RemoteURL)
	assert.Equal(t, "gpt-test", cfg.LLM.DefaultModel)
	assert.Equal(t, "duckdb", cfg.Store.Driver)
	assert.Equal(t, "/tmp/sales.duckdb", cfg.Store.Path)
	assert.Equal(t, 9, cfg.Agent.MaxIterations)
	assert.Equal(t, 0.3, cfg.Agent.ModelTemperature)
	assert.Equal(t, 2.5, cfg.LLM.RateLimit)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
}

func TestApplyEnv_ProviderKeys(t *testing.T) {
	tests := []struct {
		name string
		mode string
		env  map[string]string
		want string
	}{
		{"openai key in remote mode", "remote", map[string]string{"OPENAI_API_KEY": "sk-openai"}, "sk-openai"},
		{"anthropic key in anthropic mode", "anthropic", map[string]string{"ANTHROPIC_API_KEY": "sk-ant"}, "sk-ant"},
		{"openai key ignored in anthropic mode", "anthropic", map[string]string{"OPENAI_API_KEY": "sk-openai"}, ""},
		{"anthropic key ignored in local mode", "local", map[string]string{"ANTHROPIC_API_KEY": "sk-ant"}, ""},
		{"generic key wins", "remote", map[string]string{"OPENAI_API_KEY": "sk-openai", "AULE_LLM_API_KEY": "sk-generic"}, "sk-generic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := domain.DefaultConfig()
			cfg.LLM.Mode = tt.mode
			require.NoError(t, ApplyEnv(cfg))
			assert.Equal(t, tt.want, cfg.LLM.APIKey)
		})
	}
}

func TestApplyEnv_LocalURLFallsBackToOllamaHost(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")

	cfg := domain.DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.LocalURL)

	t.Setenv("AULE_LLM_LOCAL_URL", "http://other:11434")
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "http://other:11434", cfg.LLM.LocalURL)
}

func TestApplyEnv_MalformedNumbers(t *testing.T) {
	tests := []struct {
		env   string
		value string
		field string
	}{
		{"AULE_MAX_ITERATIONS", "many", "agent.max_iterations"},
		{"AULE_STOP_ON_PARSE_ERROR_AFTER", "1.5", "agent.stop_after"},
		{"AULE_TEMPERATURE", "warm", "agent.temperature"},
		{"AULE_LLM_RATE_LIMIT", "fast", "llm.rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.value)

			err := ApplyEnv(domain.DefaultConfig())
			var ce *domain.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}
