package providers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthysbr/aulesql/internal/adapters/duckdb"
	"github.com/manthysbr/aulesql/internal/adapters/llm"
	"github.com/manthysbr/aulesql/internal/adapters/sqldb"
	"github.com/manthysbr/aulesql/internal/adapters/sqlite"
	"github.com/manthysbr/aulesql/internal/core/domain"
)

// BuildLLM creates the LLM provider selected by the configuration.
// It hides local/remote provider selection from callers.
func BuildLLM(config *domain.AppConfig) (domain.LLMProvider, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	c := config.LLM

	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	switch mode {
	case "", "local":
		return llm.NewOllamaProvider(normalizeOllamaBaseURL(c.LocalURL), strings.TrimSpace(c.DefaultModel)), nil
	case "remote":
		if strings.TrimSpace(c.RemoteURL) == "" {
			return nil, &domain.ConfigError{Field: "llm.remote_url", Reason: "required when mode=remote"}
		}
		return llm.NewOpenAIProvider(
			strings.TrimSpace(c.RemoteURL),
			strings.TrimSpace(c.APIKey),
			strings.TrimSpace(c.DefaultModel),
		), nil
	case "anthropic":
		return llm.NewAnthropicProvider(
			strings.TrimSpace(c.APIKey),
			strings.TrimSpace(c.RemoteURL),
			strings.TrimSpace(c.DefaultModel),
		), nil
	default:
		return nil, &domain.ConfigError{Field: "llm.mode", Reason: fmt.Sprintf("unsupported provider mode %q", c.Mode)}
	}
}

// BuildStore opens the data store selected by the configuration
func BuildStore(config domain.StoreConfig, logger *slog.Logger) (*sqldb.Store, error) {
	switch strings.ToLower(strings.TrimSpace(config.Driver)) {
	case "", "sqlite":
		return sqlite.Open(config.Path, logger)
	case "duckdb":
		return duckdb.OpenStore(config.Path, logger)
	default:
		return nil, &domain.ConfigError{Field: "store.driver", Reason: fmt.Sprintf("unsupported driver %q", config.Driver)}
	}
}

func normalizeOllamaBaseURL(baseURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return strings.TrimSuffix(trimmed, "/v1")
}
