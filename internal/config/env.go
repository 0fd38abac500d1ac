package config

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

// envBindings maps config keys to the environment variables that override
// them, highest priority first.
var envBindings = map[string][]string{
	"llm.mode":               {"AULE_LLM_MODE"},
	"llm.local_url":          {"AULE_LLM_LOCAL_URL", "OLLAMA_HOST"},
	"llm.remote_url":         {"AULE_LLM_REMOTE_URL", "OPENAI_BASE_URL"},
	"llm.model":              {"AULE_LLM_MODEL"},
	"llm.api_key":            {"AULE_LLM_API_KEY"},
	"llm.openai_api_key":     {"OPENAI_API_KEY"},
	"llm.anthropic_api_key":  {"ANTHROPIC_API_KEY"},
	"llm.rate_limit":         {"AULE_LLM_RATE_LIMIT"},
	"store.driver":           {"AULE_DB_DRIVER"},
	"store.path":             {"AULE_DB_PATH"},
	"store.history_path":     {"AULE_HISTORY_PATH"},
	"agent.max_iterations":   {"AULE_MAX_ITERATIONS"},
	"agent.stop_after":       {"AULE_STOP_ON_PARSE_ERROR_AFTER"},
	"agent.temperature":      {"AULE_TEMPERATURE"},
	"agent.max_result_rows":  {"AULE_MAX_RESULT_ROWS"},
	"server.addr":            {"AULE_ADDR"},
	"server.allowed_origins": {"AULE_ALLOWED_ORIGINS"},
}

// ApplyEnv overlays environment variables on cfg. Unset or empty variables
// leave the config alone; malformed numbers fail with a ConfigError.
func ApplyEnv(cfg *domain.AppConfig) error {
	v := viper.New()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return err
		}
	}

	setString(v, "llm.mode", &cfg.LLM.Mode)
	setString(v, "llm.local_url", &cfg.LLM.LocalURL)
	setString(v, "llm.remote_url", &cfg.LLM.RemoteURL)
	setString(v, "llm.model", &cfg.LLM.DefaultModel)

	// provider specific keys only apply to their own mode
	switch cfg.LLM.Mode {
	case "remote":
		setString(v, "llm.openai_api_key", &cfg.LLM.APIKey)
	case "anthropic":
		setString(v, "llm.anthropic_api_key", &cfg.LLM.APIKey)
	}
	setString(v, "llm.api_key", &cfg.LLM.APIKey)

	setString(v, "store.driver", &cfg.Store.Driver)
	setString(v, "store.path", &cfg.Store.Path)
	setString(v, "store.history_path", &cfg.Store.HistoryPath)
	setString(v, "server.addr", &cfg.Server.Addr)

	if v.IsSet("server.allowed_origins") {
		var origins []string
		for _, o := range strings.Split(v.GetString("server.allowed_origins"), ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}

	if err := setInt(v, "agent.max_iterations", &cfg.Agent.MaxIterations); err != nil {
		return err
	}
	if err := setInt(v, "agent.stop_after", &cfg.Agent.StopOnParseErrorAfter); err != nil {
		return err
	}
	if err := setInt(v, "agent.max_result_rows", &cfg.Agent.MaxResultRows); err != nil {
		return err
	}
	if err := setFloat(v, "agent.temperature", &cfg.Agent.ModelTemperature); err != nil {
		return err
	}
	return setFloat(v, "llm.rate_limit", &cfg.LLM.RateLimit)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = strings.TrimSpace(v.GetString(key))
	}
}

func setInt(v *viper.Viper, key string, dst *int) error {
	if !v.IsSet(key) {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return &domain.ConfigError{Field: key, Reason: "not an integer: " + v.GetString(key)}
	}
	*dst = n
	return nil
}

func setFloat(v *viper.Viper, key string, dst *float64) error {
	if !v.IsSet(key) {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
	if err != nil {
		return &domain.ConfigError{Field: key, Reason: "not a number: " + v.GetString(key)}
	}
	*dst = f
	return nil
}
