package domain

import "time"

// AgentConfig bounds a single agent run
type AgentConfig struct {
	MaxIterations         int           `json:"max_iterations"`
	StopOnParseErrorAfter int           `json:"stop_on_parse_error_after"`
	ModelTemperature      float64       `json:"model_temperature"`
	ModelTimeout          time.Duration `json:"model_timeout"`
	ToolTimeout           time.Duration `json:"tool_timeout"`
	MaxModelRetries       int           `json:"max_model_retries"`
	RetryBaseDelay        time.Duration `json:"retry_base_delay"`
	MaxResultRows         int           `json:"max_result_rows"`
	TranscriptTail        int           `json:"transcript_tail"` // 0 keeps the whole transcript in failed results
	EnabledTools          []string      `json:"enabled_tools,omitempty"`
}

// DefaultAgentConfig returns the settings used when nothing is configured.
// Temperature 0 keeps SQL generation deterministic.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxIterations:         15,
		StopOnParseErrorAfter: 3,
		ModelTemperature:      0,
		ModelTimeout:          60 * time.Second,
		ToolTimeout:           30 * time.Second,
		MaxModelRetries:       2,
		RetryBaseDelay:        500 * time.Millisecond,
		MaxResultRows:         20,
	}
}

// NewAgentConfig builds a config from the three required values, filling
// the rest from defaults, and validates it.
func NewAgentConfig(maxIterations, stopOnParseErrorAfter int, temperature float64) (AgentConfig, error) {
	cfg := DefaultAgentConfig()
	cfg.MaxIterations = maxIterations
	cfg.StopOnParseErrorAfter = stopOnParseErrorAfter
	cfg.ModelTemperature = temperature
	if err := cfg.Validate(); err != nil {
		return AgentConfig{}, err
	}
	return cfg, nil
}

// Validate fails fast on values the loop cannot work with
func (c AgentConfig) Validate() error {
	switch {
	case c.MaxIterations <= 0:
		return &ConfigError{Field: "max_iterations", Reason: "must be positive"}
	case c.StopOnParseErrorAfter <= 0:
		return &ConfigError{Field: "stop_on_parse_error_after", Reason: "must be positive"}
	case c.StopOnParseErrorAfter > c.MaxIterations:
		return &ConfigError{Field: "stop_on_parse_error_after", Reason: "must not exceed max_iterations"}
	case c.ModelTemperature < 0 || c.ModelTemperature > 2:
		return &ConfigError{Field: "model_temperature", Reason: "must be within [0, 2]"}
	case c.ModelTimeout < 0:
		return &ConfigError{Field: "model_timeout", Reason: "must not be negative"}
	case c.ToolTimeout < 0:
		return &ConfigError{Field: "tool_timeout", Reason: "must not be negative"}
	case c.MaxModelRetries < 0:
		return &ConfigError{Field: "max_model_retries", Reason: "must not be negative"}
	case c.RetryBaseDelay < 0:
		return &ConfigError{Field: "retry_base_delay", Reason: "must not be negative"}
	case c.MaxResultRows <= 0:
		return &ConfigError{Field: "max_result_rows", Reason: "must be positive"}
	case c.TranscriptTail < 0:
		return &ConfigError{Field: "transcript_tail", Reason: "must not be negative"}
	}
	return nil
}

// LLMProviderConfig configures the LLM provider
type LLMProviderConfig struct {
	Mode         string  `json:"mode"`          // "local", "remote" or "anthropic"
	LocalURL     string  `json:"local_url"`     // "http://localhost:11434"
	RemoteURL    string  `json:"remote_url"`    // "https://api.openai.com/v1"
	APIKey       string  `json:"api_key"`       // Encrypted in storage
	DefaultModel string  `json:"default_model"` // "qwen2.5:7b" or "gpt-4o-mini"
	RateLimit    float64 `json:"rate_limit"`    // requests per second, 0 = unlimited
}

// StoreConfig selects the database the agent answers questions about
type StoreConfig struct {
	Driver      string `json:"driver"`       // "sqlite" or "duckdb"
	Path        string `json:"path"`         // file path or ":memory:"
	HistoryPath string `json:"history_path"` // DuckDB file for run history and settings
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// AppConfig is the main application configuration
type AppConfig struct {
	LLM    LLMProviderConfig `json:"llm"`
	Store  StoreConfig       `json:"store"`
	Agent  AgentConfig       `json:"agent"`
	Server ServerConfig      `json:"server"`
}

// DefaultConfig returns safe defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		LLM: LLMProviderConfig{
			Mode:         "local",
			LocalURL:     "http://localhost:11434",
			DefaultModel: "qwen2.5:7b",
		},
		Store: StoreConfig{
			Driver:      "sqlite",
			Path:        "aule_sql.db",
			HistoryPath: "aule_history.duckdb",
		},
		Agent: DefaultAgentConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
	}
}

// Validate checks the whole application config
func (c *AppConfig) Validate() error {
	switch c.LLM.Mode {
	case "local":
	case "remote":
		if c.LLM.RemoteURL == "" {
			return &ConfigError{Field: "llm.remote_url", Reason: "required when mode=remote"}
		}
		if c.LLM.APIKey == "" {
			return &ConfigError{Field: "llm.api_key", Reason: "required when mode=remote"}
		}
	case "anthropic":
		if c.LLM.APIKey == "" {
			return &ConfigError{Field: "llm.api_key", Reason: "required when mode=anthropic"}
		}
	default:
		return &ConfigError{Field: "llm.mode", Reason: "must be local, remote or anthropic"}
	}
	if c.LLM.RateLimit < 0 {
		return &ConfigError{Field: "llm.rate_limit", Reason: "must not be negative"}
	}
	switch c.Store.Driver {
	case "sqlite", "duckdb":
	default:
		return &ConfigError{Field: "store.driver", Reason: "must be sqlite or duckdb"}
	}
	return c.Agent.Validate()
}
