package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

const appConfigKey = "app_config"

// SettingsRepository is the minimal DB interface for settings persistence.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key string, value string) error
}

// OnChangeFunc is called when settings are updated.
type OnChangeFunc func(cfg *domain.AppConfig)

// SettingsStore keeps the application config in the history database as one
// JSON document. The LLM API key is encrypted at rest and masked on read.
type SettingsStore struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	secret   *SecretKey
	repo     SettingsRepository
	config   *domain.AppConfig
	onChange []OnChangeFunc
}

// NewSettingsStore loads the saved config, or saves and uses the defaults
// when nothing is stored yet.
func NewSettingsStore(ctx context.Context, logger *slog.Logger, repo SettingsRepository, secret *SecretKey) (*SettingsStore, error) {
	store := &SettingsStore{
		logger: logger,
		secret: secret,
		repo:   repo,
	}

	cfg, err := store.load(ctx)
	if err != nil {
		logger.Warn("no saved settings found, using defaults", "error", err)
		cfg = domain.DefaultConfig()
		if err := store.save(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	store.config = cfg
	return store, nil
}

// OnChange registers a callback for when settings are updated.
func (s *SettingsStore) OnChange(fn OnChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// GetConfig returns a copy of the current config with the API key decrypted.
func (s *SettingsStore) GetConfig() *domain.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConfig(s.config)
}

// GetMaskedConfig returns config safe for display (API key masked).
func (s *SettingsStore) GetMaskedConfig() *domain.AppConfig {
	cp := s.GetConfig()
	cp.LLM.APIKey = MaskSecret(cp.LLM.APIKey)
	return cp
}

// UpdateConfig validates, encrypts secrets, persists, and triggers onChange callbacks.
// An empty or masked API key keeps the stored one.
func (s *SettingsStore) UpdateConfig(ctx context.Context, update *domain.AppConfig) error {
	s.mu.Lock()

	next := cloneConfig(update)
	if next.LLM.APIKey == "" || isMasked(next.LLM.APIKey) {
		next.LLM.APIKey = s.config.LLM.APIKey
	}
	if next.LLM.Mode == "" {
		next.LLM.Mode = "local"
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}

	if err := s.save(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.config = next
	callbacks := append([]OnChangeFunc(nil), s.onChange...)
	s.mu.Unlock()

	s.logger.Info("settings updated",
		"llm_mode", next.LLM.Mode,
		"store_driver", next.Store.Driver,
	)

	// callbacks run unlocked so they may read the config back
	for _, fn := range callbacks {
		fn(cloneConfig(next))
	}
	return nil
}

func (s *SettingsStore) load(ctx context.Context) (*domain.AppConfig, error) {
	raw, err := s.repo.GetSetting(ctx, appConfigKey)
	if err != nil {
		return nil, err
	}

	// fields missing from older documents keep their defaults
	cfg := domain.DefaultConfig()
	if err := json.Unmarshal([]byte(raw), cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if cfg.LLM.APIKey != "" {
		key, err := s.secret.Decrypt(cfg.LLM.APIKey)
		if err != nil {
			s.logger.Warn("failed to decrypt LLM API key", "error", err)
			cfg.LLM.APIKey = ""
		} else {
			cfg.LLM.APIKey = key
		}
	}
	return cfg, nil
}

func (s *SettingsStore) save(ctx context.Context, cfg *domain.AppConfig) error {
	stored := cloneConfig(cfg)
	if cfg.LLM.APIKey != "" {
		enc, err := s.secret.Encrypt(cfg.LLM.APIKey)
		if err != nil {
			return fmt.Errorf("encrypt LLM API key: %w", err)
		}
		stored.LLM.APIKey = enc
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.repo.SaveSetting(ctx, appConfigKey, string(raw))
}

func cloneConfig(cfg *domain.AppConfig) *domain.AppConfig {
	cp := *cfg
	cp.Agent.EnabledTools = append([]string(nil), cfg.Agent.EnabledTools...)
	cp.Server.AllowedOrigins = append([]string(nil), cfg.Server.AllowedOrigins...)
	return &cp
}
