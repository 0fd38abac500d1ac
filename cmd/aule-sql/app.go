package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/manthysbr/aulesql/internal/adapters/duckdb"
	"github.com/manthysbr/aulesql/internal/adapters/providers"
	"github.com/manthysbr/aulesql/internal/adapters/sqldb"
	appconfig "github.com/manthysbr/aulesql/internal/config"
	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/services"
)

// app holds everything a command needs. Build it with newApp and release it
// with close.
type app struct {
	logger   *slog.Logger
	cfg      *domain.AppConfig
	history  *duckdb.Repository
	settings *appconfig.SettingsStore
	store    *sqldb.Store
	bus      *services.EventBus
	tracer   *services.TraceCollector
	agent    *services.ReActAgentService
}

// newApp resolves the config (saved settings, then environment, then flags)
// and opens the history, the data store and the model.
func newApp(ctx context.Context, logger *slog.Logger, flags *globalFlags) (*app, error) {
	// the history database holds the saved settings, so its location comes
	// from defaults, environment and flags only
	boot := domain.DefaultConfig()
	if err := appconfig.ApplyEnv(boot); err != nil {
		return nil, err
	}
	flags.apply(boot)

	history, err := duckdb.NewRepository(boot.Store.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	a := &app{logger: logger, history: history}

	secret, err := appconfig.NewSecretKey("")
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load secret key: %w", err)
	}

	a.settings, err = appconfig.NewSettingsStore(ctx, logger, history, secret)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	cfg := a.settings.GetConfig()
	if err := appconfig.ApplyEnv(cfg); err != nil {
		a.close()
		return nil, err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		a.close()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	a.store, err = providers.BuildStore(cfg.Store, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a.bus = services.NewEventBus(logger)
	a.tracer = services.NewTraceCollector(logger, a.bus, history)

	a.agent, err = a.buildAgent(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	logger.Debug("app ready",
		"driver", a.store.Driver(),
		"db", cfg.Store.Path,
		"llm_mode", cfg.LLM.Mode,
		"model", cfg.LLM.DefaultModel,
	)
	return a, nil
}

// buildAgent wires the model named by cfg to the open data store
func (a *app) buildAgent(cfg *domain.AppConfig) (*services.ReActAgentService, error) {
	provider, err := providers.BuildLLM(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build llm provider: %w", err)
	}
	client := services.NewModelClient(a.logger, provider, cfg.Agent, cfg.LLM.RateLimit)

	agent, err := services.NewReActAgentService(a.logger, client, a.store, cfg.Agent, a.tracer, a.bus)
	if err != nil {
		return nil, fmt.Errorf("failed to build agent: %w", err)
	}
	return agent, nil
}

// close waits for pending history writes, then releases the databases
func (a *app) close() {
	if a.tracer != nil {
		a.tracer.Flush()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("failed to close history", "error", err)
		}
	}
}

func (f *globalFlags) apply(cfg *domain.AppConfig) {
	if f.driver != "" {
		cfg.Store.Driver = f.driver
	}
	if f.dbPath != "" {
		cfg.Store.Path = f.dbPath
	}
	if f.historyPath != "" {
		cfg.Store.HistoryPath = f.historyPath
	}
}
