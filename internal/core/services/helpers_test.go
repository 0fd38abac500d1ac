package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/manthysbr/aulesql/internal/adapters/sqldb"
	"github.com/manthysbr/aulesql/internal/adapters/sqlite"
	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// llmFunc adapts a function to domain.LLMProvider
type llmFunc func(ctx context.Context, prompt string, temperature float64) (string, error)

func (f llmFunc) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	return f(ctx, prompt, temperature)
}

// scriptedLLM replays responses in order and records every prompt.
// Once the script runs out the last response repeats.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
}

func script(responses ...string) *scriptedLLM {
	return &scriptedLLM{responses: responses}
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(len(s.prompts), len(s.responses)-1)
	s.prompts = append(s.prompts, prompt)
	return s.responses[i], nil
}

func (s *scriptedLLM) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// newEmployeesStore opens an in-memory SQLite database with the sample employees
func newEmployeesStore(t *testing.T) *sqldb.Store {
	t.Helper()
	store, err := sqlite.Open(":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedEmployees(context.Background(), sqldb.SampleEmployees))
	return store
}

func testAgentConfig() domain.AgentConfig {
	cfg := domain.DefaultAgentConfig()
	cfg.MaxIterations = 5
	cfg.StopOnParseErrorAfter = 3
	cfg.ModelTimeout = 2 * time.Second
	cfg.ToolTimeout = 2 * time.Second
	cfg.RetryBaseDelay = time.Millisecond
	return cfg
}

// execStore overrides Execute on top of a real store
type execStore struct {
	ports.DataStore
	execute func(ctx context.Context, query string, maxRows int) (domain.QueryResult, error)
}

func (s *execStore) Execute(ctx context.Context, query string, maxRows int) (domain.QueryResult, error) {
	return s.execute(ctx, query, maxRows)
}
