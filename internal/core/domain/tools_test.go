package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name, input string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes " + name,
		InputShape:  input,
		Invoke: func(ctx context.Context, in string) (string, error) {
			return name + ":" + in, nil
		},
	}
}

func TestToolRegistry(t *testing.T) {
	reg := NewToolRegistry()
	require.NoError(t, reg.Register(echoTool("query_executor", "SQL query")))
	require.NoError(t, reg.Register(echoTool("list_tables", "")))

	assert.Error(t, reg.Register(echoTool("list_tables", "")))
	assert.Error(t, reg.Register(&Tool{Name: ""}))
	assert.Error(t, reg.Register(&Tool{Name: "no_invoke"}))
	assert.Error(t, reg.Register(nil))

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"list_tables", "query_executor"}, reg.Names())
	assert.True(t, reg.Has("list_tables"))
	assert.False(t, reg.Has("List_Tables"))

	out, err := reg.Invoke(context.Background(), "query_executor", "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "query_executor:SELECT 1", out)

	_, err = reg.Invoke(context.Background(), "drop_database", "")
	assert.True(t, errors.Is(err, ErrToolNotFound))
}

func TestToolRegistry_FormatToolsForPrompt(t *testing.T) {
	reg := NewToolRegistry()
	require.NoError(t, reg.Register(echoTool("query_executor", "SQL query")))
	require.NoError(t, reg.Register(echoTool("list_tables", "")))

	assert.Equal(t,
		"- list_tables: echoes list_tables (no input)\n"+
			"- query_executor: echoes query_executor (input: SQL query)\n",
		reg.FormatToolsForPrompt())
}

func TestToolRegistry_FilterByNames(t *testing.T) {
	reg := NewToolRegistry()
	require.NoError(t, reg.Register(echoTool("a", "")))
	require.NoError(t, reg.Register(echoTool("b", "")))

	filtered := reg.FilterByNames([]string{"b", "missing"})
	assert.Equal(t, []string{"b"}, filtered.Names())
	assert.Equal(t, 2, reg.Len())
}

func TestErrorClassification(t *testing.T) {
	lost := &StoreError{Op: "execute", Err: errors.New("disk I/O error"), Connectivity: true}
	assert.True(t, IsConnectivity(lost))
	assert.True(t, IsConnectivity(wrap(lost)))
	assert.False(t, IsConnectivity(&StoreError{Op: "execute", Err: errors.New("deadline")}))
	assert.False(t, IsConnectivity(&QueryError{Message: "no such table"}))

	assert.True(t, IsRetryableModelError(wrap(&ModelError{Provider: "ollama", StatusCode: 503, Retryable: true, Err: errors.New("x")})))
	assert.False(t, IsRetryableModelError(&ModelError{Provider: "ollama", StatusCode: 401, Err: errors.New("x")}))

	assert.Equal(t, "ollama model error (status 503): busy", (&ModelError{Provider: "ollama", StatusCode: 503, Err: errors.New("busy")}).Error())
	assert.Equal(t, "invalid config max_iterations: must be positive", (&ConfigError{Field: "max_iterations", Reason: "must be positive"}).Error())
}

func wrap(err error) error {
	return errors.Join(errors.New("context"), err)
}
