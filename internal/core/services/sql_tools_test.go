package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

func TestListTablesTool(t *testing.T) {
	out, err := NewListTablesTool(newEmployeesStore(t)).Invoke(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "employees", out)
}

func TestDescribeTableTool(t *testing.T) {
	tool := NewDescribeTableTool(newEmployeesStore(t))
	ctx := context.Background()

	out, err := tool.Invoke(ctx, "employees")
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE employees (
	id INTEGER,
	name TEXT,
	country TEXT,
	salary INTEGER
)

/*
3 rows from employees table:
id | name | country | salary
1 | Alice | USA | 100000
2 | Bob | Germany | 90000
3 | Charlie | USA | 120000
*/`, out)

	out, err = tool.Invoke(ctx, "staff")
	require.NoError(t, err)
	assert.Equal(t, `Error: table "staff" not found. Available tables: employees`, out)

	_, err = tool.Invoke(ctx, "  ")
	var toolErr *domain.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, ToolDescribeTable, toolErr.Tool)
}

func TestDescribeTableTool_SeveralTables(t *testing.T) {
	store := newEmployeesStore(t)
	_, err := store.Execute(context.Background(), "CREATE TABLE offices (city TEXT)", 0)
	require.NoError(t, err)

	out, err := NewDescribeTableTool(store).Invoke(context.Background(), "employees, `offices`")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE employees (")
	assert.Contains(t, out, "CREATE TABLE offices (\n\tcity TEXT\n)")
	assert.Contains(t, out, "3 rows from offices table:\ncity\n*/")
}

func TestQueryExecutorTool(t *testing.T) {
	tool := NewQueryExecutorTool(newEmployeesStore(t), 2)
	ctx := context.Background()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single value", "SELECT salary FROM employees WHERE name = 'Alice'", "salary\n100000"},
		{"trailing semicolon", "SELECT name FROM employees WHERE id = 2;", "name\nBob"},
		{"fenced", "```sql\nSELECT name FROM employees WHERE id = 4\n```", "name\nDiana"},
		{"leading block comment", "/* find alice */ SELECT name FROM employees WHERE name = 'Alice'", "name\nAlice"},
		{"truncated", "SELECT name FROM employees ORDER BY id", "name\nAlice\nBob\n(showing 2 of 4 rows)"},
		{"no rows", "SELECT name FROM employees WHERE country = 'Peru'", "Query returned no rows."},
		{"null", "SELECT NULL AS manager", "manager\nNULL"},
		{"write", "UPDATE employees SET salary = salary WHERE country = 'USA'", "Statement executed. Rows affected: 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tool.Invoke(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestQueryExecutorTool_AsksStoreForBoundedRows(t *testing.T) {
	var asked int
	store := &execStore{DataStore: newEmployeesStore(t), execute: func(ctx context.Context, q string, maxRows int) (domain.QueryResult, error) {
		asked = maxRows
		return domain.QueryResult{Columns: []string{"id"}, Rows: [][]any{{int64(1)}, {int64(2)}}, TotalRows: 100000}, nil
	}}

	out, err := NewQueryExecutorTool(store, 2).Invoke(context.Background(), "SELECT id FROM events")
	require.NoError(t, err)
	assert.Equal(t, 2, asked)
	assert.Equal(t, "id\n1\n2\n(showing 2 of 100000 rows)", out)
}

func TestQueryExecutorTool_EmptyInput(t *testing.T) {
	_, err := NewQueryExecutorTool(newEmployeesStore(t), 10).Invoke(context.Background(), "```sql\n```")
	var toolErr *domain.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "empty query. Provide a SQL statement.", toolErr.Message)
}

func TestQueryExecutorTool_ErrorsBecomeText(t *testing.T) {
	out, err := NewQueryExecutorTool(newEmployeesStore(t), 10).Invoke(context.Background(), "SELEC name FROM employees")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error: "))
	assert.Contains(t, out, "syntax error")
}

func TestQueryExecutorTool_ConnectivityIsAnError(t *testing.T) {
	lost := &domain.StoreError{Op: "execute", Err: errors.New("disk I/O error"), Connectivity: true}
	store := &execStore{DataStore: newEmployeesStore(t), execute: func(ctx context.Context, q string, maxRows int) (domain.QueryResult, error) {
		return domain.QueryResult{}, lost
	}}

	_, err := NewQueryExecutorTool(store, 10).Invoke(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, lost)
}

func TestQueryCheckerTool(t *testing.T) {
	tool := NewQueryCheckerTool()

	out, err := tool.Invoke(context.Background(), "SELECT name FROM employees;")
	require.NoError(t, err)
	assert.Equal(t, "Query looks valid: SELECT name FROM employees", out)

	out, err = tool.Invoke(context.Background(), "SELECT name FROM employees WHERE (salary > 1")
	require.NoError(t, err)
	assert.Equal(t, "Query has issues:\n- unbalanced parentheses: missing )", out)
}

func TestBuildSQLCatalog(t *testing.T) {
	store := newEmployeesStore(t)

	catalog, err := BuildSQLCatalog(store, testAgentConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{ToolDescribeTable, ToolListTables, ToolQueryChecker, ToolQueryExecutor}, catalog.Names())

	tool, ok := catalog.GetTool(ToolListTables)
	require.True(t, ok)
	assert.False(t, tool.TakesInput())

	cfg := testAgentConfig()
	cfg.EnabledTools = []string{"nope"}
	_, err = BuildSQLCatalog(store, cfg, discardLogger())
	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "enabled_tools", cfgErr.Field)

	_, err = catalog.Invoke(context.Background(), "nope", "")
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}
