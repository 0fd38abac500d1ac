package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/aulesql/internal/adapters/sqldb"
	"github.com/manthysbr/aulesql/internal/core/domain"
)

func newTestStore(t *testing.T, path string) *sqldb.Store {
	t.Helper()
	store, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedEmployees(context.Background(), sqldb.SampleEmployees))
	return store
}

func TestStore_InMemory(t *testing.T) {
	store := newTestStore(t, ":memory:")
	ctx := context.Background()

	assert.Equal(t, "sqlite", store.Driver())

	tables, err := store.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"employees"}, tables)

	cols, err := store.Describe(ctx, "employees")
	require.NoError(t, err)
	assert.Equal(t, []domain.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "name", Type: "TEXT"},
		{Name: "country", Type: "TEXT"},
		{Name: "salary", Type: "INTEGER"},
	}, cols)

	res, err := store.Execute(ctx, "SELECT salary FROM employees WHERE name = 'Alice'", 0)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(100000)}}, res.Rows)
}

func TestStore_FileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "company.db")
	store := newTestStore(t, path)
	require.NoError(t, store.Close())

	reopened, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer reopened.Close()

	res, err := reopened.Execute(context.Background(), "SELECT COUNT(*) FROM employees", 0)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(4)}}, res.Rows)
}

func TestStore_Errors(t *testing.T) {
	store := newTestStore(t, ":memory:")
	ctx := context.Background()

	_, err := store.Describe(ctx, "staff")
	assert.ErrorIs(t, err, domain.ErrTableNotFound)

	_, err = store.Execute(ctx, "SELECT * FROM staff", 0)
	var qe *domain.QueryError
	require.True(t, errors.As(err, &qe))
	assert.Contains(t, qe.Message, "no such table: staff")
	assert.False(t, domain.IsConnectivity(err))

	_, err = store.Execute(ctx, "INSERT INTO employees VALUES (1, 'Eve', 'Spain', 1)", 0)
	require.True(t, errors.As(err, &qe))
	assert.Contains(t, qe.Message, "UNIQUE constraint failed")
}

func TestStore_WritesReportRowCount(t *testing.T) {
	store := newTestStore(t, ":memory:")

	res, err := store.Execute(context.Background(), "UPDATE employees SET salary = salary + 1 WHERE country = 'USA'", 0)
	require.NoError(t, err)
	assert.True(t, res.IsRowCount)
	assert.Equal(t, int64(2), res.RowsAffected)
}

func TestStore_LargeResultIsCapped(t *testing.T) {
	store := newTestStore(t, ":memory:")
	ctx := context.Background()

	_, err := store.Execute(ctx, `CREATE TABLE events AS
		WITH RECURSIVE n(i) AS (SELECT 1 UNION ALL SELECT i + 1 FROM n WHERE i < 5000)
		SELECT i AS id, 'event ' || i AS label FROM n`, 0)
	require.NoError(t, err)

	res, err := store.Execute(ctx, "/* everything */ SELECT * FROM events ORDER BY id", 20)
	require.NoError(t, err)
	assert.False(t, res.IsRowCount)
	assert.Len(t, res.Rows, 20)
	assert.Equal(t, int64(5000), res.TotalRows)
	assert.Equal(t, []any{int64(1), "event 1"}, res.Rows[0])
}
