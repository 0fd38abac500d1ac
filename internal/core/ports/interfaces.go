package ports

import (
	"context"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

// DataStore abstracts the database the agent answers questions about.
// Implementations must be safe for concurrent use by independent runs.
type DataStore interface {
	// ListTables returns table names in alphabetical order.
	ListTables(ctx context.Context) ([]string, error)

	// Describe returns the columns of a table in declaration order.
	// Fails with domain.ErrTableNotFound if the table does not exist.
	Describe(ctx context.Context, table string) ([]domain.Column, error)

	// Execute runs arbitrary SQL. Malformed SQL and constraint violations are
	// reported as *domain.QueryError with the driver message untouched.
	// No retries and no implicit transaction. At most maxRows rows are kept
	// (maxRows <= 0 keeps all); TotalRows still counts the full result.
	Execute(ctx context.Context, sql string, maxRows int) (domain.QueryResult, error)

	// Driver names the backend ("sqlite", "duckdb").
	Driver() string

	Close() error
}

// Repository abstracts the persistent run history and settings (DuckDB)
type Repository interface {
	// Traces
	SaveTrace(ctx context.Context, trace *domain.Trace) error
	ListTraces(ctx context.Context, limit int) ([]domain.TraceSummary, error)
	GetTrace(ctx context.Context, id domain.TraceID) (*domain.Trace, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key string, value string) error
}
