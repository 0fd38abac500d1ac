package duckdb

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/manthysbr/aulesql/internal/adapters/sqldb"
	"github.com/manthysbr/aulesql/internal/core/domain"
)

// OpenStore opens a DuckDB database as the agent's data store
func OpenStore(path string, logger *slog.Logger) (*sqldb.Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return sqldb.New(db, Dialect{}, logger), nil
}

// Dialect introspects DuckDB through information_schema, main schema only
type Dialect struct{}

func (Dialect) Name() string { return "duckdb" }

func (Dialect) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'main'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (Dialect) Describe(ctx context.Context, db *sql.DB, table string) ([]domain.Column, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []domain.Column
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// IsConnectivityError flags DuckDB failures that leave the database unusable
func (Dialect) IsConnectivityError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Connection Error") ||
		strings.Contains(msg, "IO Error") ||
		strings.Contains(msg, "FATAL Error")
}
