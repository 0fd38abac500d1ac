package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/manthysbr/aulesql/internal/core/ports"
)

// Repository persists run history and settings in DuckDB
type Repository struct {
	db *sql.DB
}

// NewRepository opens the history database. An empty path or ":memory:" keeps it in memory.
func NewRepository(path string) (*Repository, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	r := &Repository{db: db}
	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

// Ensure Repository implements Repository interface
var _ ports.Repository = (*Repository)(nil)

func openDB(path string) (*sql.DB, error) {
	if path == ":memory:" {
		path = ""
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS traces (
			id          VARCHAR PRIMARY KEY,
			question    VARCHAR,
			status      VARCHAR,
			outcome     VARCHAR,
			answer      VARCHAR,
			root_span_id VARCHAR,
			start_time  TIMESTAMP,
			end_time    TIMESTAMP,
			duration_ms BIGINT,
			span_count  INTEGER,
			steps       VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS spans (
			id          VARCHAR PRIMARY KEY,
			trace_id    VARCHAR,
			parent_id   VARCHAR,
			name        VARCHAR,
			kind        VARCHAR,
			status      VARCHAR,
			input       VARCHAR,
			output      VARCHAR,
			error       VARCHAR,
			attributes  VARCHAR,
			start_time  TIMESTAMP,
			end_time    TIMESTAMP,
			duration_ms BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key   VARCHAR PRIMARY KEY,
			value VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
