package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthysbr/aulesql/internal/adapters/sqldb"
	"github.com/manthysbr/aulesql/internal/core/domain"
	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database and wraps it as a data store.
// An in-memory database lives only as long as its single connection, so the
// pool is pinned to one connection in that case.
func Open(path string, logger *slog.Logger) (*sqldb.Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if isMemory(path) {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	return sqldb.New(db, Dialect{}, logger), nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Dialect introspects SQLite through sqlite_master and PRAGMA table_info
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
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
	var exists int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type IN ('table', 'view') AND name = ?`, table).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+sqldb.QuoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []domain.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, domain.Column{Name: name, Type: colType})
	}
	return cols, rows.Err()
}

// IsConnectivityError flags file-level failures the model cannot work around
func (Dialect) IsConnectivityError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to open database file") ||
		strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database disk image is malformed")
}
