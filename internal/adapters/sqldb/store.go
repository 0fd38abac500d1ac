// Package sqldb implements the agent's data store on top of database/sql.
// Backends plug in a Dialect for schema introspection; query execution and
// error translation are shared.
package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/ports"
)

// Dialect covers what differs between backends
type Dialect interface {
	Name() string
	ListTables(ctx context.Context, db *sql.DB) ([]string, error)
	// Describe returns nil columns when the table does not exist.
	Describe(ctx context.Context, db *sql.DB, table string) ([]domain.Column, error)
	// IsConnectivityError lets a backend flag driver-specific fatal errors.
	IsConnectivityError(err error) bool
}

// Store is a ports.DataStore over a *sql.DB
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

var _ ports.DataStore = (*Store)(nil)

// New wraps an open database. The Store takes ownership of db.
func New(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  logger.With("driver", dialect.Name()),
	}
}

// DB exposes the underlying handle for seeding and exploration
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Driver() string {
	return s.dialect.Name()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	tables, err := s.dialect.ListTables(ctx, s.db)
	if err != nil {
		return nil, s.translate("list_tables", err)
	}
	return tables, nil
}

func (s *Store) Describe(ctx context.Context, table string) ([]domain.Column, error) {
	cols, err := s.dialect.Describe(ctx, s.db, table)
	if err != nil {
		return nil, s.translate("describe", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrTableNotFound, table)
	}
	return cols, nil
}

// Execute runs a statement. Statements that produce rows come back as a
// tabular result holding at most maxRows rows, everything else as a row count.
func (s *Store) Execute(ctx context.Context, query string, maxRows int) (domain.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.QueryResult{}, &domain.QueryError{Message: "empty query"}
	}

	if !ReturnsRows(query) {
		res, err := s.db.ExecContext(ctx, query)
		if err != nil {
			return domain.QueryResult{}, s.translate("execute", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		return domain.QueryResult{IsRowCount: true, RowsAffected: affected}, nil
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return domain.QueryResult{}, s.translate("execute", err)
	}
	defer rows.Close()

	result, err := ScanRows(rows, maxRows)
	if err != nil {
		return domain.QueryResult{}, s.translate("execute", err)
	}
	return result, nil
}

// translate maps driver errors onto the domain taxonomy
func (s *Store) translate(op string, err error) error {
	// deadlines belong to the caller; the agent decides what a timeout means
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &domain.StoreError{Op: op, Err: err}
	}
	if s.isConnectivity(err) {
		s.logger.Error("store connectivity failure", "op", op, "error", err)
		return &domain.StoreError{Op: op, Err: err, Connectivity: true}
	}
	return &domain.QueryError{Message: err.Error()}
}

func (s *Store) isConnectivity(err error) bool {
	switch {
	case errors.Is(err, sql.ErrConnDone),
		errors.Is(err, driver.ErrBadConn):
		return true
	case strings.Contains(err.Error(), "sql: database is closed"):
		return true
	}
	return s.dialect.IsConnectivityError(err)
}

// rowKeywords are leading keywords of statements that yield a result set
var rowKeywords = []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN", "SHOW", "DESCRIBE", "VALUES", "TABLE", "SUMMARIZE", "FROM"}

// ReturnsRows guesses from the leading keyword whether a statement returns rows
func ReturnsRows(query string) bool {
	q := skipLeadingComments(query)
	first := strings.ToUpper(firstWord(q))
	for _, kw := range rowKeywords {
		if first == kw {
			return true
		}
	}
	// INSERT/UPDATE/DELETE ... RETURNING also yields rows
	return strings.Contains(strings.ToUpper(q), " RETURNING ")
}

// skipLeadingComments drops whitespace, opening parentheses and any -- or
// /* */ comments in front of the first keyword
func skipLeadingComments(query string) string {
	q := strings.TrimLeft(query, " \t\r\n(")
	for {
		switch {
		case strings.HasPrefix(q, "--"):
			nl := strings.IndexByte(q, '\n')
			if nl < 0 {
				return ""
			}
			q = q[nl+1:]
		case strings.HasPrefix(q, "/*"):
			end := strings.Index(q[2:], "*/")
			if end < 0 {
				return ""
			}
			q = q[end+4:]
		default:
			return q
		}
		q = strings.TrimLeft(q, " \t\r\n(")
	}
}

func firstWord(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

// ScanRows reads a result set, keeping at most limit rows (limit <= 0 keeps
// everything). Rows past the limit are counted in TotalRows but not kept.
// Byte slices are converted to strings so results render and serialize cleanly.
func ScanRows(rows *sql.Rows, limit int) (domain.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return domain.QueryResult{}, err
	}

	discard := make([]any, len(cols))
	for i := range discard {
		discard[i] = new(any)
	}

	result := domain.QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		result.TotalRows++
		if limit > 0 && len(result.Rows) >= limit {
			if err := rows.Scan(discard...); err != nil {
				return domain.QueryResult{}, err
			}
			continue
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.QueryResult{}, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}

// QuoteIdent quotes an identifier for use in generated SQL
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
