package sqldb

import (
	"context"
	"fmt"
)

// Employee is a row of the sample dataset
type Employee struct {
	ID      int
	Name    string
	Country string
	Salary  int
}

// SampleEmployees is the toy dataset questions are usually asked against
var SampleEmployees = []Employee{
	{1, "Alice", "USA", 100000},
	{2, "Bob", "Germany", 90000},
	{3, "Charlie", "USA", 120000},
	{4, "Diana", "France", 95000},
}

// SeedEmployees recreates the employees table with the given rows.
// The DDL is plain enough for both SQLite and DuckDB.
func (s *Store) SeedEmployees(ctx context.Context, employees []Employee) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS employees`); err != nil {
		return fmt.Errorf("drop employees: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE employees (
			id INTEGER PRIMARY KEY,
			name TEXT,
			country TEXT,
			salary INTEGER
		)`); err != nil {
		return fmt.Errorf("create employees: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO employees VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range employees {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Name, e.Country, e.Salary); err != nil {
			return fmt.Errorf("insert employee %d: %w", e.ID, err)
		}
	}

	return tx.Commit()
}
