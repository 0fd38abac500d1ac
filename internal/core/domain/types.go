package domain

import (
	"context"

	"github.com/google/uuid"
)

// RunID identifies one agent run
type RunID string

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// LLMProvider defines the interface for LLM services
type LLMProvider interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Column is one column of a table, in declaration order
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSchema is a table name with its ordered columns
type TableSchema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// QueryResult is either a tabular result or, for statements that return no
// rows, a row count (IsRowCount set).
type QueryResult struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	TotalRows    int64    `json:"total_rows,omitempty"` // rows produced, kept or not
	IsRowCount   bool     `json:"is_row_count"`
	RowsAffected int64    `json:"rows_affected,omitempty"`
}

// TableOverview is what the schema explorer reports per table
type TableOverview struct {
	TableSchema
	RowCount   int64   `json:"row_count"`
	SampleRows [][]any `json:"sample_rows"`
}
