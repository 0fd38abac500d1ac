package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"valid select", "SELECT name FROM employees WHERE country = 'USA'", nil},
		{"valid cte", "WITH usa AS (SELECT * FROM employees) SELECT COUNT(*) FROM usa", nil},
		{"parenthesised", "(SELECT 1)", nil},
		{"trailing semicolon", "SELECT 1;", nil},
		{"semicolon in literal", "SELECT 'a;b'", nil},
		{"escaped quote", "SELECT 'O''Brien'", nil},
		{"union all", "SELECT 1 UNION ALL SELECT 2", nil},
		{"is null", "SELECT * FROM t WHERE manager IS NULL", nil},
		{"empty", "   ", []string{"query is empty"}},
		{"not sql", "give me the salaries", []string{
			"query does not start with a SQL statement keyword such as SELECT or WITH",
		}},
		{"open quote", "SELECT 'abc FROM t", []string{"unbalanced quote: ' is never closed"}},
		{"missing paren", "SELECT COUNT(* FROM t", []string{"unbalanced parentheses: missing )"}},
		{"extra paren", "SELECT 1)", []string{"unbalanced parentheses: unexpected )"}},
		{"two statements", "SELECT 1; DROP TABLE t", []string{"multiple statements: submit one statement at a time"}},
		{"not in subquery", "SELECT * FROM a WHERE id NOT IN (SELECT id FROM b)", []string{
			"NOT IN with a subquery returns no rows when the subquery yields NULL; consider NOT EXISTS",
		}},
		{"equals null", "SELECT * FROM t WHERE manager = NULL", []string{
			"comparison with NULL using = or <> is never true; use IS NULL or IS NOT NULL",
		}},
		{"union", "SELECT 1 UNION SELECT 2", []string{
			"UNION removes duplicate rows; use UNION ALL if duplicates should be kept",
		}},
		{"several issues in order", "SELECT * FROM t WHERE a = NULL UNION SELECT (1", []string{
			"unbalanced parentheses: missing )",
			"comparison with NULL using = or <> is never true; use IS NULL or IS NOT NULL",
			"UNION removes duplicate rows; use UNION ALL if duplicates should be kept",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckQuery(tt.query))
		})
	}
}
