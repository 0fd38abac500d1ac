package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/ports"
)

const (
	ToolListTables    = "list_tables"
	ToolDescribeTable = "describe_table"
	ToolQueryChecker  = "query_checker"
	ToolQueryExecutor = "query_executor"

	sampleRowCount = 3
)

// NewListTablesTool lists every table in the data store
func NewListTablesTool(store ports.DataStore) *domain.Tool {
	return &domain.Tool{
		Name:        ToolListTables,
		Description: "Returns a comma-separated list of the tables in the database. Use it first to see what is available",
		Invoke: func(ctx context.Context, _ string) (string, error) {
			tables, err := store.ListTables(ctx)
			if err != nil {
				return storeFailure(err)
			}
			if len(tables) == 0 {
				return "No tables found in the database.", nil
			}
			return strings.Join(tables, ", "), nil
		},
	}
}

// NewDescribeTableTool shows columns and a few sample rows of one or more tables
func NewDescribeTableTool(store ports.DataStore) *domain.Tool {
	return &domain.Tool{
		Name:        ToolDescribeTable,
		Description: "Returns the schema and sample rows for the given tables. Make sure the tables exist by calling list_tables first",
		InputShape:  "comma-separated list of table names, e.g. employees, orders",
		Invoke: func(ctx context.Context, input string) (string, error) {
			names := splitTableNames(input)
			if len(names) == 0 {
				return "", &domain.ToolError{Tool: ToolDescribeTable, Message: "no table name given. Provide one or more table names."}
			}

			var blocks []string
			for _, name := range names {
				block, err := describeOne(ctx, store, name)
				if err != nil {
					return "", err
				}
				blocks = append(blocks, block)
			}
			return strings.Join(blocks, "\n\n"), nil
		},
	}
}

func describeOne(ctx context.Context, store ports.DataStore, table string) (string, error) {
	cols, err := store.Describe(ctx, table)
	if errors.Is(err, domain.ErrTableNotFound) {
		available, lerr := store.ListTables(ctx)
		if lerr != nil {
			return storeFailure(lerr)
		}
		return fmt.Sprintf("Error: table %q not found. Available tables: %s", table, availableList(available)), nil
	}
	if err != nil {
		return storeFailure(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", table)
	for i, c := range cols {
		sep := ","
		if i == len(cols)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "\t%s %s%s\n", c.Name, c.Type, sep)
	}
	b.WriteString(")")

	sample, err := store.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), sampleRowCount), sampleRowCount)
	if err != nil {
		if domain.IsConnectivity(err) {
			return "", err
		}
		// schema is still useful without samples
		return b.String(), nil
	}

	fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n", sampleRowCount, table)
	b.WriteString(renderRows(sample.Columns, sample.Rows))
	b.WriteString("*/")
	return b.String(), nil
}

// NewQueryCheckerTool reviews a query for common mistakes without running it
func NewQueryCheckerTool() *domain.Tool {
	return &domain.Tool{
		Name:        ToolQueryChecker,
		Description: "Double checks a SQL query for common mistakes before you execute it. Always use this tool before query_executor",
		InputShape:  "SQL query",
		Invoke: func(_ context.Context, input string) (string, error) {
			query := normalizeQuery(input)
			issues := CheckQuery(query)
			if len(issues) == 0 {
				return "Query looks valid: " + query, nil
			}
			return "Query has issues:\n- " + strings.Join(issues, "\n- "), nil
		},
	}
}

// NewQueryExecutorTool runs SQL and renders at most maxRows rows
func NewQueryExecutorTool(store ports.DataStore, maxRows int) *domain.Tool {
	if maxRows <= 0 {
		maxRows = domain.DefaultAgentConfig().MaxResultRows
	}
	return &domain.Tool{
		Name:        ToolQueryExecutor,
		Description: "Executes a SQL query against the database and returns the result. If the query is not correct, an error message is returned; rewrite the query and try again",
		InputShape:  "SQL query",
		Invoke: func(ctx context.Context, input string) (string, error) {
			query := normalizeQuery(input)
			if query == "" {
				return "", &domain.ToolError{Tool: ToolQueryExecutor, Message: "empty query. Provide a SQL statement."}
			}

			res, err := store.Execute(ctx, query, maxRows)
			if err != nil {
				return storeFailure(err)
			}
			return formatQueryResult(res, maxRows), nil
		},
	}
}

// BuildSQLCatalog assembles the per-run tool catalog. cfg.EnabledTools, when
// set, restricts it to the listed names.
func BuildSQLCatalog(store ports.DataStore, cfg domain.AgentConfig, logger *slog.Logger) (*domain.ToolRegistry, error) {
	reg := domain.NewToolRegistry()
	for _, t := range []*domain.Tool{
		NewListTablesTool(store),
		NewDescribeTableTool(store),
		NewQueryCheckerTool(),
		NewQueryExecutorTool(store, cfg.MaxResultRows),
	} {
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("register %s: %w", t.Name, err)
		}
	}

	if len(cfg.EnabledTools) == 0 {
		return reg, nil
	}
	filtered := reg.FilterByNames(cfg.EnabledTools)
	if filtered.Len() == 0 {
		return nil, &domain.ConfigError{Field: "enabled_tools", Reason: "none of the listed tools exist"}
	}
	if logger != nil && filtered.Len() < reg.Len() {
		logger.Debug("tool catalog restricted", "tools", strings.Join(filtered.Names(), ","))
	}
	return filtered, nil
}

// storeFailure turns a store error into observation text. Connectivity
// failures are returned as errors so the loop can abort the run.
func storeFailure(err error) (string, error) {
	if domain.IsConnectivity(err) {
		return "", err
	}
	var qe *domain.QueryError
	if errors.As(err, &qe) {
		return "Error: " + qe.Message, nil
	}
	return "Error: " + err.Error(), nil
}

func formatQueryResult(res domain.QueryResult, maxRows int) string {
	if res.IsRowCount {
		return fmt.Sprintf("Statement executed. Rows affected: %d", res.RowsAffected)
	}
	if len(res.Rows) == 0 {
		return "Query returned no rows."
	}

	rows := res.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	total := max(res.TotalRows, int64(len(res.Rows)))
	out := renderRows(res.Columns, rows)
	if total > int64(len(rows)) {
		out += fmt.Sprintf("(showing %d of %d rows)", len(rows), total)
	}
	return strings.TrimRight(out, "\n")
}

// renderRows prints a header line and one "a | b" line per row
func renderRows(columns []string, rows [][]any) string {
	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString("\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func splitTableNames(input string) []string {
	var names []string
	for _, part := range strings.Split(input, ",") {
		name := strings.Trim(strings.TrimSpace(part), "`\"'[] ")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func availableList(tables []string) string {
	if len(tables) == 0 {
		return "(none)"
	}
	return strings.Join(tables, ", ")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// normalizeQuery strips fences, quotes and a trailing semicolon
func normalizeQuery(input string) string {
	q := cleanInput(input)
	return strings.TrimSpace(strings.TrimSuffix(q, ";"))
}
