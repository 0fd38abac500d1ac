package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/ports"
)

// SchemaExplorer summarizes what is in the data store: tables, columns, row
// counts and a few sample rows.
type SchemaExplorer struct {
	logger *slog.Logger
	store  ports.DataStore
}

func NewSchemaExplorer(logger *slog.Logger, store ports.DataStore) *SchemaExplorer {
	return &SchemaExplorer{logger: logger, store: store}
}

// Explore returns an overview of every table, in table-name order
func (e *SchemaExplorer) Explore(ctx context.Context) ([]domain.TableOverview, error) {
	tables, err := e.store.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	out := make([]domain.TableOverview, 0, len(tables))
	for _, name := range tables {
		ov, err := e.overview(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	e.logger.Debug("schema explored", "tables", len(out))
	return out, nil
}

func (e *SchemaExplorer) overview(ctx context.Context, table string) (domain.TableOverview, error) {
	cols, err := e.store.Describe(ctx, table)
	if err != nil {
		return domain.TableOverview{}, fmt.Errorf("describe %s: %w", table, err)
	}
	ov := domain.TableOverview{TableSchema: domain.TableSchema{Name: table, Columns: cols}}

	count, err := e.store.Execute(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table), 1)
	if err != nil {
		return ov, fmt.Errorf("count %s: %w", table, err)
	}
	if len(count.Rows) == 1 && len(count.Rows[0]) == 1 {
		ov.RowCount = toInt64(count.Rows[0][0])
	}

	sample, err := e.store.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), sampleRowCount), sampleRowCount)
	if err != nil {
		return ov, fmt.Errorf("sample %s: %w", table, err)
	}
	ov.SampleRows = sample.Rows
	if ov.SampleRows == nil {
		ov.SampleRows = [][]any{}
	}
	return ov, nil
}

// FormatOverview renders an exploration result for a terminal
func FormatOverview(tables []domain.TableOverview) string {
	if len(tables) == 0 {
		return "No tables found in the database.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tables: %d\n", len(tables))
	for _, t := range tables {
		fmt.Fprintf(&b, "\n== %s (%d rows)\n", t.Name, t.RowCount)
		names := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			names[i] = c.Name
			fmt.Fprintf(&b, "  %s %s\n", c.Name, c.Type)
		}
		if len(t.SampleRows) > 0 {
			b.WriteString("  sample:\n")
			for _, line := range strings.Split(strings.TrimRight(renderRows(names, t.SampleRows), "\n"), "\n") {
				b.WriteString("    " + line + "\n")
			}
		}
	}
	return b.String()
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		return int64(x)
	case []byte:
		n, _ := strconv.ParseInt(string(x), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		n, _ := strconv.ParseInt(fmt.Sprint(x), 10, 64)
		return n
	}
}
