package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

// SaveTrace persists a completed trace and all its spans to DuckDB.
func (r *Repository) SaveTrace(ctx context.Context, trace *domain.Trace) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stepsJSON, err := json.Marshal(trace.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	// Upsert trace row
	_, err = tx.ExecContext(ctx, `
		INSERT INTO traces (id, question, status, outcome, answer, root_span_id,
		                    start_time, end_time, duration_ms, span_count, steps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status       = excluded.status,
			outcome      = excluded.outcome,
			answer       = excluded.answer,
			end_time     = excluded.end_time,
			duration_ms  = excluded.duration_ms,
			span_count   = excluded.span_count,
			steps        = excluded.steps`,
		string(trace.ID),
		trace.Question,
		string(trace.Status),
		string(trace.Outcome),
		trace.Answer,
		string(trace.RootSpanID),
		trace.StartTime,
		trace.EndTime,
		trace.DurationMs,
		trace.SpanCount,
		string(stepsJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert trace: %w", err)
	}

	// Upsert spans
	for _, span := range trace.Spans {
		attrJSON, _ := json.Marshal(span.Attributes)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO spans (id, trace_id, parent_id, name, kind, status,
			                   input, output, error, attributes, start_time, end_time, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				status      = excluded.status,
				output      = excluded.output,
				error       = excluded.error,
				end_time    = excluded.end_time,
				duration_ms = excluded.duration_ms`,
			string(span.ID),
			string(span.TraceID),
			string(span.ParentID),
			span.Name,
			string(span.Kind),
			string(span.Status),
			span.Input,
			span.Output,
			span.Error,
			string(attrJSON),
			span.StartTime,
			span.EndTime,
			span.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("upsert span %s: %w", span.ID, err)
		}
	}

	return tx.Commit()
}

// ListTraces returns summaries of the most recent traces (newest first).
func (r *Repository) ListTraces(ctx context.Context, limit int) ([]domain.TraceSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, question, status, outcome, start_time, duration_ms, span_count
		FROM traces
		ORDER BY start_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	out := []domain.TraceSummary{}
	for rows.Next() {
		var s domain.TraceSummary
		var id, statusStr, outcomeStr string
		if err := rows.Scan(&id, &s.Question, &statusStr, &outcomeStr, &s.StartTime, &s.DurationMs, &s.SpanCount); err != nil {
			return nil, err
		}
		s.ID = domain.TraceID(id)
		s.Status = domain.SpanStatus(statusStr)
		s.Outcome = domain.RunOutcome(outcomeStr)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTrace returns a full trace with all its spans.
func (r *Repository) GetTrace(ctx context.Context, id domain.TraceID) (*domain.Trace, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, question, status, outcome, answer, root_span_id,
		       start_time, end_time, duration_ms, span_count, steps
		FROM traces WHERE id = ?`, string(id))

	var t domain.Trace
	var traceID, statusStr, outcomeStr, rootSpanID, stepsJSON string
	var endTime sql.NullTime
	err := row.Scan(
		&traceID, &t.Question, &statusStr, &outcomeStr, &t.Answer, &rootSpanID,
		&t.StartTime, &endTime, &t.DurationMs, &t.SpanCount, &stepsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trace not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get trace: %w", err)
	}
	t.ID = domain.TraceID(traceID)
	t.Status = domain.SpanStatus(statusStr)
	t.Outcome = domain.RunOutcome(outcomeStr)
	t.RootSpanID = domain.SpanID(rootSpanID)
	if endTime.Valid {
		end := endTime.Time
		t.EndTime = &end
	}
	if stepsJSON != "" && stepsJSON != "null" {
		if err := json.Unmarshal([]byte(stepsJSON), &t.Steps); err != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
	}

	// Load spans
	spans, err := r.loadSpansForTrace(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Spans = spans
	return &t, nil
}

func (r *Repository) loadSpansForTrace(ctx context.Context, traceID domain.TraceID) ([]domain.Span, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trace_id, parent_id, name, kind, status,
		       input, output, error, attributes, start_time, end_time, duration_ms
		FROM spans WHERE trace_id = ?
		ORDER BY start_time ASC`, string(traceID))
	if err != nil {
		return nil, fmt.Errorf("load spans: %w", err)
	}
	defer rows.Close()

	var out []domain.Span
	for rows.Next() {
		var s domain.Span
		var id, tid, parentID, kindStr, statusStr, attrJSON string
		var endTime sql.NullTime
		err := rows.Scan(
			&id, &tid, &parentID,
			&s.Name, &kindStr, &statusStr,
			&s.Input, &s.Output, &s.Error,
			&attrJSON, &s.StartTime, &endTime, &s.DurationMs,
		)
		if err != nil {
			return nil, err
		}
		s.ID = domain.SpanID(id)
		s.TraceID = domain.TraceID(tid)
		s.ParentID = domain.SpanID(parentID)
		s.Kind = domain.SpanKind(kindStr)
		s.Status = domain.SpanStatus(statusStr)
		if endTime.Valid {
			end := endTime.Time
			s.EndTime = &end
		}
		if attrJSON != "" && attrJSON != "null" {
			_ = json.Unmarshal([]byte(attrJSON), &s.Attributes)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneTraces deletes traces (and their spans) that started before cutoff.
func (r *Repository) PruneTraces(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM spans WHERE trace_id IN (SELECT id FROM traces WHERE start_time < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("prune spans: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM traces WHERE start_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune traces: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}
