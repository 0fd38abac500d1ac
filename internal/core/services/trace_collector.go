package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

const (
	maxTraces      = 500  // ring buffer size
	maxInputOutput = 2000 // truncate input/output at 2KB
)

// TraceRepository is the minimal persistence interface needed by TraceCollector.
type TraceRepository interface {
	SaveTrace(ctx context.Context, trace *domain.Trace) error
}

// TraceCollector gathers, stores, and exposes traces and spans.
// Thread-safe. Operates as a ring buffer of recent traces.
type TraceCollector struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	eventBus *EventBus
	repo     TraceRepository // optional; if non-nil, completed traces are persisted
	pending  sync.WaitGroup

	traces     map[domain.TraceID]*domain.Trace
	spans      map[domain.SpanID]*domain.Span
	traceOrder []domain.TraceID // for eviction
}

// NewTraceCollector creates a new collector with optional EventBus for real-time events.
// repo may be nil; when provided, traces are persisted to DB on completion.
func NewTraceCollector(logger *slog.Logger, eventBus *EventBus, repo TraceRepository) *TraceCollector {
	return &TraceCollector{
		logger:   logger,
		eventBus: eventBus,
		repo:     repo,
		traces:   make(map[domain.TraceID]*domain.Trace, maxTraces),
		spans:    make(map[domain.SpanID]*domain.Span, maxTraces*10),
	}
}

// --- Context propagation ---

type traceCtxKey struct{}
type spanCtxKey struct{}

// ContextWithTrace stores trace and span IDs in context for propagation.
func ContextWithTrace(ctx context.Context, traceID domain.TraceID, spanID domain.SpanID) context.Context {
	ctx = context.WithValue(ctx, traceCtxKey{}, traceID)
	ctx = context.WithValue(ctx, spanCtxKey{}, spanID)
	return ctx
}

// TraceFromContext extracts trace and current span ID from context.
func TraceFromContext(ctx context.Context) (domain.TraceID, domain.SpanID, bool) {
	traceID, ok1 := ctx.Value(traceCtxKey{}).(domain.TraceID)
	spanID, ok2 := ctx.Value(spanCtxKey{}).(domain.SpanID)
	return traceID, spanID, ok1 && ok2
}

// --- Trace lifecycle ---

// StartTrace begins the trace of one run; the trace shares the run's ID.
func (tc *TraceCollector) StartTrace(ctx context.Context, runID domain.RunID, question string) context.Context {
	traceID := domain.TraceID(runID)
	rootSpanID := domain.SpanID(uuid.New().String())
	now := time.Now()

	rootSpan := &domain.Span{
		ID:        rootSpanID,
		TraceID:   traceID,
		Name:      "agent.run",
		Kind:      domain.SpanKindAgent,
		Status:    domain.SpanStatusRunning,
		Input:     truncate(question, maxInputOutput),
		StartTime: now,
	}

	trace := &domain.Trace{
		ID:         traceID,
		RootSpanID: rootSpanID,
		Question:   question,
		Status:     domain.SpanStatusRunning,
		StartTime:  now,
		SpanCount:  1,
	}

	tc.mu.Lock()
	tc.evictIfNeeded()
	tc.traces[traceID] = trace
	tc.spans[rootSpanID] = rootSpan
	tc.traceOrder = append(tc.traceOrder, traceID)
	tc.mu.Unlock()

	tc.logger.Debug("trace started", "trace_id", string(traceID))

	return ContextWithTrace(ctx, traceID, rootSpanID)
}

// EndTrace finalizes the trace of a run from its result and persists it.
// steps is the full transcript, which may be longer than result.Transcript.
func (tc *TraceCollector) EndTrace(result domain.RunResult, steps []domain.Step) {
	traceID := domain.TraceID(result.RunID)
	status := statusForOutcome(result)

	tc.mu.Lock()

	trace, ok := tc.traces[traceID]
	if !ok {
		tc.mu.Unlock()
		return
	}

	now := time.Now()
	trace.Status = status
	trace.Outcome = result.Outcome
	trace.Answer = result.Answer
	trace.Steps = steps
	trace.EndTime = &now
	trace.DurationMs = now.Sub(trace.StartTime).Milliseconds()
	durationMs := trace.DurationMs

	if root, ok := tc.spans[trace.RootSpanID]; ok {
		root.Status = status
		root.Output = truncate(result.Answer, maxInputOutput)
		root.EndTime = &now
		root.DurationMs = now.Sub(root.StartTime).Milliseconds()
		root.Error = result.Error
	}

	// Build a copy for persistence (while still holding the lock for safe span iteration)
	var persistCopy *domain.Trace
	if tc.repo != nil {
		cp := *trace
		cp.Spans = tc.spansOf(traceID)
		persistCopy = &cp
	}

	tc.mu.Unlock()

	tc.publishEvent(result.RunID, "trace_end", map[string]any{
		"trace_id":    traceID,
		"status":      status,
		"duration_ms": durationMs,
	})

	// Persist asynchronously to avoid blocking callers; Flush waits for it
	if persistCopy != nil {
		tc.pending.Add(1)
		go func() {
			defer tc.pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := tc.repo.SaveTrace(ctx, persistCopy); err != nil {
				tc.logger.Warn("failed to persist trace", "trace_id", string(traceID), "error", err)
			}
		}()
	}
}

// Flush blocks until every pending trace write has finished.
func (tc *TraceCollector) Flush() {
	tc.pending.Wait()
}

// --- Span lifecycle ---

// StartSpan creates a child span under the current context's span.
func (tc *TraceCollector) StartSpan(ctx context.Context, name string, kind domain.SpanKind, attrs map[string]string) (context.Context, domain.SpanID) {
	traceID, parentSpanID, ok := TraceFromContext(ctx)
	if !ok {
		return ctx, ""
	}

	spanID := domain.SpanID(uuid.New().String())
	span := &domain.Span{
		ID:         spanID,
		ParentID:   parentSpanID,
		TraceID:    traceID,
		Name:       name,
		Kind:       kind,
		Status:     domain.SpanStatusRunning,
		Attributes: attrs,
		StartTime:  time.Now(),
	}

	tc.mu.Lock()
	tc.spans[spanID] = span
	if parent, ok := tc.spans[parentSpanID]; ok {
		parent.Children = append(parent.Children, spanID)
	}
	if trace, ok := tc.traces[traceID]; ok {
		trace.SpanCount++
	}
	tc.mu.Unlock()

	return ContextWithTrace(ctx, traceID, spanID), spanID
}

// EndSpan finalizes a span with output and status.
func (tc *TraceCollector) EndSpan(spanID domain.SpanID, status domain.SpanStatus, output string, errMsg string) {
	if spanID == "" {
		return
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	span, ok := tc.spans[spanID]
	if !ok {
		return
	}

	now := time.Now()
	span.Status = status
	span.Output = truncate(output, maxInputOutput)
	span.EndTime = &now
	span.DurationMs = now.Sub(span.StartTime).Milliseconds()
	if errMsg != "" {
		span.Error = errMsg
	}
}

// SetSpanInput sets the input for a span (call after creation to avoid locking overhead).
func (tc *TraceCollector) SetSpanInput(spanID domain.SpanID, input string) {
	if spanID == "" {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if span, ok := tc.spans[spanID]; ok {
		span.Input = truncate(input, maxInputOutput)
	}
}

// --- Query ---

// ListTraces returns summaries of recent traces (newest first).
func (tc *TraceCollector) ListTraces(limit int) []domain.TraceSummary {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if limit <= 0 || limit > len(tc.traceOrder) {
		limit = len(tc.traceOrder)
	}

	result := make([]domain.TraceSummary, 0, limit)
	for i := len(tc.traceOrder) - 1; i >= 0 && len(result) < limit; i-- {
		if trace, ok := tc.traces[tc.traceOrder[i]]; ok {
			result = append(result, domain.TraceSummary{
				ID:         trace.ID,
				Question:   trace.Question,
				Status:     trace.Status,
				Outcome:    trace.Outcome,
				StartTime:  trace.StartTime,
				DurationMs: trace.DurationMs,
				SpanCount:  trace.SpanCount,
			})
		}
	}
	return result
}

// GetTrace returns a full trace with all spans.
func (tc *TraceCollector) GetTrace(traceID domain.TraceID) (*domain.Trace, error) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	trace, ok := tc.traces[traceID]
	if !ok {
		return nil, fmt.Errorf("trace not found: %s", traceID)
	}

	result := *trace
	result.Spans = tc.spansOf(traceID)
	return &result, nil
}

// --- Internal helpers ---

// spansOf must be called with tc.mu held
func (tc *TraceCollector) spansOf(traceID domain.TraceID) []domain.Span {
	var out []domain.Span
	for _, span := range tc.spans {
		if span.TraceID == traceID {
			out = append(out, *span)
		}
	}
	return out
}

func (tc *TraceCollector) evictIfNeeded() {
	for len(tc.traceOrder) >= maxTraces {
		oldID := tc.traceOrder[0]
		tc.traceOrder = tc.traceOrder[1:]

		if oldTrace, ok := tc.traces[oldID]; ok {
			for sid, span := range tc.spans {
				if span.TraceID == oldTrace.ID {
					delete(tc.spans, sid)
				}
			}
			delete(tc.traces, oldID)
		}
	}
}

func (tc *TraceCollector) publishEvent(runID domain.RunID, eventType string, data map[string]any) {
	if tc.eventBus == nil {
		return
	}
	data["event"] = eventType
	tc.eventBus.publishJSON(runID, EventTypeTrace, data)
}

func statusForOutcome(r domain.RunResult) domain.SpanStatus {
	switch {
	case r.IsAnswer():
		return domain.SpanStatusOK
	case r.IsFatal() && errors.Is(r.Err, context.Canceled):
		return domain.SpanStatusCancelled
	default:
		return domain.SpanStatusError
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
