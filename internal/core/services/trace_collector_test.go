package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

type memoryTraceRepo struct {
	mu     sync.Mutex
	traces []*domain.Trace
}

func (r *memoryTraceRepo) SaveTrace(ctx context.Context, trace *domain.Trace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, trace)
	return nil
}

func TestTraceCollector_Lifecycle(t *testing.T) {
	repo := &memoryTraceRepo{}
	tc := NewTraceCollector(discardLogger(), nil, repo)

	ctx := tc.StartTrace(context.Background(), "run-1", "How many employees?")
	traceID, rootID, ok := TraceFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.TraceID("run-1"), traceID)

	_, spanID := tc.StartSpan(ctx, "tool.list_tables", domain.SpanKindTool, map[string]string{"tool": "list_tables"})
	tc.SetSpanInput(spanID, "")
	tc.EndSpan(spanID, domain.SpanStatusOK, "employees", "")

	steps := []domain.Step{domain.ActionStep(ToolListTables, ""), domain.ObservationStep("employees"), domain.FinalAnswerStep("4")}
	tc.EndTrace(domain.RunResult{RunID: "run-1", Outcome: domain.OutcomeAnswer, Answer: "4"}, steps)
	tc.Flush()

	trace, err := tc.GetTrace("run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SpanStatusOK, trace.Status)
	assert.Equal(t, domain.OutcomeAnswer, trace.Outcome)
	assert.Equal(t, steps, trace.Steps)
	assert.Equal(t, 2, trace.SpanCount)
	require.Len(t, trace.Spans, 2)
	for _, s := range trace.Spans {
		if s.ID == spanID {
			assert.Equal(t, rootID, s.ParentID)
			assert.Equal(t, "employees", s.Output)
		}
	}

	require.Len(t, repo.traces, 1)
	assert.Len(t, repo.traces[0].Spans, 2)

	summaries := tc.ListTraces(10)
	require.Len(t, summaries, 1)
	assert.Equal(t, "How many employees?", summaries[0].Question)
}

func TestTraceCollector_StatusFromOutcome(t *testing.T) {
	tc := NewTraceCollector(discardLogger(), nil, nil)

	cases := map[domain.RunID]domain.RunResult{
		"answer":    {Outcome: domain.OutcomeAnswer},
		"exhausted": {Outcome: domain.OutcomeExhausted},
		"cancelled": {Outcome: domain.OutcomeFatal, Err: context.Canceled},
		"fatal":     {Outcome: domain.OutcomeFatal, Err: errors.New("boom")},
	}
	want := map[domain.RunID]domain.SpanStatus{
		"answer":    domain.SpanStatusOK,
		"exhausted": domain.SpanStatusError,
		"cancelled": domain.SpanStatusCancelled,
		"fatal":     domain.SpanStatusError,
	}
	for id, res := range cases {
		tc.StartTrace(context.Background(), id, "q")
		res.RunID = id
		tc.EndTrace(res, nil)

		trace, err := tc.GetTrace(domain.TraceID(id))
		require.NoError(t, err)
		assert.Equal(t, want[id], trace.Status, string(id))
	}
}

func TestTraceCollector_ListNewestFirst(t *testing.T) {
	tc := NewTraceCollector(discardLogger(), nil, nil)
	for _, id := range []domain.RunID{"a", "b", "c"} {
		tc.StartTrace(context.Background(), id, string(id))
	}

	got := tc.ListTraces(2)
	require.Len(t, got, 2)
	assert.Equal(t, domain.TraceID("c"), got[0].ID)
	assert.Equal(t, domain.TraceID("b"), got[1].ID)

	_, err := tc.GetTrace("missing")
	assert.Error(t, err)
}

func TestTraceCollector_SpanWithoutTrace(t *testing.T) {
	tc := NewTraceCollector(discardLogger(), nil, nil)
	ctx, spanID := tc.StartSpan(context.Background(), "orphan", domain.SpanKindTool, nil)
	assert.Empty(t, spanID)
	assert.NotNil(t, ctx)
	tc.EndSpan(spanID, domain.SpanStatusOK, "", "")
}
