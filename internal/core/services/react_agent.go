package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/ports"
)

const logPreview = 200

// ReActAgentService answers questions about a database by alternating model
// reasoning with tool calls until it reaches a final answer or a limit.
type ReActAgentService struct {
	logger *slog.Logger
	llm    domain.LLMProvider
	store  ports.DataStore
	cfg    domain.AgentConfig
	tracer *TraceCollector // optional
	bus    *EventBus       // optional
}

// NewReActAgentService validates cfg and wires the agent. A provider that is
// not already a *ModelClient gets wrapped in one so model deadlines and
// retries always apply.
func NewReActAgentService(
	logger *slog.Logger,
	llm domain.LLMProvider,
	store ports.DataStore,
	cfg domain.AgentConfig,
	tracer *TraceCollector,
	bus *EventBus,
) (*ReActAgentService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if llm == nil {
		return nil, &domain.ConfigError{Field: "llm", Reason: "provider is required"}
	}
	if store == nil {
		return nil, &domain.ConfigError{Field: "store", Reason: "data store is required"}
	}
	if _, ok := llm.(*ModelClient); !ok {
		llm = NewModelClient(logger, llm, cfg, 0)
	}
	return &ReActAgentService{
		logger: logger,
		llm:    llm,
		store:  store,
		cfg:    cfg,
		tracer: tracer,
		bus:    bus,
	}, nil
}

// Config returns the settings the agent was built with
func (s *ReActAgentService) Config() domain.AgentConfig {
	return s.cfg
}

// Catalog returns the tools a run would be offered
func (s *ReActAgentService) Catalog() (*domain.ToolRegistry, error) {
	return BuildSQLCatalog(s.store, s.cfg, s.logger)
}

// Run answers one question with a fresh run ID
func (s *ReActAgentService) Run(ctx context.Context, question string) domain.RunResult {
	return s.RunWithID(ctx, domain.NewRunID(), question)
}

// RunWithID answers one question. It always returns exactly one result:
// an answer, an exhausted run, or a fatal failure.
func (s *ReActAgentService) RunWithID(ctx context.Context, runID domain.RunID, question string) domain.RunResult {
	r := &agentRun{
		svc:        s,
		id:         runID,
		question:   question,
		transcript: domain.NewTranscript(),
		logger:     s.logger.With("run_id", string(runID)),
		started:    time.Now(),
	}

	ctx = ContextWithRun(ctx, runID)
	if s.tracer != nil {
		ctx = s.tracer.StartTrace(ctx, runID, question)
	}

	r.logger.Info("starting ReAct loop", "question", preview(question))

	result := r.loop(ctx)

	r.logger.Info("run finished",
		"outcome", string(result.Outcome),
		"iterations", result.Iterations,
		"steps", r.transcript.Len(),
		"error", result.Error,
	)
	if s.tracer != nil {
		s.tracer.EndTrace(result, r.transcript.Steps())
	}
	if s.bus != nil {
		s.bus.PublishDone(runID, result)
	}
	return result
}

// agentRun is the state of one run. It is used by a single goroutine.
type agentRun struct {
	svc        *ReActAgentService
	id         domain.RunID
	question   string
	transcript *domain.Transcript
	catalog    *domain.ToolRegistry
	logger     *slog.Logger
	started    time.Time

	iteration int
	failures  int // consecutive malformed outputs or model timeouts
}

func (r *agentRun) loop(ctx context.Context) domain.RunResult {
	cfg := r.svc.cfg

	catalog, err := BuildSQLCatalog(r.svc.store, cfg, r.logger)
	if err != nil {
		return r.fatal(fmt.Errorf("build tool catalog: %w", err))
	}
	r.catalog = catalog

	for {
		if err := ctx.Err(); err != nil {
			return r.fatal(err)
		}

		r.logger.Debug("ReAct iteration", "iteration", r.iteration+1)

		text, err := r.callModel(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return r.fatal(ctx.Err())
			}
			if !errors.Is(err, domain.ErrModelTimeout) {
				return r.fatal(fmt.Errorf("model call: %w", err))
			}
			r.append(domain.SyntheticObservation("Error: model call timed out"))
			if r.failures++; r.failures >= cfg.StopOnParseErrorAfter {
				return r.fatal(fmt.Errorf("%d consecutive failed model calls: %w", r.failures, err))
			}
			if done, res := r.advance(); done {
				return res
			}
			continue
		}

		parsed := ParseResponse(text, r.catalog)
		switch parsed.Kind {
		case domain.ParsedFinalAnswer:
			r.appendThought(parsed.Thought)
			r.append(domain.FinalAnswerStep(parsed.Answer))
			r.iteration++
			return r.answer(parsed.Answer)

		case domain.ParsedAction:
			r.appendThought(parsed.Thought)
			r.append(domain.ActionStep(parsed.ToolName, parsed.ToolInput))

			obs, err := r.invokeTool(ctx, parsed.ToolName, parsed.ToolInput)
			if err != nil {
				r.append(domain.SyntheticObservation("Error: " + err.Error()))
				return r.fatal(fmt.Errorf("tool %s: %w", parsed.ToolName, err))
			}
			r.append(obs)
			r.failures = 0
			if err := ctx.Err(); err != nil {
				r.iteration++
				return r.fatal(err)
			}

		default:
			r.logger.Warn("unparseable model output", "reason", parsed.Reason, "output", preview(text))
			r.append(domain.ParseErrorStep(text, parsed.Reason))
			if r.failures++; r.failures >= cfg.StopOnParseErrorAfter {
				r.iteration++
				return r.fatal(fmt.Errorf("%w: %d consecutive malformed outputs, last: %s",
					domain.ErrUnparseableAgent, r.failures, parsed.Reason))
			}
		}

		if done, res := r.advance(); done {
			return res
		}
	}
}

// advance counts one iteration and reports whether the budget is spent
func (r *agentRun) advance() (bool, domain.RunResult) {
	r.iteration++
	if r.iteration >= r.svc.cfg.MaxIterations {
		return true, r.exhausted()
	}
	return false, domain.RunResult{}
}

func (r *agentRun) callModel(ctx context.Context) (string, error) {
	prompt := FormatPrompt(r.question, r.catalog, r.transcript.Steps())

	var spanID domain.SpanID
	if t := r.svc.tracer; t != nil {
		_, spanID = t.StartSpan(ctx, fmt.Sprintf("llm.complete (iter %d)", r.iteration+1), domain.SpanKindLLM, map[string]string{
			"iteration": strconv.Itoa(r.iteration + 1),
		})
		t.SetSpanInput(spanID, prompt[max(0, len(prompt)-500):])
	}

	text, err := r.svc.llm.Complete(ctx, prompt, r.svc.cfg.ModelTemperature)

	if t := r.svc.tracer; t != nil {
		if err != nil {
			t.EndSpan(spanID, domain.SpanStatusError, "", err.Error())
		} else {
			t.EndSpan(spanID, domain.SpanStatusOK, text, "")
		}
	}
	if err != nil {
		r.logger.Warn("model call failed", "iteration", r.iteration+1, "error", err)
		return "", err
	}
	r.logger.Debug("LLM response", "response", preview(text))
	return text, nil
}

type toolOutcome struct {
	out string
	err error
}

// invokeTool runs a tool under the tool deadline and always produces the
// observation to append. A non-nil error means the run must stop.
func (r *agentRun) invokeTool(ctx context.Context, name, input string) (domain.Step, error) {
	timeout := r.svc.cfg.ToolTimeout

	var spanID domain.SpanID
	if t := r.svc.tracer; t != nil {
		_, spanID = t.StartSpan(ctx, "tool."+name, domain.SpanKindTool, map[string]string{"tool": name})
		t.SetSpanInput(spanID, input)
	}

	toolCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		toolCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	r.logger.Info("executing tool", "tool", name, "input", preview(input))

	done := make(chan toolOutcome, 1)
	go func() {
		out, err := r.catalog.Invoke(toolCtx, name, input)
		done <- toolOutcome{out: out, err: err}
	}()

	var res toolOutcome
	select {
	case res = <-done:
	case <-toolCtx.Done():
		res = toolOutcome{err: toolCtx.Err()}
	}

	step, err := r.observationFor(ctx, toolCtx, name, res)
	if t := r.svc.tracer; t != nil {
		switch {
		case err != nil:
			t.EndSpan(spanID, domain.SpanStatusError, "", err.Error())
		case step.Synthetic:
			t.EndSpan(spanID, domain.SpanStatusError, step.Text, step.Text)
		default:
			t.EndSpan(spanID, domain.SpanStatusOK, step.Text, "")
		}
	}
	if err == nil {
		r.logger.Info("tool executed", "tool", name, "observation", preview(step.Text))
	}
	return step, err
}

func (r *agentRun) observationFor(ctx, toolCtx context.Context, name string, res toolOutcome) (domain.Step, error) {
	var toolErr *domain.ToolError
	switch {
	case ctx.Err() != nil:
		return domain.SyntheticObservation(fmt.Sprintf("Error: tool %s interrupted: %v", name, ctx.Err())), nil
	case errors.Is(toolCtx.Err(), context.DeadlineExceeded):
		return domain.SyntheticObservation(fmt.Sprintf("Error: tool %s timed out after %s", name, r.svc.cfg.ToolTimeout)), nil
	case res.err == nil:
		return domain.ObservationStep(res.out), nil
	case errors.Is(res.err, domain.ErrToolNotFound):
		return domain.SyntheticObservation("Error: unknown tool"), nil
	case errors.As(res.err, &toolErr):
		return domain.ObservationStep("Error: " + toolErr.Message), nil
	case domain.IsConnectivity(res.err):
		return domain.Step{}, res.err
	default:
		return domain.SyntheticObservation("Error: " + res.err.Error()), nil
	}
}

func (r *agentRun) append(step domain.Step) {
	r.transcript.Append(step)
	if r.svc.bus != nil {
		r.svc.bus.PublishStep(r.id, step)
	}
}

func (r *agentRun) appendThought(text string) {
	if text != "" {
		r.append(domain.ThoughtStep(text))
	}
}

func (r *agentRun) base(outcome domain.RunOutcome) domain.RunResult {
	return domain.RunResult{
		RunID:      r.id,
		Question:   r.question,
		Outcome:    outcome,
		Iterations: r.iteration,
		StartedAt:  r.started,
		FinishedAt: time.Now(),
	}
}

func (r *agentRun) answer(text string) domain.RunResult {
	res := r.base(domain.OutcomeAnswer)
	res.Answer = text
	res.Transcript = r.transcript.Steps()
	return res
}

func (r *agentRun) exhausted() domain.RunResult {
	res := r.base(domain.OutcomeExhausted)
	res.Transcript = r.transcript.Tail(r.svc.cfg.TranscriptTail)
	res.Error = fmt.Sprintf("no final answer after %d iterations", r.iteration)
	return res
}

func (r *agentRun) fatal(err error) domain.RunResult {
	res := r.base(domain.OutcomeFatal)
	res.Err = err
	res.Error = err.Error()
	res.Transcript = r.transcript.Tail(r.svc.cfg.TranscriptTail)
	return res
}

func preview(s string) string {
	if len(s) <= logPreview {
		return s
	}
	return s[:logPreview] + "..."
}
