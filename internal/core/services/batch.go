package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

// QuestionRunner is anything that turns a question into a run result
type QuestionRunner interface {
	Run(ctx context.Context, question string) domain.RunResult
}

// BatchRunner answers many independent questions in parallel. Every run gets
// its own transcript and catalog; only the data store is shared.
type BatchRunner struct {
	logger *slog.Logger
	runner QuestionRunner
}

func NewBatchRunner(logger *slog.Logger, runner QuestionRunner) *BatchRunner {
	return &BatchRunner{logger: logger, runner: runner}
}

// RunAll returns one result per question, in question order.
// parallelism <= 0 runs them one at a time.
func (b *BatchRunner) RunAll(ctx context.Context, questions []string, parallelism int) []domain.RunResult {
	if parallelism <= 0 {
		parallelism = 1
	}

	results := make([]domain.RunResult, len(questions))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, q := range questions {
		g.Go(func() error {
			results[i] = b.runner.Run(ctx, q)
			return nil
		})
	}
	_ = g.Wait() // runs report failures in their results

	answered := 0
	for _, r := range results {
		if r.IsAnswer() {
			answered++
		}
	}
	b.logger.Info("batch finished", "questions", len(questions), "answered", answered, "parallelism", parallelism)
	return results
}
