package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

// ModelClient wraps an LLMProvider with a per-call deadline, an optional rate
// limit and retries for transient failures.
type ModelClient struct {
	logger     *slog.Logger
	provider   domain.LLMProvider
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
}

// NewModelClient builds a client from the agent settings. ratePerSecond <= 0
// disables limiting.
func NewModelClient(logger *slog.Logger, provider domain.LLMProvider, cfg domain.AgentConfig, ratePerSecond float64) *ModelClient {
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &ModelClient{
		logger:     logger,
		provider:   provider,
		limiter:    limiter,
		timeout:    cfg.ModelTimeout,
		maxRetries: cfg.MaxModelRetries,
		baseDelay:  cfg.RetryBaseDelay,
	}
}

// Complete calls the provider. A call that runs past the deadline returns
// domain.ErrModelTimeout; retryable ModelErrors are retried with exponential
// backoff and jitter up to maxRetries times.
func (c *ModelClient) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			logger := c.logger
			if runID, ok := RunFromContext(ctx); ok {
				logger = logger.With("run_id", string(runID))
			}
			logger.Warn("retrying model call", "attempt", attempt, "delay", delay.String(), "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		text, err := c.completeOnce(ctx, prompt, temperature)
		if err == nil {
			return text, nil
		}
		if !domain.IsRetryableModelError(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("model call failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *ModelClient) completeOnce(ctx context.Context, prompt string, temperature float64) (string, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	text, err := c.provider.Complete(callCtx, prompt, temperature)
	if err == nil {
		return text, nil
	}
	// the caller's own cancellation is not a model timeout
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w after %s", domain.ErrModelTimeout, c.timeout)
	}
	return "", err
}

// backoff: base * 2^n plus up to 50% jitter
func (c *ModelClient) backoff(n int) time.Duration {
	base := c.baseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := time.Duration(math.Pow(2, float64(n))) * base
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	return d + jitter
}
