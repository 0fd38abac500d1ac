package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

// stopSequences keep the model from inventing its own observations
var stopSequences = []string{"\nObservation:"}

// statusError classifies an HTTP failure. 429 and 5xx are worth retrying;
// auth failures and other 4xx are not.
func statusError(provider string, status int, body string) error {
	return &domain.ModelError{
		Provider:   provider,
		StatusCode: status,
		Retryable:  status == http.StatusTooManyRequests || status >= 500,
		Err:        errors.New(truncateBody(body)),
	}
}

// transportError classifies a failure to reach the provider. Context errors
// pass through untouched so callers can tell a deadline from a network fault.
func transportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.ModelError{Provider: provider, Retryable: true, Err: fmt.Errorf("%s connection failed: %w", provider, err)}
}

func truncateBody(s string) string {
	const limit = 500
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
