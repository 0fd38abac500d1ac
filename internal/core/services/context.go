package services

import (
	"context"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

// Use a private type for context keys to avoid collisions
type serviceContextKey string

const (
	ctxKeyRunID serviceContextKey = "run_id"
)

// ContextWithRun injects the RunID into the context
func ContextWithRun(ctx context.Context, id domain.RunID) context.Context {
	return context.WithValue(ctx, ctxKeyRunID, id)
}

// RunFromContext retrieves the RunID from the context
func RunFromContext(ctx context.Context) (domain.RunID, bool) {
	id, ok := ctx.Value(ctxKeyRunID).(domain.RunID)
	return id, ok
}
