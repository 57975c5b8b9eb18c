package types

import "context"

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID stores the orchestrator run ID in the context. Outbound HTTP
// calls propagate it as a trace header so provider-side logs can be
// correlated with one scheduled run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID retrieves the run ID from the context, or "" if unset.
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
