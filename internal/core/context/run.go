// Package context provides run-scoped values extraction.
package context

import (
	"context"
	"time"
)

// RunContext describes one job execution.
type RunContext struct {
	RunID     string
	Job       string
	DryRun    bool
	StartedAt time.Time
}

type runContextKey struct{}

// WithRun adds RunContext to context.
func WithRun(ctx context.Context, run *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, run)
}

// GetRun returns RunContext from context.
func GetRun(ctx context.Context) *RunContext {
	if v, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return v
	}
	return nil
}

// GetRunID returns run ID from context or empty string.
func GetRunID(ctx context.Context) string {
	if r := GetRun(ctx); r != nil {
		return r.RunID
	}
	return ""
}

// IsDryRun reports whether writes are suppressed for this run.
func IsDryRun(ctx context.Context) bool {
	if r := GetRun(ctx); r != nil {
		return r.DryRun
	}
	return false
}
