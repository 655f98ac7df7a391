package reconcile

import (
	"context"
	"fmt"

	"erpsync/pkg/logger"
)

// recordState is attached to the context of each reconciled record.
type recordState struct {
	key      NaturalKey
	warnings []string
}

type recordStateKey struct{}

func withRecordState(ctx context.Context, st *recordState) context.Context {
	return context.WithValue(ctx, recordStateKey{}, st)
}

func getRecordState(ctx context.Context) *recordState {
	if st, ok := ctx.Value(recordStateKey{}).(*recordState); ok {
		return st
	}
	return nil
}

// CurrentKey returns the natural key of the record being reconciled.
func CurrentKey(ctx context.Context) NaturalKey {
	if st := getRecordState(ctx); st != nil {
		return st.key
	}
	return ""
}

// Warn attaches a warning to the record being reconciled. The record keeps its
// status; the warning shows up in the log and the outcome.
func Warn(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if st := getRecordState(ctx); st != nil {
		st.warnings = append(st.warnings, msg)
	}
	logger.Warn(ctx, msg, "key", CurrentKey(ctx))
}
