// Package execctx carries per-execution-context engine state on a
// context.Context: the call frame stack and the current trace node cursor.
// Each goroutine or task works against its own State; nothing here is shared.
package execctx

import (
	"context"

	"github.com/danielpatrickdp/choicepoint/internal/frame"
	"github.com/danielpatrickdp/choicepoint/internal/trace"
)

// #region state

// State is the engine-visible state of one execution context.
type State struct {
	Stack  frame.Stack
	Cursor *trace.Node // nil = next trace node attaches to the session root
}

type ctxKey struct{}

// With installs a fresh State and returns the derived context alongside it.
func With(ctx context.Context) (context.Context, *State) {
	st := &State{}
	return context.WithValue(ctx, ctxKey{}, st), st
}

// From returns the State carried by ctx, if any.
func From(ctx context.Context) (*State, bool) {
	st, ok := ctx.Value(ctxKey{}).(*State)
	return st, ok
}

// Ensure returns the carried State, installing a fresh one when absent.
func Ensure(ctx context.Context) (context.Context, *State) {
	if st, ok := From(ctx); ok {
		return ctx, st
	}
	return With(ctx)
}

// #endregion state
