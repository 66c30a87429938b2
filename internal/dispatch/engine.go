// Package dispatch is the invoke entry point: it pushes frames around tracked
// calls and ambient contexts, resolves the winning rule for each choice call,
// merges keyword arguments, and records trace nodes while a session is open.
package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/choicepoint/internal/execctx"
	"github.com/danielpatrickdp/choicepoint/internal/frame"
	"github.com/danielpatrickdp/choicepoint/internal/registry"
	"github.com/danielpatrickdp/choicepoint/internal/trace"
)

// #region engine

// Engine binds the registry and trace recorder behind the dispatch surface.
type Engine struct {
	reg *registry.Registry
	rec *trace.Recorder
	log *zap.Logger
}

// New creates an engine. logger may be nil.
func New(reg *registry.Registry, rec *trace.Recorder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{reg: reg, rec: rec, log: logger}
}

// #endregion engine

// #region track

// Body is the wrapped user code a tracked call executes.
type Body func(ctx context.Context) (any, error)

// Track runs body with a call frame for the tracked site on the execution
// context's stack. The frame is popped on every exit path, panics included.
func (e *Engine) Track(ctx context.Context, site uuid.UUID, args []any, kwargs map[string]any, body Body) (any, error) {
	s, ok := e.reg.Tracked(site)
	if !ok {
		return nil, fmt.Errorf("track: unknown site %s", site)
	}
	ctx, st := execctx.Ensure(ctx)

	token := st.Stack.Push(frame.CallSite(site, s.Name, bindExplicit(s.Params, args, kwargs)))
	defer st.Stack.MustPop(token)

	return body(ctx)
}

// TrackMethod runs body with a method call frame on the stack. declaring is
// the class that defines the method; runtime is the receiver's concrete class.
func (e *Engine) TrackMethod(ctx context.Context, declaring, runtime uuid.UUID, method string, args frame.Args, body Body) (any, error) {
	cls, ok := e.reg.Class(declaring)
	if !ok {
		return nil, fmt.Errorf("track method: unknown class %s", declaring)
	}
	if _, ok := e.reg.Class(runtime); !ok {
		return nil, fmt.Errorf("track method: unknown runtime class %s", runtime)
	}
	ctx, st := execctx.Ensure(ctx)

	token := st.Stack.Push(frame.MethodSite(declaring, runtime, method, cls.Name, args))
	defer st.Stack.MustPop(token)

	return body(ctx)
}

// #endregion track

// #region enter-context

// EnterContext pushes an ambient context scope and returns the context to use
// inside the scope plus the release that pops it. Callers defer the release so
// the scope ends on every exit path.
func (e *Engine) EnterContext(ctx context.Context, class uuid.UUID) (context.Context, func(), error) {
	cc, ok := e.reg.ContextClass(class)
	if !ok {
		return ctx, nil, fmt.Errorf("enter context: unknown context class %s", class)
	}
	ctx, st := execctx.Ensure(ctx)

	token := st.Stack.Push(frame.ContextScope(class, cc.Name))
	return ctx, func() { st.Stack.MustPop(token) }, nil
}

// #endregion enter-context

// #region bind

// bindExplicit snapshots a call's explicit arguments by name: positional args
// bound to parameter names in order, then explicit kwargs.
func bindExplicit(params []string, args []any, kwargs map[string]any) frame.Args {
	out := make(frame.Args, len(args)+len(kwargs))
	for i, a := range args {
		if i < len(params) {
			out[params[i]] = a
		}
	}
	for k, v := range kwargs {
		out[k] = v
	}
	return out
}

// #endregion bind
