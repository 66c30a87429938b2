package choicepoint

import (
	"context"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/choicepoint/internal/execctx"
	"github.com/danielpatrickdp/choicepoint/internal/poset"
	"github.com/danielpatrickdp/choicepoint/internal/ruleset"
)

// #region exec-state

// WithExec installs a fresh execution-context state on ctx: an empty call
// stack and a root trace cursor. Dispatch installs one transparently when
// absent; installing explicitly gives each concurrent task its own stack.
func WithExec(ctx context.Context) context.Context {
	ctx, _ = execctx.With(ctx)
	return ctx
}

// #endregion exec-state

// #region invoke

// Call resolves and runs a choice function: the single most specific matching
// rule picks the implementation and keyword overrides, explicit kwargs win
// over both. Implementation errors propagate unmodified.
func (e *Engine) Call(ctx context.Context, fn uuid.UUID, args []any, kwargs map[string]any) (any, error) {
	return e.disp.Invoke(ctx, fn, args, kwargs)
}

// Track runs body with a call frame for the tracked site on the execution
// context's stack.
func (e *Engine) Track(ctx context.Context, site uuid.UUID, args []any, kwargs map[string]any, body Body) (any, error) {
	return e.disp.Track(ctx, site, args, kwargs, body)
}

// TrackMethod runs body with a method call frame on the stack. declaring is
// the class defining the method, runtime the receiver's concrete class.
func (e *Engine) TrackMethod(ctx context.Context, declaring, runtime uuid.UUID, method string, args Args, body Body) (any, error) {
	return e.disp.TrackMethod(ctx, declaring, runtime, method, args, body)
}

// EnterContext opens an ambient context scope. Callers defer the returned
// release so the scope ends on every exit path, panics included.
func (e *Engine) EnterContext(ctx context.Context, class uuid.UUID) (context.Context, func(), error) {
	return e.disp.EnterContext(ctx, class)
}

// Wrap turns a plain callable into one whose calls push a frame for site, so
// rules can select on it without the caller touching the stack directly.
func (e *Engine) Wrap(site uuid.UUID, fn Callable) Callable {
	return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return e.disp.Track(ctx, site, args, kwargs, func(ctx context.Context) (any, error) {
			return fn(ctx, args, kwargs)
		})
	}
}

// #endregion invoke

// #region tracing

// TraceStart opens a trace session, discarding any unfinished one.
func (e *Engine) TraceStart() {
	e.rec.Start()
}

// TraceStop closes the session and returns it together with a registry
// snapshot taken now.
func (e *Engine) TraceStop() *Session {
	return e.rec.Stop(e.reg.Snapshot())
}

// Tracing reports whether a session is open.
func (e *Engine) Tracing() bool {
	return e.rec.Active()
}

// #endregion tracing

// #region rules-and-poset

// LoadRules reads a YAML rule file and registers every rule in it. All names
// the file refers to must already be registered.
func (e *Engine) LoadRules(path string) error {
	f, err := ruleset.Load(path)
	if err != nil {
		return err
	}
	return ruleset.Apply(f, e.reg)
}

// Poset builds the sub-selector partial order over every registered rule
// selector.
func (e *Engine) Poset() *poset.Graph {
	return poset.Build(poset.FromSelectors(e.reg.Selectors()))
}

// #endregion rules-and-poset
